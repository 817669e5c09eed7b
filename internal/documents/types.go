package documents

import "time"

// DocType identifies the kind of financial document.
type DocType string

const (
	DocType10K        DocType = "10-K"
	DocType10Q        DocType = "10-Q"
	DocTypeTranscript DocType = "transcript"
	DocTypeGeneric    DocType = "generic"
)

// ParseDocType maps a user-supplied string to a known DocType. The
// second return is false for unrecognized values.
func ParseDocType(s string) (DocType, bool) {
	switch DocType(s) {
	case DocType10K, DocType10Q, DocTypeTranscript, DocTypeGeneric:
		return DocType(s), true
	default:
		return "", false
	}
}

// Status tracks a document's ingestion state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusFailed    Status = "failed"
)

// Document is an ingested filing. Immutable once stored except for
// status, indexed, error, and version.
type Document struct {
	ID          string    `json:"id"`
	Company     string    `json:"company"`
	DocType     DocType   `json:"doc_type"`
	FilingDate  string    `json:"filing_date"`
	Source      string    `json:"source"`
	Status      Status    `json:"status"`
	Indexed     bool      `json:"indexed"`
	Version     int       `json:"version"`
	ContentHash string    `json:"content_hash"`
	RawText     string    `json:"-"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Segment is a contiguous labeled span of a document's text.
// Many segments per document; immutable once written.
type Segment struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Section    string `json:"section"`
	Ordinal    int    `json:"ordinal"`
	Start      int    `json:"start_offset"`
	End        int    `json:"end_offset"`
	Text       string `json:"text"`
}
