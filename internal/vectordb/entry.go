package vectordb

// Entry is a segment's presence in the vector index: its text plus the
// provenance metadata carried alongside the vector.
type Entry struct {
	SegmentID string
	Text      string
	Metadata  EntryMetadata
}

// EntryMetadata links an indexed vector back to its segment and document.
type EntryMetadata struct {
	DocumentID string
	Section    string
	Ordinal    int
	Company    string
	DocType    string
}

// Result pairs an indexed entry with its similarity to a query.
type Result struct {
	Entry      Entry
	Similarity float32
}

// Filter narrows search results by metadata fields.
type Filter struct {
	DocumentID *string
	Company    *string
	DocType    *string
}
