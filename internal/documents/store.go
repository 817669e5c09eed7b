package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finsight-ai/finsight/internal/db"
)

// ErrNotFound is returned when a document or segment does not exist.
var ErrNotFound = errors.New("document not found")

// Store provides persistence for documents and their segments.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Create inserts a new document in pending state. If doc.ID is empty a
// UUID is generated. Returns the stored document's id.
func (s *Store) Create(ctx context.Context, doc Document) (string, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.Status == "" {
		doc.Status = StatusPending
	}
	if doc.Version == 0 {
		doc.Version = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, company, doc_type, filing_date, source, status, indexed, version, content_hash, raw_text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Company, string(doc.DocType), doc.FilingDate, doc.Source,
		string(doc.Status), boolToInt(doc.Indexed), doc.Version, doc.ContentHash, doc.RawText,
	)
	if err != nil {
		return "", fmt.Errorf("inserting document: %w", err)
	}
	return doc.ID, nil
}

// Get retrieves a document by id.
func (s *Store) Get(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, company, doc_type, filing_date, source, status, indexed, version, content_hash, error, created_at, updated_at
		FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

// FindBySource returns the document that was ingested from the given
// source path.
func (s *Store) FindBySource(ctx context.Context, source string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, company, doc_type, filing_date, source, status, indexed, version, content_hash, error, created_at, updated_at
		FROM documents WHERE source = ?`, source)
	return scanDocument(row)
}

// UpdateMetadata refreshes the descriptive fields and raw text after
// re-ingestion.
func (s *Store) UpdateMetadata(ctx context.Context, id, company string, docType DocType, filingDate, contentHash, rawText string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET company = ?, doc_type = ?, filing_date = ?, content_hash = ?, raw_text = ?, updated_at = datetime('now')
		WHERE id = ?`,
		company, string(docType), filingDate, contentHash, rawText, id)
	if err != nil {
		return fmt.Errorf("updating document metadata: %w", err)
	}
	return requireRow(res)
}

// RawText returns the cleaned source text a document was ingested with.
// It is queried separately because listings never need the full body.
func (s *Store) RawText(ctx context.Context, id string) (string, error) {
	var text string
	err := s.db.QueryRowContext(ctx,
		"SELECT raw_text FROM documents WHERE id = ?", id).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying raw text: %w", err)
	}
	return text, nil
}

// List returns documents, newest first, optionally filtered by company
// and document type.
func (s *Store) List(ctx context.Context, company string, docType DocType) ([]Document, error) {
	var (
		clauses []string
		args    []any
	)
	if company != "" {
		clauses = append(clauses, "company = ?")
		args = append(args, company)
	}
	if docType != "" {
		clauses = append(clauses, "doc_type = ?")
		args = append(args, string(docType))
	}

	query := "SELECT id, company, doc_type, filing_date, source, status, indexed, version, content_hash, error, created_at, updated_at FROM documents"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

// SetStatus updates a document's status and error message.
func (s *Store) SetStatus(ctx context.Context, id string, status Status, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, error = ?, updated_at = datetime('now') WHERE id = ?`,
		string(status), errMsg, id)
	if err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}
	return requireRow(res)
}

// SetIndexed flags whether the document's segments are searchable in the
// vector index. A processed document with indexed=false awaits backfill.
func (s *Store) SetIndexed(ctx context.Context, id string, indexed bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET indexed = ?, updated_at = datetime('now') WHERE id = ?`,
		boolToInt(indexed), id)
	if err != nil {
		return fmt.Errorf("updating document indexed flag: %w", err)
	}
	return requireRow(res)
}

// BumpVersion increments a document's version, invalidating any in-flight
// work tagged with the previous version. Returns the new version.
func (s *Store) BumpVersion(ctx context.Context, id string) (int, error) {
	_, err := s.db.ExecContext(ctx, `
		UPDATE documents SET version = version + 1, status = 'pending', error = '', updated_at = datetime('now') WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("bumping document version: %w", err)
	}
	doc, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return doc.Version, nil
}

// ReplaceSegments atomically replaces a document's segments and marks it
// processed. Writing segments and flipping status in one transaction keeps
// failed ingestions from leaving partial segments behind.
func (s *Store) ReplaceSegments(ctx context.Context, documentID string, segs []Segment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace segments: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM segments WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting old segments: %w", err)
	}

	for i := range segs {
		seg := &segs[i]
		if seg.ID == "" {
			seg.ID = uuid.New().String()
		}
		seg.DocumentID = documentID
		seg.Ordinal = i
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO segments (id, document_id, section, ordinal, start_offset, end_offset, text)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			seg.ID, seg.DocumentID, seg.Section, seg.Ordinal, seg.Start, seg.End, seg.Text,
		); err != nil {
			return fmt.Errorf("inserting segment %d: %w", i, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE documents SET status = 'processed', error = '', updated_at = datetime('now') WHERE id = ?`, documentID); err != nil {
		return fmt.Errorf("marking document processed: %w", err)
	}

	return tx.Commit()
}

// Segments returns a document's segments in ordinal order.
func (s *Store) Segments(ctx context.Context, documentID string) ([]Segment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, section, ordinal, start_offset, end_offset, text
		FROM segments WHERE document_id = ? ORDER BY ordinal`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying segments: %w", err)
	}
	defer rows.Close()

	var segs []Segment
	for rows.Next() {
		var seg Segment
		if err := rows.Scan(&seg.ID, &seg.DocumentID, &seg.Section, &seg.Ordinal, &seg.Start, &seg.End, &seg.Text); err != nil {
			return nil, err
		}
		segs = append(segs, seg)
	}
	return segs, rows.Err()
}

// GetSegment retrieves a single segment by id.
func (s *Store) GetSegment(ctx context.Context, id string) (*Segment, error) {
	var seg Segment
	err := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, section, ordinal, start_offset, end_offset, text
		FROM segments WHERE id = ?`, id).
		Scan(&seg.ID, &seg.DocumentID, &seg.Section, &seg.Ordinal, &seg.Start, &seg.End, &seg.Text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying segment: %w", err)
	}
	return &seg, nil
}

// NotIndexed returns processed documents whose segments are missing from
// the vector index, for backfill.
func (s *Store) NotIndexed(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company, doc_type, filing_date, source, status, indexed, version, content_hash, error, created_at, updated_at
		FROM documents WHERE status = 'processed' AND indexed = 0 ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("querying unindexed documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(sc scanner) (*Document, error) {
	var (
		d                    Document
		docType, status      string
		indexed              int
		createdAt, updatedAt string
	)
	err := sc.Scan(&d.ID, &d.Company, &docType, &d.FilingDate, &d.Source, &status,
		&indexed, &d.Version, &d.ContentHash, &d.Error, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	d.DocType = DocType(docType)
	d.Status = Status(status)
	d.Indexed = indexed != 0
	d.CreatedAt = parseDBTime(createdAt)
	d.UpdatedAt = parseDBTime(updatedAt)
	return &d, nil
}

func parseDBTime(s string) time.Time {
	if t, err := time.Parse(time.DateTime, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
