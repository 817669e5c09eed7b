package insights

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finsight-ai/finsight/internal/db"
)

var (
	// ErrNotFound is returned when no insight matches the given id.
	ErrNotFound = errors.New("insight not found")
	// ErrNoProvenance is returned when an insight arrives without a
	// document reference or without at least one supporting segment.
	ErrNoProvenance = errors.New("insight must reference a document and at least one segment")
)

// Store persists insights. Inserts only; there is no update or delete path.
type Store struct {
	db *db.DB
}

func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Save inserts a new insight. The insight must carry its provenance:
// a document id and one or more segment ids. Insufficient-context results
// still point at the segments that were consulted.
func (s *Store) Save(ctx context.Context, in *Insight) error {
	if in.DocumentID == "" || len(in.SegmentIDs) == 0 {
		return ErrNoProvenance
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}

	segJSON, err := json.Marshal(in.SegmentIDs)
	if err != nil {
		return fmt.Errorf("encoding segment ids: %w", err)
	}

	var confidence sql.NullFloat64
	if in.Confidence != nil {
		confidence = sql.NullFloat64{Float64: *in.Confidence, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO insights (id, document_id, task, metric, value, insufficient,
			segment_ids, model, prompt_version, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.DocumentID, string(in.Task), in.Metric, in.Value,
		boolToInt(in.Insufficient), string(segJSON), in.Model, in.PromptVersion,
		confidence, in.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving insight: %w", err)
	}
	return nil
}

// Get returns a single insight by id.
func (s *Store) Get(ctx context.Context, id string) (*Insight, error) {
	row := s.db.QueryRowContext(ctx, selectCols+` FROM insights i WHERE i.id = ?`, id)
	in, err := scanInsight(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return in, err
}

// ByDocument returns every insight for a document, newest first.
func (s *Store) ByDocument(ctx context.Context, documentID string) ([]*Insight, error) {
	rows, err := s.db.QueryContext(ctx,
		selectCols+` FROM insights i WHERE i.document_id = ? ORDER BY i.created_at DESC, i.id`,
		documentID)
	if err != nil {
		return nil, fmt.Errorf("listing insights: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

// Query returns insights matching the filter, newest first. Company and
// doc-type filters join through the documents table.
func (s *Store) Query(ctx context.Context, f Filter) ([]*Insight, error) {
	query := selectCols + ` FROM insights i JOIN documents d ON d.id = i.document_id`
	var conds []string
	var args []any

	if f.Company != "" {
		conds = append(conds, "d.company = ?")
		args = append(args, f.Company)
	}
	if f.DocType != "" {
		conds = append(conds, "d.doc_type = ?")
		args = append(args, f.DocType)
	}
	if f.Metric != "" {
		conds = append(conds, "i.metric = ?")
		args = append(args, f.Metric)
	}
	if f.Task != "" {
		conds = append(conds, "i.task = ?")
		args = append(args, string(f.Task))
	}
	if f.Since != nil {
		conds = append(conds, "i.created_at >= ?")
		args = append(args, f.Since.UTC().Format(time.RFC3339))
	}
	if f.Until != nil {
		conds = append(conds, "i.created_at <= ?")
		args = append(args, f.Until.UTC().Format(time.RFC3339))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY i.created_at DESC, i.id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying insights: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

const selectCols = `SELECT i.id, i.document_id, i.task, i.metric, i.value,
	i.insufficient, i.segment_ids, i.model, i.prompt_version, i.confidence, i.created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanInsight(row scanner) (*Insight, error) {
	var in Insight
	var task, segJSON, createdAt string
	var insufficient int
	var confidence sql.NullFloat64

	err := row.Scan(&in.ID, &in.DocumentID, &task, &in.Metric, &in.Value,
		&insufficient, &segJSON, &in.Model, &in.PromptVersion, &confidence, &createdAt)
	if err != nil {
		return nil, err
	}
	in.Task = Task(task)
	in.Insufficient = insufficient != 0
	if confidence.Valid {
		c := confidence.Float64
		in.Confidence = &c
	}
	if err := json.Unmarshal([]byte(segJSON), &in.SegmentIDs); err != nil {
		return nil, fmt.Errorf("decoding segment ids: %w", err)
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		in.CreatedAt = t
	}
	return &in, nil
}

func collect(rows *sql.Rows) ([]*Insight, error) {
	var out []*Insight
	for rows.Next() {
		in, err := scanInsight(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
