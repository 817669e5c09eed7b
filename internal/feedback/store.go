package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finsight-ai/finsight/internal/db"
)

// ErrUnknownInsight is returned when a correction references an insight
// that does not exist.
var ErrUnknownInsight = errors.New("correction references unknown insight")

// Store persists corrections and computes review metrics over them.
type Store struct {
	db *db.DB
}

func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Add records a correction against an existing insight.
func (s *Store) Add(ctx context.Context, c *Correction) error {
	if c.InsightID == "" || c.CorrectedValue == "" {
		return errors.New("correction needs an insight id and a corrected value")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO corrections (id, insight_id, corrected_value, note, author, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.InsightID, c.CorrectedValue, c.Note, c.Author, c.CreatedAt.Format(time.RFC3339))
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return ErrUnknownInsight
		}
		return fmt.Errorf("saving correction: %w", err)
	}
	return nil
}

// ByInsight returns the corrections for one insight, newest first.
func (s *Store) ByInsight(ctx context.Context, insightID string) ([]*Correction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, insight_id, corrected_value, note, author, created_at
		FROM corrections WHERE insight_id = ? ORDER BY created_at DESC, id`, insightID)
	if err != nil {
		return nil, fmt.Errorf("listing corrections: %w", err)
	}
	defer rows.Close()

	var out []*Correction
	for rows.Next() {
		var c Correction
		var createdAt string
		if err := rows.Scan(&c.ID, &c.InsightID, &c.CorrectedValue, &c.Note, &c.Author, &createdAt); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			c.CreatedAt = t
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// Accuracy reports per-task agreement between the model and reviewers. An
// insight with one or more corrections counts as wrong; everything else is
// presumed right.
func (s *Store) Accuracy(ctx context.Context) ([]TaskAccuracy, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.task,
		       COUNT(*) AS total,
		       COUNT(DISTINCT c.insight_id) AS corrected
		FROM insights i
		LEFT JOIN corrections c ON c.insight_id = i.id
		GROUP BY i.task
		ORDER BY i.task`)
	if err != nil {
		return nil, fmt.Errorf("computing accuracy: %w", err)
	}
	defer rows.Close()

	var out []TaskAccuracy
	for rows.Next() {
		var a TaskAccuracy
		if err := rows.Scan(&a.Task, &a.Total, &a.Corrected); err != nil {
			return nil, err
		}
		if a.Total > 0 {
			a.Agreement = float64(a.Total-a.Corrected) / float64(a.Total)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// sentimentCounts tallies sentiment labels for insights created in
// [since, until).
func (s *Store) sentimentCounts(ctx context.Context, since, until time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT value FROM insights
		WHERE task = 'sentiment' AND created_at >= ? AND created_at < ?`,
		since.UTC().Format(time.RFC3339), until.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("counting sentiments: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		label := value
		if i := strings.IndexByte(value, ':'); i >= 0 {
			label = value[:i]
		}
		counts[strings.TrimSpace(label)]++
	}
	return counts, rows.Err()
}
