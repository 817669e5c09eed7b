package tasks

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

// Kind names a unit of background work.
type Kind string

const (
	KindIngest    Kind = "ingest"
	KindAnalyze   Kind = "analyze"
	KindMetric    Kind = "metric"
	KindRisk      Kind = "risk"
	KindSentiment Kind = "sentiment"
	KindSummary   Kind = "summary"
)

// Status is a task's lifecycle state.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusRunning  Status = "running"
	StatusDone     Status = "done"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// Task is one persisted unit of work against a specific document version.
// A task whose doc_version no longer matches the document is stale and gets
// canceled instead of committed.
type Task struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Kind       Kind      `json:"kind"`
	DocVersion int       `json:"doc_version"`
	Status     Status    `json:"status"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"last_error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ErrNotFound is returned when no task matches the given id.
var ErrNotFound = errors.New("task not found")

// Store persists tasks in SQLite so queued work survives restarts.
type Store struct {
	db *db.DB
}

func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Enqueue inserts a queued task. The (document_id, kind, doc_version) key is
// unique: enqueueing the same work twice returns the existing task with
// created=false instead of a duplicate row.
func (s *Store) Enqueue(ctx context.Context, documentID string, kind Kind, docVersion int) (*Task, bool, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO extraction_tasks (id, document_id, kind, doc_version, status)
		VALUES (?, ?, ?, ?, ?)`,
		id, documentID, string(kind), docVersion, string(StatusQueued))
	if err != nil {
		if isUniqueViolation(err) {
			existing, getErr := s.find(ctx, documentID, kind, docVersion)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("enqueueing task: %w", err)
	}

	task, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return task, true, nil
}

// Get returns a task by id.
func (s *Store) Get(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, selectCols+` FROM extraction_tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return task, err
}

func (s *Store) find(ctx context.Context, documentID string, kind Kind, docVersion int) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		selectCols+` FROM extraction_tasks WHERE document_id = ? AND kind = ? AND doc_version = ?`,
		documentID, string(kind), docVersion)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return task, err
}

// Pending returns queued tasks, oldest first.
func (s *Store) Pending(ctx context.Context, limit int) ([]*Task, error) {
	query := selectCols + ` FROM extraction_tasks WHERE status = ? ORDER BY created_at, id`
	args := []any{string(StatusQueued)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing pending tasks: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

// ByDocument returns every task for a document, newest first.
func (s *Store) ByDocument(ctx context.Context, documentID string) ([]*Task, error) {
	rows, err := s.db.QueryContext(ctx,
		selectCols+` FROM extraction_tasks WHERE document_id = ? ORDER BY created_at DESC, id`,
		documentID)
	if err != nil {
		return nil, fmt.Errorf("listing document tasks: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

// MarkRunning transitions a queued task to running and counts the attempt.
func (s *Store) MarkRunning(ctx context.Context, id string) error {
	return s.update(ctx, id, `
		UPDATE extraction_tasks
		SET status = 'running', attempts = attempts + 1, updated_at = datetime('now')
		WHERE id = ? AND status = 'queued'`)
}

// MarkDone transitions a running task to done.
func (s *Store) MarkDone(ctx context.Context, id string) error {
	return s.update(ctx, id, `
		UPDATE extraction_tasks SET status = 'done', last_error = '', updated_at = datetime('now')
		WHERE id = ? AND status = 'running'`)
}

// MarkFailed records the error and moves a running task to failed.
func (s *Store) MarkFailed(ctx context.Context, id string, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE extraction_tasks SET status = 'failed', last_error = ?, updated_at = datetime('now')
		WHERE id = ? AND status = 'running'`, errMsg, id)
	if err != nil {
		return fmt.Errorf("updating task: %w", err)
	}
	return requireRow(res)
}

// Requeue puts a running task back in the queue for another attempt.
func (s *Store) Requeue(ctx context.Context, id string, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE extraction_tasks SET status = 'queued', last_error = ?, updated_at = datetime('now')
		WHERE id = ? AND status = 'running'`, errMsg, id)
	if err != nil {
		return fmt.Errorf("updating task: %w", err)
	}
	return requireRow(res)
}

// MarkCanceled cancels a task regardless of its current non-terminal state.
func (s *Store) MarkCanceled(ctx context.Context, id string) error {
	return s.update(ctx, id, `
		UPDATE extraction_tasks SET status = 'canceled', updated_at = datetime('now')
		WHERE id = ? AND status IN ('queued', 'running')`)
}

// CancelStale cancels queued and running tasks that target an older version
// of the document. Called after a document's version bumps so in-flight
// work against superseded content never commits.
func (s *Store) CancelStale(ctx context.Context, documentID string, currentVersion int) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE extraction_tasks SET status = 'canceled', updated_at = datetime('now')
		WHERE document_id = ? AND doc_version < ? AND status IN ('queued', 'running')`,
		documentID, currentVersion)
	if err != nil {
		return 0, fmt.Errorf("canceling stale tasks: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ResetOrphaned requeues tasks left in running state by a crashed process.
// Called once at startup before the runner begins polling.
func (s *Store) ResetOrphaned(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE extraction_tasks SET status = 'queued', updated_at = datetime('now')
		WHERE status = 'running'`)
	if err != nil {
		return 0, fmt.Errorf("resetting orphaned tasks: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *Store) update(ctx context.Context, id, query string) error {
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("updating task: %w", err)
	}
	return requireRow(res)
}

const selectCols = `SELECT id, document_id, kind, doc_version, status, attempts, last_error, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*Task, error) {
	var t Task
	var kind, status, createdAt, updatedAt string
	err := row.Scan(&t.ID, &t.DocumentID, &kind, &t.DocVersion, &status,
		&t.Attempts, &t.LastError, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	t.Kind = Kind(kind)
	t.Status = Status(status)
	t.CreatedAt = parseDBTime(createdAt)
	t.UpdatedAt = parseDBTime(updatedAt)
	return &t, nil
}

func collect(rows *sql.Rows) ([]*Task, error) {
	var out []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func parseDBTime(s string) time.Time {
	if t, err := time.Parse(time.DateTime, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
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

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
