package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/finsight-ai/finsight/internal/documents"
)

// Handler executes one task. It must not commit results for a document
// version other than task.DocVersion.
type Handler func(ctx context.Context, task *Task) error

// Permanent marks err as final: the runner fails the task on the first
// attempt instead of requeueing. Handlers whose work already carries its own
// retry budget (the extraction orchestrator retries transport errors with
// backoff and re-prompts once on schema violations) return Permanent errors
// so the two budgets do not multiply.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func isPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Runner polls the store for queued tasks and executes them on a bounded
// worker pool. Each task's document version is checked before and after the
// handler runs; work against a superseded version is canceled rather than
// committed.
type Runner struct {
	store       *Store
	docs        *documents.Store
	handler     Handler
	concurrency int
	maxAttempts int
	interval    time.Duration
	logger      *zap.Logger

	wake chan struct{}

	mu     sync.Mutex
	nextID int
	subs   map[int]chan Task
}

// RunnerConfig carries the runner tunables.
type RunnerConfig struct {
	Concurrency  int
	MaxAttempts  int
	PollInterval time.Duration
	Logger       *zap.Logger
}

func NewRunner(store *Store, docs *documents.Store, handler Handler, cfg RunnerConfig) *Runner {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Runner{
		store:       store,
		docs:        docs,
		handler:     handler,
		concurrency: cfg.Concurrency,
		maxAttempts: cfg.MaxAttempts,
		interval:    cfg.PollInterval,
		logger:      cfg.Logger,
		wake:        make(chan struct{}, 1),
		subs:        make(map[int]chan Task),
	}
}

// Submit enqueues work and wakes the poll loop. Duplicate submissions for
// the same (document, kind, version) return the already-queued task.
func (r *Runner) Submit(ctx context.Context, documentID string, kind Kind, docVersion int) (*Task, error) {
	task, created, err := r.store.Enqueue(ctx, documentID, kind, docVersion)
	if err != nil {
		return nil, err
	}
	if created {
		r.publish(*task)
		select {
		case r.wake <- struct{}{}:
		default:
		}
	}
	return task, nil
}

// Run processes queued tasks until ctx is canceled. Orphaned running tasks
// from a previous process are requeued first.
func (r *Runner) Run(ctx context.Context) error {
	if n, err := r.store.ResetOrphaned(ctx); err != nil {
		return err
	} else if n > 0 {
		r.logger.Info("requeued orphaned tasks", zap.Int("count", n))
	}

	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		pending, err := r.store.Pending(ctx, r.concurrency*2)
		if err != nil {
			r.logger.Error("polling tasks", zap.Error(err))
		}
		for _, task := range pending {
			select {
			case <-ctx.Done():
				wg.Wait()
				return ctx.Err()
			case sem <- struct{}{}:
			}
			wg.Add(1)
			go func(t *Task) {
				defer wg.Done()
				defer func() { <-sem }()
				r.execute(ctx, t)
			}(task)
		}

		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case <-ticker.C:
		case <-r.wake:
		}
	}
}

func (r *Runner) execute(ctx context.Context, task *Task) {
	if stale, err := r.isStale(ctx, task); err != nil {
		r.logger.Error("checking document version", zap.String("task", task.ID), zap.Error(err))
		return
	} else if stale {
		r.transition(ctx, task, func() error { return r.store.MarkCanceled(ctx, task.ID) })
		return
	}

	if err := r.store.MarkRunning(ctx, task.ID); err != nil {
		// Another worker claimed it.
		return
	}
	task.Status = StatusRunning
	task.Attempts++
	r.publish(*task)

	err := r.handler(ctx, task)

	// The document may have been re-ingested while the handler ran.
	if stale, staleErr := r.isStale(ctx, task); staleErr == nil && stale {
		r.transition(ctx, task, func() error { return r.store.MarkCanceled(ctx, task.ID) })
		return
	}

	switch {
	case err == nil:
		r.transition(ctx, task, func() error { return r.store.MarkDone(ctx, task.ID) })
	case task.Attempts < r.maxAttempts && ctx.Err() == nil && !isPermanent(err):
		r.logger.Warn("task failed, requeueing",
			zap.String("task", task.ID), zap.String("kind", string(task.Kind)),
			zap.Int("attempt", task.Attempts), zap.Error(err))
		r.transition(ctx, task, func() error { return r.store.Requeue(ctx, task.ID, err.Error()) })
	default:
		r.logger.Error("task failed",
			zap.String("task", task.ID), zap.String("kind", string(task.Kind)), zap.Error(err))
		r.transition(ctx, task, func() error { return r.store.MarkFailed(ctx, task.ID, err.Error()) })
	}
}

func (r *Runner) isStale(ctx context.Context, task *Task) (bool, error) {
	doc, err := r.docs.Get(ctx, task.DocumentID)
	if err != nil {
		return false, fmt.Errorf("loading document %s: %w", task.DocumentID, err)
	}
	return doc.Version != task.DocVersion, nil
}

func (r *Runner) transition(ctx context.Context, task *Task, apply func() error) {
	if err := apply(); err != nil {
		r.logger.Error("updating task state", zap.String("task", task.ID), zap.Error(err))
		return
	}
	updated, err := r.store.Get(ctx, task.ID)
	if err != nil {
		return
	}
	r.publish(*updated)
}

// Subscribe returns a channel that receives task state changes. The caller
// must invoke the cancel func when done. Slow subscribers drop updates
// instead of blocking the runner.
func (r *Runner) Subscribe() (<-chan Task, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	ch := make(chan Task, 16)
	r.subs[id] = ch
	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if sub, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(sub)
		}
	}
}

func (r *Runner) publish(task Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- task:
		default:
		}
	}
}
