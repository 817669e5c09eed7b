package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/finsight-ai/finsight/internal/db"
	"github.com/finsight-ai/finsight/internal/documents"
)

type runnerFixture struct {
	store  *Store
	docs   *documents.Store
	docID  string
	cancel context.CancelFunc
}

func startRunner(t *testing.T, handler Handler, maxAttempts int) (*runnerFixture, *Runner) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	store := NewStore(database)
	docs := documents.NewStore(database)
	docID, err := docs.Create(context.Background(), documents.Document{
		Company: "Acme Corp",
		DocType: documents.DocType10K,
	})
	if err != nil {
		t.Fatalf("creating document: %v", err)
	}

	runner := NewRunner(store, docs, handler, RunnerConfig{
		Concurrency:  2,
		MaxAttempts:  maxAttempts,
		PollInterval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go runner.Run(ctx)

	return &runnerFixture{store: store, docs: docs, docID: docID, cancel: cancel}, runner
}

func waitForStatus(t *testing.T, store *Store, id string, want Status) *Task {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		task, err := store.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if task.Status == want {
			return task
		}
		time.Sleep(5 * time.Millisecond)
	}
	task, _ := store.Get(context.Background(), id)
	t.Fatalf("task never reached %s, stuck at %s", want, task.Status)
	return nil
}

func TestRunnerExecutesQueuedTask(t *testing.T) {
	var mu sync.Mutex
	var handled []string
	fx, runner := startRunner(t, func(ctx context.Context, task *Task) error {
		mu.Lock()
		handled = append(handled, task.ID)
		mu.Unlock()
		return nil
	}, 1)

	task, err := runner.Submit(context.Background(), fx.docID, KindAnalyze, 1)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	waitForStatus(t, fx.store, task.ID, StatusDone)
	mu.Lock()
	defer mu.Unlock()
	if len(handled) != 1 || handled[0] != task.ID {
		t.Errorf("handled tasks: %v", handled)
	}
}

func TestRunnerRetriesThenFails(t *testing.T) {
	var calls int32
	var mu sync.Mutex
	fx, runner := startRunner(t, func(ctx context.Context, task *Task) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return errors.New("provider unavailable")
	}, 3)

	task, err := runner.Submit(context.Background(), fx.docID, KindSummary, 1)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	failed := waitForStatus(t, fx.store, task.ID, StatusFailed)
	if failed.Attempts != 3 {
		t.Errorf("attempts: got %d, want 3", failed.Attempts)
	}
	if failed.LastError == "" {
		t.Error("last error should be recorded")
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 3 {
		t.Errorf("handler calls: got %d, want 3", calls)
	}
}

func TestRunnerFailsPermanentErrorWithoutRequeue(t *testing.T) {
	var calls int32
	var mu sync.Mutex
	fx, runner := startRunner(t, func(ctx context.Context, task *Task) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return Permanent(errors.New("retry budget already spent"))
	}, 3)

	task, err := runner.Submit(context.Background(), fx.docID, KindSummary, 1)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	failed := waitForStatus(t, fx.store, task.ID, StatusFailed)
	if failed.Attempts != 1 {
		t.Errorf("attempts: got %d, want 1", failed.Attempts)
	}
	if failed.LastError != "retry budget already spent" {
		t.Errorf("last error: got %q", failed.LastError)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("handler calls: got %d, want 1", calls)
	}
}

func TestRunnerCancelsStaleVersion(t *testing.T) {
	release := make(chan struct{})
	fx, runner := startRunner(t, func(ctx context.Context, task *Task) error {
		<-release
		return nil
	}, 1)

	task, err := runner.Submit(context.Background(), fx.docID, KindAnalyze, 1)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForStatus(t, fx.store, task.ID, StatusRunning)

	// Re-ingestion bumps the version while the handler is mid-flight.
	if _, err := fx.docs.BumpVersion(context.Background(), fx.docID); err != nil {
		t.Fatalf("BumpVersion: %v", err)
	}
	close(release)

	canceled := waitForStatus(t, fx.store, task.ID, StatusCanceled)
	if canceled.Status != StatusCanceled {
		t.Errorf("stale task: status=%s", canceled.Status)
	}
}

func TestRunnerSkipsAlreadyStaleTask(t *testing.T) {
	var calls int32
	var mu sync.Mutex
	fx, runner := startRunner(t, func(ctx context.Context, task *Task) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	}, 1)

	// Enqueue against version 1, then bump before the runner picks it up.
	task, _, err := fx.store.Enqueue(context.Background(), fx.docID, KindMetric, 1)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := fx.docs.BumpVersion(context.Background(), fx.docID); err != nil {
		t.Fatalf("BumpVersion: %v", err)
	}

	waitForStatus(t, fx.store, task.ID, StatusCanceled)
	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("handler should not run for a stale task, calls = %d", calls)
	}

	_ = runner
}

func TestRunnerPublishesUpdates(t *testing.T) {
	fx, runner := startRunner(t, func(ctx context.Context, task *Task) error {
		return nil
	}, 1)

	updates, cancel := runner.Subscribe()
	defer cancel()

	task, err := runner.Submit(context.Background(), fx.docID, KindSentiment, 1)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	seen := map[Status]bool{}
	deadline := time.After(3 * time.Second)
	for !seen[StatusDone] {
		select {
		case u := <-updates:
			if u.ID == task.ID {
				seen[u.Status] = true
			}
		case <-deadline:
			t.Fatalf("never saw done update, saw %v", seen)
		}
	}
	if !seen[StatusQueued] || !seen[StatusRunning] {
		t.Errorf("missing lifecycle updates: %v", seen)
	}
}
