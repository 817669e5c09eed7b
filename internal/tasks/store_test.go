package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/finsight-ai/finsight/internal/db"
	"github.com/finsight-ai/finsight/internal/documents"
)

func setup(t *testing.T) (*Store, *documents.Store) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database), documents.NewStore(database)
}

func createDoc(t *testing.T, docs *documents.Store) string {
	t.Helper()
	id, err := docs.Create(context.Background(), documents.Document{
		Company: "Acme Corp",
		DocType: documents.DocType10K,
	})
	if err != nil {
		t.Fatalf("creating document: %v", err)
	}
	return id
}

func TestEnqueueIsIdempotent(t *testing.T) {
	store, docs := setup(t)
	ctx := context.Background()
	docID := createDoc(t, docs)

	first, created, err := store.Enqueue(ctx, docID, KindAnalyze, 1)
	if err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if !created {
		t.Fatal("first enqueue should create")
	}

	second, created, err := store.Enqueue(ctx, docID, KindAnalyze, 1)
	if err != nil {
		t.Fatalf("second enqueue: %v", err)
	}
	if created {
		t.Error("duplicate enqueue should not create")
	}
	if second.ID != first.ID {
		t.Errorf("duplicate should return existing task: %s vs %s", second.ID, first.ID)
	}

	// A new document version is new work.
	_, created, err = store.Enqueue(ctx, docID, KindAnalyze, 2)
	if err != nil {
		t.Fatalf("version 2 enqueue: %v", err)
	}
	if !created {
		t.Error("different doc_version should create a new task")
	}
}

func TestConcurrentEnqueueYieldsOneTask(t *testing.T) {
	store, docs := setup(t)
	ctx := context.Background()
	docID := createDoc(t, docs)

	const workers = 8
	ids := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			task, _, err := store.Enqueue(ctx, docID, KindSummary, 1)
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = task.ID
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: %v", i, err)
		}
	}
	for i := 1; i < workers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("workers got different tasks: %s vs %s", ids[i], ids[0])
		}
	}

	pending, err := store.Pending(ctx, 0)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("got %d queued tasks, want 1", len(pending))
	}
}

func TestLifecycleTransitions(t *testing.T) {
	store, docs := setup(t)
	ctx := context.Background()
	docID := createDoc(t, docs)

	task, _, err := store.Enqueue(ctx, docID, KindMetric, 1)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := store.MarkRunning(ctx, task.ID); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	// Second claim loses.
	if err := store.MarkRunning(ctx, task.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("double claim: got %v, want ErrNotFound", err)
	}

	got, err := store.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusRunning || got.Attempts != 1 {
		t.Errorf("after claim: status=%s attempts=%d", got.Status, got.Attempts)
	}

	if err := store.MarkFailed(ctx, task.ID, "llm completion: timeout"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	got, _ = store.Get(ctx, task.ID)
	if got.Status != StatusFailed || got.LastError == "" {
		t.Errorf("after failure: status=%s lastError=%q", got.Status, got.LastError)
	}

	// Terminal states stay put.
	if err := store.MarkCanceled(ctx, task.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("canceling failed task: got %v, want ErrNotFound", err)
	}
}

func TestRequeueCountsAttempts(t *testing.T) {
	store, docs := setup(t)
	ctx := context.Background()
	docID := createDoc(t, docs)

	task, _, _ := store.Enqueue(ctx, docID, KindRisk, 1)
	for want := 1; want <= 2; want++ {
		if err := store.MarkRunning(ctx, task.ID); err != nil {
			t.Fatalf("MarkRunning: %v", err)
		}
		got, _ := store.Get(ctx, task.ID)
		if got.Attempts != want {
			t.Fatalf("attempts: got %d, want %d", got.Attempts, want)
		}
		if err := store.Requeue(ctx, task.ID, "transient"); err != nil {
			t.Fatalf("Requeue: %v", err)
		}
	}
}

func TestCancelStale(t *testing.T) {
	store, docs := setup(t)
	ctx := context.Background()
	docID := createDoc(t, docs)

	v1, _, _ := store.Enqueue(ctx, docID, KindAnalyze, 1)
	v2, _, _ := store.Enqueue(ctx, docID, KindAnalyze, 2)

	n, err := store.CancelStale(ctx, docID, 2)
	if err != nil {
		t.Fatalf("CancelStale: %v", err)
	}
	if n != 1 {
		t.Fatalf("canceled %d tasks, want 1", n)
	}

	got, _ := store.Get(ctx, v1.ID)
	if got.Status != StatusCanceled {
		t.Errorf("stale task: status=%s, want canceled", got.Status)
	}
	got, _ = store.Get(ctx, v2.ID)
	if got.Status != StatusQueued {
		t.Errorf("current task: status=%s, want queued", got.Status)
	}
}

func TestResetOrphaned(t *testing.T) {
	store, docs := setup(t)
	ctx := context.Background()
	docID := createDoc(t, docs)

	task, _, _ := store.Enqueue(ctx, docID, KindSentiment, 1)
	if err := store.MarkRunning(ctx, task.ID); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}

	n, err := store.ResetOrphaned(ctx)
	if err != nil {
		t.Fatalf("ResetOrphaned: %v", err)
	}
	if n != 1 {
		t.Fatalf("reset %d tasks, want 1", n)
	}
	got, _ := store.Get(ctx, task.ID)
	if got.Status != StatusQueued {
		t.Errorf("orphan: status=%s, want queued", got.Status)
	}
}
