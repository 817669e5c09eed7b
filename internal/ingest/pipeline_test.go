package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/finsight-ai/finsight/internal/db"
	"github.com/finsight-ai/finsight/internal/documents"
	"github.com/finsight-ai/finsight/internal/vectordb"
)

// memIndex records indexed entries and can be told to fail.
type memIndex struct {
	entries  map[string][]vectordb.Entry // by document id
	failAdd  bool
	persists int
}

func newMemIndex() *memIndex {
	return &memIndex{entries: map[string][]vectordb.Entry{}}
}

func (m *memIndex) AddSegments(ctx context.Context, entries []vectordb.Entry) error {
	if m.failAdd {
		return errors.New("embedding provider unavailable")
	}
	for _, e := range entries {
		m.entries[e.Metadata.DocumentID] = append(m.entries[e.Metadata.DocumentID], e)
	}
	return nil
}

func (m *memIndex) Search(ctx context.Context, query string, k int, filter *vectordb.Filter) ([]vectordb.Result, error) {
	return nil, nil
}

func (m *memIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	delete(m.entries, documentID)
	return nil
}

func (m *memIndex) Persist(ctx context.Context, dir string) error {
	m.persists++
	return nil
}

func (m *memIndex) Load(ctx context.Context, dir string) error { return nil }

func (m *memIndex) Count() int {
	n := 0
	for _, e := range m.entries {
		n += len(e)
	}
	return n
}

func (m *memIndex) ModelID() string { return "mem" }

const filing = `COMPANY NAME: Acme Corp
FILING DATE: 03/15/2025

ITEM 1. Business
We make everything.

ITEM 1A. Risk Factors
Customer concentration is a significant risk.

ITEM 7. Management's Discussion and Analysis
Total revenue was $1.2 billion.`

func setup(t *testing.T) (*Pipeline, *documents.Store, *memIndex) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	docs := documents.NewStore(database)
	index := newMemIndex()
	return NewPipeline(docs, index, "idx", nil), docs, index
}

func TestIngestNewDocument(t *testing.T) {
	pipe, docs, index := setup(t)
	ctx := context.Background()

	res, err := pipe.Ingest(ctx, Request{
		Source:  "filings/acme_10-K.txt",
		Text:    filing,
		DocType: documents.DocType10K,
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	doc := res.Document
	if doc.Company != "Acme Corp" {
		t.Errorf("company: got %q", doc.Company)
	}
	if doc.FilingDate != "03/15/2025" {
		t.Errorf("filing date: got %q", doc.FilingDate)
	}
	if res.SegmentCount < 3 {
		t.Errorf("segments: got %d, want at least 3", res.SegmentCount)
	}
	if !res.Indexed {
		t.Error("document should be indexed")
	}
	if index.Count() != res.SegmentCount {
		t.Errorf("index entries: got %d, want %d", index.Count(), res.SegmentCount)
	}
	if index.persists == 0 {
		t.Error("index should be persisted after ingestion")
	}

	stored, err := docs.Get(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != documents.StatusProcessed || !stored.Indexed {
		t.Errorf("status=%s indexed=%v", stored.Status, stored.Indexed)
	}
}

func TestAcceptDefersProcessing(t *testing.T) {
	pipe, docs, index := setup(t)
	ctx := context.Background()

	doc, reingested, err := pipe.Accept(ctx, Request{
		Source:  "filings/acme_10-K.txt",
		Text:    filing,
		DocType: documents.DocType10K,
	})
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if reingested {
		t.Error("first accept should not report reingestion")
	}
	if doc.Status != documents.StatusPending {
		t.Errorf("status after accept: %s", doc.Status)
	}
	if segs, _ := docs.Segments(ctx, doc.ID); len(segs) != 0 {
		t.Errorf("accept should not segment, got %d segments", len(segs))
	}
	if index.Count() != 0 {
		t.Errorf("accept should not index, got %d entries", index.Count())
	}

	res, err := pipe.Process(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.SegmentCount < 3 || !res.Indexed {
		t.Errorf("result: %+v", res)
	}
	stored, _ := docs.Get(ctx, doc.ID)
	if stored.Status != documents.StatusProcessed {
		t.Errorf("status after process: %s", stored.Status)
	}
}

func TestIngestUnchangedContent(t *testing.T) {
	pipe, _, _ := setup(t)
	ctx := context.Background()

	req := Request{Source: "a.txt", Text: filing, DocType: documents.DocType10K}
	if _, err := pipe.Ingest(ctx, req); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if _, err := pipe.Ingest(ctx, req); !errors.Is(err, ErrUnchanged) {
		t.Fatalf("second ingest: got %v, want ErrUnchanged", err)
	}

	// Force re-ingests anyway.
	req.Force = true
	res, err := pipe.Ingest(ctx, req)
	if err != nil {
		t.Fatalf("forced ingest: %v", err)
	}
	if !res.Reingested {
		t.Error("forced ingest should report reingestion")
	}
}

func TestReingestBumpsVersion(t *testing.T) {
	pipe, docs, index := setup(t)
	ctx := context.Background()

	first, err := pipe.Ingest(ctx, Request{Source: "a.txt", Text: filing, DocType: documents.DocType10K})
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}

	res, err := pipe.Ingest(ctx, Request{Source: "a.txt", Text: filing + "\n\nITEM 8. Financial Statements\nTables."})
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if !res.Reingested {
		t.Error("should report reingestion")
	}
	if res.Document.Version != first.Document.Version+1 {
		t.Errorf("version: got %d, want %d", res.Document.Version, first.Document.Version+1)
	}
	// Doc type carries over when the request omits it.
	if res.Document.DocType != documents.DocType10K {
		t.Errorf("doc type: got %s", res.Document.DocType)
	}

	// The index holds only the new version's segments.
	segs, _ := docs.Segments(ctx, res.Document.ID)
	if index.Count() != len(segs) {
		t.Errorf("index entries: got %d, want %d", index.Count(), len(segs))
	}
}

func TestIndexFailureLeavesDocumentUsable(t *testing.T) {
	pipe, docs, index := setup(t)
	index.failAdd = true
	ctx := context.Background()

	res, err := pipe.Ingest(ctx, Request{Source: "a.txt", Text: filing, DocType: documents.DocType10K})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Indexed {
		t.Error("indexing failed, Indexed should be false")
	}

	doc, _ := docs.Get(ctx, res.Document.ID)
	if doc.Status != documents.StatusProcessed {
		t.Errorf("status: got %s, want processed", doc.Status)
	}
	if doc.Indexed {
		t.Error("document should be marked unindexed")
	}

	// Backfill recovers once embedding works again.
	index.failAdd = false
	n, err := pipe.Backfill(ctx)
	if err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if n != 1 {
		t.Fatalf("backfilled %d documents, want 1", n)
	}
	doc, _ = docs.Get(ctx, res.Document.ID)
	if !doc.Indexed {
		t.Error("backfill should mark the document indexed")
	}
}

func TestRebuildReindexesEverything(t *testing.T) {
	pipe, _, index := setup(t)
	ctx := context.Background()

	if _, err := pipe.Ingest(ctx, Request{Source: "a.txt", Text: filing, DocType: documents.DocType10K}); err != nil {
		t.Fatalf("ingest a: %v", err)
	}
	if _, err := pipe.Ingest(ctx, Request{Source: "b.txt", Text: "COMPANY NAME: Globex\n\nShort letter to shareholders."}); err != nil {
		t.Fatalf("ingest b: %v", err)
	}

	before := index.Count()
	index.entries = map[string][]vectordb.Entry{}

	n, err := pipe.Rebuild(ctx)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if n != 2 {
		t.Fatalf("rebuilt %d documents, want 2", n)
	}
	if index.Count() != before {
		t.Errorf("index entries after rebuild: got %d, want %d", index.Count(), before)
	}
}

func TestIngestEmptyDocument(t *testing.T) {
	pipe, _, _ := setup(t)
	if _, err := pipe.Ingest(context.Background(), Request{Source: "a.txt", Text: "  \n\n  "}); err == nil {
		t.Fatal("empty document should be rejected")
	}
}
