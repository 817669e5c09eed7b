package vectordb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/finsight-ai/finsight/internal/embeddings"
)

const (
	collectionName = "segments"
	snapshotFile   = "chromem.gob.gz"
	modelTagFile   = "embedding_model"
)

// ErrModelMismatch is returned when a persisted index was built with a
// different embedding model than the one configured. Vectors from different
// models are not comparable; the index must be rebuilt.
var ErrModelMismatch = errors.New("index embedding model mismatch")

// ChromemIndex implements Index using chromem-go.
type ChromemIndex struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embeddings.Embedder
	embedFunc  chromem.EmbeddingFunc

	mu sync.Mutex // serializes snapshot writes
}

// NewChromemIndex creates a new in-memory ChromemIndex bound to the given
// embedder.
func NewChromemIndex(embedder embeddings.Embedder) (*ChromemIndex, error) {
	db := chromem.NewDB()
	ef := embeddings.ToChromemFunc(embedder)

	col, err := db.GetOrCreateCollection(collectionName, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &ChromemIndex{
		db:         db,
		collection: col,
		embedder:   embedder,
		embedFunc:  ef,
	}, nil
}

func (x *ChromemIndex) ModelID() string {
	return x.embedder.Name()
}

func (x *ChromemIndex) AddSegments(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(entries))
	for i, e := range entries {
		docs[i] = chromem.Document{
			ID:       e.SegmentID,
			Content:  e.Text,
			Metadata: metadataToMap(e.Metadata),
		}
	}

	return x.collection.AddDocuments(ctx, docs, 1)
}

func (x *ChromemIndex) Search(ctx context.Context, query string, k int, filter *Filter) ([]Result, error) {
	if k <= 0 {
		k = 5
	}

	// chromem-go requires nResults <= collection size.
	if count := x.collection.Count(); k > count && count > 0 {
		k = count
	} else if count == 0 {
		return nil, nil
	}

	results, err := x.collection.Query(ctx, query, k, buildWhereClause(filter), nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	out := make([]Result, len(results))
	for i, r := range results {
		out[i] = Result{
			Entry: Entry{
				SegmentID: r.ID,
				Text:      r.Content,
				Metadata:  mapToMetadata(r.Metadata),
			},
			Similarity: r.Similarity,
		}
	}

	// chromem's ordering on exact score ties is unspecified; re-sort so ties
	// keep segment insertion order.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Entry.Metadata.Ordinal < out[j].Entry.Metadata.Ordinal
	})

	return out, nil
}

func (x *ChromemIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	where := map[string]string{"document_id": documentID}
	return x.collection.Delete(ctx, where, nil)
}

func (x *ChromemIndex) Persist(ctx context.Context, dir string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	if err := x.db.ExportToFile(filepath.Join(dir, snapshotFile), true, ""); err != nil {
		return fmt.Errorf("export index: %w", err)
	}
	// Tag the snapshot with the embedding model so a later Load can refuse
	// vectors it cannot compare against.
	if err := os.WriteFile(filepath.Join(dir, modelTagFile), []byte(x.embedder.Name()+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing model tag: %w", err)
	}
	return nil
}

func (x *ChromemIndex) Load(ctx context.Context, dir string) error {
	tag, err := os.ReadFile(filepath.Join(dir, modelTagFile))
	if err != nil {
		return fmt.Errorf("reading model tag: %w", err)
	}
	if got := strings.TrimSpace(string(tag)); got != x.embedder.Name() {
		return fmt.Errorf("%w: snapshot built with %q, configured model is %q (rebuild the index)",
			ErrModelMismatch, got, x.embedder.Name())
	}

	if err := x.db.ImportFromFile(filepath.Join(dir, snapshotFile), ""); err != nil {
		return fmt.Errorf("import index: %w", err)
	}

	// Re-acquire collection reference after import.
	col := x.db.GetCollection(collectionName, x.embedFunc)
	if col == nil {
		return fmt.Errorf("collection %q not found after import", collectionName)
	}
	x.collection = col
	return nil
}

func (x *ChromemIndex) Count() int {
	return x.collection.Count()
}

// metadataToMap converts EntryMetadata to a flat map[string]string for chromem.
func metadataToMap(m EntryMetadata) map[string]string {
	return map[string]string{
		"document_id": m.DocumentID,
		"section":     m.Section,
		"ordinal":     strconv.Itoa(m.Ordinal),
		"company":     m.Company,
		"doc_type":    m.DocType,
	}
}

// mapToMetadata converts a flat map[string]string back to EntryMetadata.
func mapToMetadata(m map[string]string) EntryMetadata {
	ordinal, _ := strconv.Atoi(m["ordinal"])
	return EntryMetadata{
		DocumentID: m["document_id"],
		Section:    m["section"],
		Ordinal:    ordinal,
		Company:    m["company"],
		DocType:    m["doc_type"],
	}
}

// buildWhereClause converts a Filter to a chromem where clause.
func buildWhereClause(filter *Filter) map[string]string {
	if filter == nil {
		return nil
	}

	where := make(map[string]string)
	if filter.DocumentID != nil {
		where["document_id"] = *filter.DocumentID
	}
	if filter.Company != nil {
		where["company"] = *filter.Company
	}
	if filter.DocType != nil {
		where["doc_type"] = *filter.DocType
	}

	if len(where) == 0 {
		return nil
	}
	return where
}
