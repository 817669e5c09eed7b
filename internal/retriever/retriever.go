// Package retriever answers free-text queries with the most similar indexed
// segments, resolved back to their full content and parent documents.
package retriever

import (
	"context"
	"errors"
	"fmt"

	"github.com/finsight-ai/finsight/internal/documents"
	"github.com/finsight-ai/finsight/internal/vectordb"
)

// Hit is a retrieved segment with its similarity score and the metadata of
// the document it belongs to.
type Hit struct {
	Segment    documents.Segment `json:"segment"`
	Document   documents.Document `json:"document"`
	Similarity float32            `json:"similarity"`
}

// Retriever embeds queries with the same model that built the index and
// resolves results against the document store.
type Retriever struct {
	index vectordb.Index
	docs  *documents.Store
	topK  int
}

// New creates a Retriever. defaultTopK applies when a query passes k <= 0.
func New(index vectordb.Index, docs *documents.Store, defaultTopK int) *Retriever {
	if defaultTopK < 1 {
		defaultTopK = 5
	}
	return &Retriever{index: index, docs: docs, topK: defaultTopK}
}

// Retrieve returns up to k hits for the query, closest first. The query is
// embedded by the index's own model, so query and segment vectors always
// come from the same space.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, filter *vectordb.Filter) ([]Hit, error) {
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}
	if k <= 0 {
		k = r.topK
	}

	results, err := r.index.Search(ctx, query, k, filter)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}

	docCache := make(map[string]*documents.Document)
	hits := make([]Hit, 0, len(results))
	for _, res := range results {
		seg, err := r.docs.GetSegment(ctx, res.Entry.SegmentID)
		if errors.Is(err, documents.ErrNotFound) {
			// Indexed vector for a segment that no longer exists; the index
			// lags a deletion. Skip it rather than failing the query.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolving segment %s: %w", res.Entry.SegmentID, err)
		}

		doc, ok := docCache[seg.DocumentID]
		if !ok {
			doc, err = r.docs.Get(ctx, seg.DocumentID)
			if err != nil {
				return nil, fmt.Errorf("resolving document %s: %w", seg.DocumentID, err)
			}
			docCache[seg.DocumentID] = doc
		}

		hits = append(hits, Hit{
			Segment:    *seg,
			Document:   *doc,
			Similarity: res.Similarity,
		})
	}

	return hits, nil
}

// ForDocument retrieves hits restricted to a single document, used by the
// extraction orchestrator to build per-document context.
func (r *Retriever) ForDocument(ctx context.Context, documentID, query string, k int) ([]Hit, error) {
	return r.Retrieve(ctx, query, k, &vectordb.Filter{DocumentID: &documentID})
}
