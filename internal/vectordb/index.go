package vectordb

import "context"

// Index defines the interface for storing and searching segment embeddings.
// The index is a derived cache: losing it costs a re-embedding pass, never
// data.
type Index interface {
	// AddSegments adds or updates segment entries in the index. Additions
	// are incremental; no rebuild is required.
	AddSegments(ctx context.Context, entries []Entry) error

	// Search returns the k entries nearest to the query text, closest
	// first. Exact score ties keep segment insertion order.
	Search(ctx context.Context, query string, k int, filter *Filter) ([]Result, error)

	// DeleteByDocument removes all entries belonging to the given document.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Persist saves the index snapshot to the given directory.
	Persist(ctx context.Context, dir string) error

	// Load restores the index from the given directory. Loading a snapshot
	// built by a different embedding model fails with ErrModelMismatch.
	Load(ctx context.Context, dir string) error

	// Count returns the total number of indexed segments.
	Count() int

	// ModelID returns the embedding model identifier the index is bound to.
	ModelID() string
}
