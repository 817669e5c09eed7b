package embeddings

import "context"

// Embedder defines the interface for generating text embeddings.
// Implementations must be deterministic: the same text yields the same
// vector whether embedded alone or inside a batch.
type Embedder interface {
	// Embed generates embeddings for one or more texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the number of dimensions in the embedding vectors.
	Dimensions() int

	// Name returns the name/identifier of the embedding model. Indexed
	// vectors are tagged with this identifier; vectors from different
	// models are never comparable.
	Name() string
}

// MaxInputChars bounds the text sent to an embedding model. Segments beyond
// the model's window are truncated to their head before the provider call,
// so batch and single-item requests see identical bytes. Roughly 8000 tokens
// at ~4 characters per token; the tail of an over-long segment does not
// participate in retrieval.
const MaxInputChars = 32000

// truncate caps a single input at MaxInputChars.
func truncate(text string) string {
	if len(text) <= MaxInputChars {
		return text
	}
	return text[:MaxInputChars]
}

// truncateAll caps every input, returning a new slice only when needed.
func truncateAll(texts []string) []string {
	needed := false
	for _, t := range texts {
		if len(t) > MaxInputChars {
			needed = true
			break
		}
	}
	if !needed {
		return texts
	}
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = truncate(t)
	}
	return out
}
