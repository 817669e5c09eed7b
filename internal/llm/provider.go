package llm

import "context"

// Provider defines the interface for LLM providers.
type Provider interface {
	// Complete sends a completion request and returns the response.
	// Transport-level failures are classified: rate limiting surfaces as
	// ErrRateLimited and deadline expiry as ErrTimeout, so callers can
	// distinguish retryable conditions from malformed output.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name returns the name of this provider.
	Name() string
}
