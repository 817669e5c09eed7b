package llm

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// Sentinel errors distinguishing model-call failure modes. Both are
// retryable with backoff; anything else from a provider is not.
var (
	ErrRateLimited = errors.New("model rate limited")
	ErrTimeout     = errors.New("model call timed out")
)

// classify wraps provider transport errors with the matching sentinel.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrTimeout, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			return errors.Join(ErrRateLimited, err)
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return errors.Join(ErrTimeout, err)
		}
	}

	return err
}
