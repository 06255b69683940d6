// Package llm provides completion clients for answer synthesis.
//
// Clients are single-shot: transient failures (429, 5xx, transport errors)
// are classified as retryable and the caller decides whether to retry.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/mapwright/docexpert/internal/config"
)

var (
	// ErrRateLimited indicates the provider returned 429. Transient.
	ErrRateLimited = errors.New("rate limited")

	// ErrCompletionFailed indicates a completion request failure.
	ErrCompletionFailed = errors.New("completion failed")
)

// Client generates a completion for a prompt.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// retryableError marks transient failures worth retrying.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// IsRetryable reports whether err is a transient failure.
func IsRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// Retryable wraps err as a transient failure. Exposed for fakes and for
// clients implemented outside this package.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// NewClient creates a completion client based on the configuration.
func NewClient(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "anthropic", "":
		return newAnthropicClient(cfg)
	case "openai":
		return newOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
