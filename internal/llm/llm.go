package llm

import (
	"context"
	"errors"
)

// Request is a single completion request.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
	// NoCache skips the response cache for reads and writes.
	NoCache bool
}

// Backend errors the gateway reacts to.
var (
	// ErrQuotaExceeded is returned by backends when the provider rate limits us.
	ErrQuotaExceeded = errors.New("llm quota exceeded")
	// ErrUnauthorized is returned by backends when the credentials are missing or rejected.
	ErrUnauthorized = errors.New("llm unauthorized")
)

// Backend is a language model provider.
type Backend interface {
	// Complete returns the raw completion text for the request.
	Complete(ctx context.Context, req Request) (string, error)
}

// Completer returns completions, it never fails, on errors it returns a fallback text.
type Completer interface {
	Complete(ctx context.Context, req Request) string
}
