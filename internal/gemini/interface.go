package gemini

import "context"

// LLM is the upstream caller interface. Handlers depend on it so tests can
// inject a mock implementation.
type LLM interface {
	// Chat performs a plain-text generation request.
	Chat(ctx context.Context, req Request) (string, error)

	// Structured performs a schema-constrained JSON generation request.
	Structured(ctx context.Context, req Request, schema map[string]any) (map[string]any, error)
}

// Compile-time check that Client implements LLM.
var _ LLM = (*Client)(nil)
