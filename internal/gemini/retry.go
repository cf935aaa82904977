package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// ErrMaxRetries is returned when every attempt failed without a
// distinguishable last upstream error.
var ErrMaxRetries = errors.New("maximum number of retries reached for upstream request")

// TransportError is a connection-level failure (dial, TLS, timeout). Never
// retried; the upstream was possibly never reached.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("error connecting to the generative language api: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UpstreamError is an HTTP-level failure reported by the upstream API.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream api error: status=%d message=%s", e.Status, e.Message)
}

// Retryable reports whether the status is transient: rate limiting or
// server-side failure. Other client errors are permanent and surfaced
// immediately so they are not masked by retries.
func (e *UpstreamError) Retryable() bool {
	switch e.Status {
	case 429, 500, 503:
		return true
	default:
		return false
	}
}

// ParseError is a structured response that was not valid JSON. Carries the
// raw model output for logging.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse model response as JSON, raw response: %s", e.Raw)
}

func (e *ParseError) Unwrap() error { return e.Err }

// backoffDelay is the pure attempt-to-delay function: base, 2*base, 4*base,
// 8*base for attempts 0..3.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(1<<attempt)
}

// classifyCallError splits a genai call failure into the HTTP and transport
// variants.
func classifyCallError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{Status: apiErr.Code, Message: apiErr.Message}
	}
	return &TransportError{Err: err}
}

// generateWithRetry runs the upstream call with exponential backoff over
// transient HTTP failures. Transport errors and permanent HTTP statuses are
// surfaced immediately.
func (c *Client) generateWithRetry(
	ctx context.Context,
	call func(ctx context.Context) (*genai.GenerateContentResponse, error),
) (*genai.GenerateContentResponse, error) {
	base := time.Duration(c.cfg.Gemini.BaseDelaySeconds) * time.Second
	maxAttempts := c.cfg.Gemini.MaxAttempts

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		response, err := call(ctx)
		if err == nil {
			return response, nil
		}

		classified := classifyCallError(err)
		lastErr = classified

		var upstream *UpstreamError
		if !errors.As(classified, &upstream) || !upstream.Retryable() {
			return nil, classified
		}
		if attempt == maxAttempts-1 {
			break
		}
		if err := c.wait(ctx, backoffDelay(base, attempt)); err != nil {
			return nil, err
		}
	}

	if lastErr == nil {
		return nil, ErrMaxRetries
	}
	return nil, lastErr
}

func (c *Client) wait(ctx context.Context, delay time.Duration) error {
	if c.sleep != nil {
		return c.sleep(ctx, delay)
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
