package httperror

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/medibot/medibot-backend/internal/gemini"
	"github.com/medibot/medibot-backend/internal/guard"
)

// BlockedMessage is returned for inputs rejected by the injection guard.
const BlockedMessage = "Your query was blocked by the safety filter. Please rephrase your question."

// ValidationMessage is returned for malformed request bodies.
const ValidationMessage = "Invalid request body."

// ErrorResponse is the wire envelope for every failed request. Failures share
// the "response" key with successful text replies.
type ErrorResponse struct {
	Response string `json:"response"`
}

// Response maps a processing failure to a status code and response body. The
// fallback message is used for every server-side failure so upstream detail
// never leaks to clients.
func Response(err error, fallback string) (int, ErrorResponse) {
	status, message := classify(err, fallback)
	return status, ErrorResponse{Response: message}
}

func classify(err error, fallback string) (int, string) {
	if err == nil {
		return http.StatusInternalServerError, fallback
	}

	var blocked *guard.BlockedError
	if errors.As(err, &blocked) {
		return http.StatusBadRequest, BlockedMessage
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return http.StatusBadRequest, ValidationMessage
	}

	// Upstream failures all collapse to the caller's generic message: the
	// status and raw error are logged server-side only.
	var upstream *gemini.UpstreamError
	if errors.As(err, &upstream) {
		return http.StatusInternalServerError, fallback
	}
	var transport *gemini.TransportError
	if errors.As(err, &transport) {
		return http.StatusInternalServerError, fallback
	}
	var parseErr *gemini.ParseError
	if errors.As(err, &parseErr) {
		return http.StatusInternalServerError, fallback
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return http.StatusInternalServerError, fallback
	}

	return http.StatusInternalServerError, fallback
}
