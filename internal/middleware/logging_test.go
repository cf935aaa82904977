package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
)

type logEntry struct {
	level slog.Level
	msg   string
	attrs map[string]any
}

type recordingHandler struct {
	level   slog.Level
	attrs   []slog.Attr
	mu      sync.Mutex
	entries []logEntry
}

func (h *recordingHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *recordingHandler) Handle(_ context.Context, record slog.Record) error {
	attrs := map[string]any{}
	for _, attr := range h.attrs {
		attrs[attr.Key] = attr.Value.Any()
	}
	record.Attrs(func(attr slog.Attr) bool {
		attrs[attr.Key] = attr.Value.Any()
		return true
	})

	h.mu.Lock()
	h.entries = append(h.entries, logEntry{
		level: record.Level,
		msg:   record.Message,
		attrs: attrs,
	})
	h.mu.Unlock()
	return nil
}

func (h *recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &recordingHandler{
		level: h.level,
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *recordingHandler) WithGroup(_ string) slog.Handler {
	return &recordingHandler{level: h.level, attrs: h.attrs}
}

func (h *recordingHandler) Entries() []logEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries := make([]logEntry, len(h.entries))
	copy(entries, h.entries)
	return entries
}

func serveLogged(t *testing.T, handler *recordingHandler, path string, status int) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(handler)

	router := gin.New()
	router.Use(RequestID(), RequestLogger(logger))
	router.GET(path, func(c *gin.Context) { c.Status(status) })

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set(RequestIDHeader, "req-test")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
}

func TestRequestLoggerLogsDebugOnSuccess(t *testing.T) {
	handler := &recordingHandler{level: slog.LevelDebug}
	serveLogged(t, handler, "/api/chat", http.StatusOK)

	entries := handler.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.level != slog.LevelDebug {
		t.Fatalf("expected debug level, got %s", entry.level)
	}
	if entry.msg != "http_request" {
		t.Fatalf("expected http_request message, got %q", entry.msg)
	}
	if entry.attrs["request_id"] != "req-test" {
		t.Fatalf("expected request_id=req-test, got %v", entry.attrs["request_id"])
	}
	if fmt.Sprint(entry.attrs["status"]) != "200" {
		t.Fatalf("expected status=200, got %v", entry.attrs["status"])
	}
}

func TestRequestLoggerSkipsHealthOnSuccess(t *testing.T) {
	handler := &recordingHandler{level: slog.LevelDebug}
	serveLogged(t, handler, "/health/ready", http.StatusOK)

	if entries := handler.Entries(); len(entries) != 0 {
		t.Fatalf("expected no log entry, got %d", len(entries))
	}
}

func TestRequestLoggerLogsWarnOnClientError(t *testing.T) {
	handler := &recordingHandler{level: slog.LevelDebug}
	serveLogged(t, handler, "/api/chat", http.StatusBadRequest)

	entries := handler.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0].level != slog.LevelWarn {
		t.Fatalf("expected warn level, got %s", entries[0].level)
	}
}

func TestRequestLoggerLogsErrorOnServerError(t *testing.T) {
	handler := &recordingHandler{level: slog.LevelDebug}
	serveLogged(t, handler, "/api/chat", http.StatusInternalServerError)

	entries := handler.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0].level != slog.LevelError {
		t.Fatalf("expected error level, got %s", entries[0].level)
	}
}

func TestRequestLoggerLogsHealthFailures(t *testing.T) {
	handler := &recordingHandler{level: slog.LevelDebug}
	serveLogged(t, handler, "/health", http.StatusServiceUnavailable)

	entries := handler.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected failing health probe to be logged, got %d entries", len(entries))
	}
}
