package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

func getPath(t *testing.T, router *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestRootStatus(t *testing.T) {
	router := newTestRouter(t, &mockLLM{})

	resp := getPath(t, router, "/")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body StatusResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Status != "MediBot Backend is running and ready for API calls!" {
		t.Fatalf("unexpected status message: %q", body.Status)
	}
}

func TestHealthShallowAlwaysOK(t *testing.T) {
	router := newTestRouter(t, &mockLLM{})

	resp := getPath(t, router, "/health")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestReadinessDegradedWithoutAPIKey(t *testing.T) {
	router := newTestRouter(t, &mockLLM{})

	resp := getPath(t, router, "/health/ready")
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without api key, got %d", resp.Code)
	}
}

func TestAPIMetricsSnapshot(t *testing.T) {
	router := newTestRouter(t, &mockLLM{})

	resp := getPath(t, router, "/api/metrics")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var snapshot map[string]float64
	if err := json.Unmarshal(resp.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	if _, ok := snapshot["total_calls"]; !ok {
		t.Fatalf("expected total_calls counter, got %v", snapshot)
	}
}

func TestCORSAllowsAnyOrigin(t *testing.T) {
	router := newTestRouter(t, &mockLLM{chatText: "hello"})

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	// httptest.NewRequest defaults Host to example.com; it must differ from
	// the Origin host or the middleware treats the request as same-origin.
	req.Host = "medibot-backend.test"
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", resp.Code)
	}
	if resp.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected any-origin header, got %q", resp.Header().Get("Access-Control-Allow-Origin"))
	}
}
