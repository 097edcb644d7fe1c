package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"clipflow/internal/observability/logging"
)

func TestRequestIDMiddlewareEchoesIncomingID(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = logging.RequestIDFromContext(r.Context())
	})
	handler := requestIDMiddleware(nil, next)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-123")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if seen != "req-123" {
		t.Fatalf("context request id = %q, want req-123", seen)
	}
	if got := recorder.Header().Get("X-Request-Id"); got != "req-123" {
		t.Fatalf("response header = %q, want req-123", got)
	}
}

func TestRequestIDMiddlewareGeneratesWhenMissing(t *testing.T) {
	handler := requestIDMiddlewareWithGenerator(nil, func() string { return "generated-1" },
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if got := recorder.Header().Get("X-Request-Id"); got != "generated-1" {
		t.Fatalf("response header = %q, want generated-1", got)
	}
}

func TestRequestIDMiddlewarePropagatesAttemptID(t *testing.T) {
	var attempt string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt, _ = logging.AttemptIDFromContext(r.Context())
	})
	handler := requestIDMiddleware(nil, next)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads/signature", nil)
	req.Header.Set("X-Attempt-Id", "attempt-7")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if attempt != "attempt-7" {
		t.Fatalf("context attempt id = %q, want attempt-7", attempt)
	}
}
