package server

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"clipflow/internal/auth"
)

func testVerifier(token string) *auth.Verifier {
	salt := []byte("0123456789abcdef")
	derived := pbkdf2.Key([]byte(token), salt, 1000, 32, sha256.New)
	hash := fmt.Sprintf("pbkdf2$sha256$1000$%s$%s",
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(derived))
	return auth.NewVerifier(hash, nil)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddlewareProtectsAPIOnly(t *testing.T) {
	handler := authMiddleware(testVerifier("secret-token"), okHandler())

	cases := []struct {
		path       string
		token      string
		wantStatus int
	}{
		{"/healthz", "", http.StatusOK},
		{"/metrics", "", http.StatusOK},
		{"/api/v1/videos", "", http.StatusUnauthorized},
		{"/api/v1/videos", "secret-token", http.StatusOK},
		{"/api/v1/uploads/signature", "wrong", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.token != "" {
			req.Header.Set("Authorization", "Bearer "+tc.token)
		}
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		if recorder.Code != tc.wantStatus {
			t.Errorf("%s with token %q: status = %d, want %d", tc.path, tc.token, recorder.Code, tc.wantStatus)
		}
	}
}

func TestAuthMiddlewarePassthroughWhenDisabled(t *testing.T) {
	handler := authMiddleware(auth.NewVerifier("", nil), okHandler())
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/videos", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	handler := securityHeadersMiddleware(SecurityConfig{}, okHandler())
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	want := map[string]string{
		"Content-Security-Policy": defaultAPIContentPolicy,
		"X-Frame-Options":         "DENY",
		"X-Content-Type-Options":  "nosniff",
		"Referrer-Policy":         "no-referrer",
		"Permissions-Policy":      defaultPermissionsPolicy,
	}
	for header, value := range want {
		if got := recorder.Header().Get(header); got != value {
			t.Errorf("%s = %q, want %q", header, got, value)
		}
	}
}

func TestRateLimitMiddlewareThrottlesSignatureRequests(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{SignatureLimit: 1, SignatureWindow: time.Minute})
	handler := rateLimitMiddleware(rl, nil, okHandler())

	request := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads/signature", nil)
		req.RemoteAddr = "10.0.0.1:40000"
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		return recorder
	}

	if got := request(); got.Code != http.StatusOK {
		t.Fatalf("first request: status = %d, want 200", got.Code)
	}
	second := request()
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status = %d, want 429", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatal("throttled response must carry Retry-After")
	}

	// Other endpoints stay unaffected.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos/status", nil)
	req.RemoteAddr = "10.0.0.1:40000"
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status endpoint: status = %d, want 200", recorder.Code)
	}
}

func TestExtractClientIP(t *testing.T) {
	cases := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"remote addr", "192.0.2.1:5000", nil, "192.0.2.1"},
		{"x-forwarded-for", "10.0.0.1:5000", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "203.0.113.7"},
		{"x-real-ip", "10.0.0.1:5000", map[string]string{"X-Real-IP": "203.0.113.9"}, "203.0.113.9"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			if got := extractClientIP(req); got != tc.want {
				t.Fatalf("extractClientIP = %q, want %q", got, tc.want)
			}
		})
	}
}
