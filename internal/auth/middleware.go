package auth

import (
	"log/slog"
	"net/http"
	"strings"
)

// Verifier validates bearer tokens presented on API requests.
type Verifier struct {
	hash   string
	logger *slog.Logger
}

// NewVerifier builds a Verifier for the given PBKDF2 token hash. An empty
// hash disables authentication entirely; the middleware then passes every
// request through.
func NewVerifier(encodedHash string, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{hash: strings.TrimSpace(encodedHash), logger: logger}
}

// Enabled reports whether a token hash is configured.
func (v *Verifier) Enabled() bool {
	return v.hash != ""
}

// Middleware rejects requests without a valid Authorization bearer token.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !v.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		token := bearerToken(r)
		if token == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "authorization required", http.StatusUnauthorized)
			return
		}
		if err := VerifyToken(v.hash, token); err != nil {
			v.logger.Warn("token rejected", "path", r.URL.Path, "remote", r.RemoteAddr)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
