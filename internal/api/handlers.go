// Package api implements the HTTP handlers for the upload backend: signature
// issuance, video reference persistence, and health reporting.
package api

import (
	"log/slog"
	"time"

	"clipflow/internal/observability/metrics"
	"clipflow/internal/storage"
)

// SignerConfig carries the credentials the backend embeds in issued
// signatures. Secret never leaves the server; APIKey and Cloud are returned
// to callers so they can address the storage service.
type SignerConfig struct {
	Secret string
	APIKey string
	Cloud  string
}

// Handler exposes the API endpoints. Store persists video references,
// Registry enforces single-use signatures.
type Handler struct {
	Store        storage.VideoRepository
	Registry     storage.SignatureRegistry
	Signer       SignerConfig
	SignatureTTL time.Duration
	Logger       *slog.Logger
	Metrics      *metrics.Recorder
}

// NewHandler wires the handler with its dependencies. Nil logger and metrics
// fall back to package defaults.
func NewHandler(store storage.VideoRepository, registry storage.SignatureRegistry, signer SignerConfig) *Handler {
	return &Handler{
		Store:        store,
		Registry:     registry,
		Signer:       signer,
		SignatureTTL: 10 * time.Minute,
		Logger:       slog.Default(),
		Metrics:      metrics.Default(),
	}
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *Handler) metrics() *metrics.Recorder {
	if h.Metrics != nil {
		return h.Metrics
	}
	return metrics.Default()
}

func (h *Handler) signatureTTL() time.Duration {
	if h.SignatureTTL > 0 {
		return h.SignatureTTL
	}
	return 10 * time.Minute
}
