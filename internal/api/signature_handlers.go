package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"clipflow/internal/signing"
	"clipflow/internal/storage"
)

type signatureRequest struct {
	Folder       string `json:"folder"`
	ResourceType string `json:"resourceType"`
}

type signatureResponse struct {
	APIKey    string `json:"apiKey"`
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
	Cloud     string `json:"cloud,omitempty"`
}

// Signature issues a short-lived upload signature. Each signature is
// reserved in the registry at issuance so it can authorize at most one
// upload; replays are reported as an embedded error rather than a bare
// status code because clients surface that text to the user.
func (h *Handler) Signature(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req signatureRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
			return
		}
		resourceType := strings.TrimSpace(req.ResourceType)
		if resourceType == "" {
			resourceType = "video"
		}
		if resourceType != "video" {
			h.metrics().ObserveSignature("denied")
			writeJSON(w, http.StatusOK, map[string]string{
				"error": fmt.Sprintf("resource type %q is not supported", resourceType),
			})
			return
		}
		folder := strings.TrimSpace(req.Folder)

		timestamp := time.Now().Unix()
		signature := signing.SignParams(h.Signer.Secret, map[string]string{"folder": folder}, timestamp)

		if h.Registry != nil {
			if err := h.Registry.Reserve(r.Context(), signature, h.signatureTTL()); err != nil {
				if errors.Is(err, storage.ErrSignatureReplayed) {
					h.metrics().ObserveSignature("denied")
					writeJSON(w, http.StatusOK, map[string]string{
						"error": "signature already issued for these parameters",
					})
					return
				}
				h.logger().Error("signature reservation failed", "error", err)
				writeError(w, http.StatusServiceUnavailable, fmt.Errorf("signature registry unavailable"))
				return
			}
		}

		h.metrics().ObserveSignature("issued")
		h.logger().Info("signature issued", "folder", folder, "timestamp", timestamp)
		writeJSON(w, http.StatusOK, signatureResponse{
			APIKey:    h.Signer.APIKey,
			Signature: signature,
			Timestamp: timestamp,
			Cloud:     h.Signer.Cloud,
		})
	default:
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
	}
}
