package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"clipflow/internal/storage"
)

type createVideoRequest struct {
	VideoURL string `json:"videoUrl"`
	PublicID string `json:"publicId"`
}

type deleteVideoRequest struct {
	ID       string `json:"id"`
	PublicID string `json:"publicId"`
}

// Videos persists and removes video references.
func (h *Handler) Videos(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req createVideoRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
			return
		}
		videoURL := strings.TrimSpace(req.VideoURL)
		publicID := strings.TrimSpace(req.PublicID)
		if videoURL == "" || publicID == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("videoUrl and publicId are required"))
			return
		}
		ref, err := h.Store.CreateVideoReference(r.Context(), videoURL, publicID)
		if err != nil {
			h.metrics().ObservePersist("error")
			h.logger().Error("video reference create failed", "publicId", publicID, "error", err)
			writeError(w, http.StatusInternalServerError, fmt.Errorf("persist video reference"))
			return
		}
		h.metrics().ObservePersist("ok")
		h.logger().Info("video reference created", "id", ref.ID, "publicId", ref.PublicID)
		writeJSON(w, http.StatusCreated, ref)
	case http.MethodDelete:
		var req deleteVideoRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
			return
		}
		id := strings.TrimSpace(req.ID)
		publicID := strings.TrimSpace(req.PublicID)
		if id == "" || publicID == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("id and publicId are required"))
			return
		}
		if err := h.Store.DeleteVideoReference(r.Context(), id, publicID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, http.StatusNotFound, fmt.Errorf("video %s not found", id))
				return
			}
			h.logger().Error("video reference delete failed", "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, fmt.Errorf("delete video reference"))
			return
		}
		h.logger().Info("video reference deleted", "id", id, "publicId", publicID)
		writeJSON(w, http.StatusNoContent, nil)
	default:
		w.Header().Set("Allow", strings.Join([]string{http.MethodPost, http.MethodDelete}, ", "))
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
	}
}

type videoStatusResponse struct {
	Count  int    `json:"count"`
	Status string `json:"status"`
}

// VideoStatus reports how many references the store currently holds. Clients
// poll it after a commit; the response is advisory only.
func (h *Handler) VideoStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	refs, err := h.Store.ListVideoReferences(r.Context())
	if err != nil {
		h.logger().Error("video reference list failed", "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("list video references"))
		return
	}
	writeJSON(w, http.StatusOK, videoStatusResponse{Count: len(refs), Status: "ok"})
}
