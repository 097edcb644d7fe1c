package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"clipflow/internal/signing"
	"clipflow/internal/storage"
)

// faultyRegistry scripts the SignatureRegistry behaviour handler tests need.
type faultyRegistry struct {
	reserveErr error
	pingErr    error
}

func (r *faultyRegistry) Ping(ctx context.Context) error { return r.pingErr }
func (r *faultyRegistry) Reserve(ctx context.Context, signature string, ttl time.Duration) error {
	return r.reserveErr
}
func (r *faultyRegistry) Close() {}

func newTestHandler() *Handler {
	return NewHandler(storage.NewMemoryStore(), storage.NewMemoryRegistry(), SignerConfig{
		Secret: "shh",
		APIKey: "key-1",
		Cloud:  "demo",
	})
}

func postJSON(t *testing.T, handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler(recorder, req)
	return recorder
}

func TestSignatureIssuesVerifiableCredentials(t *testing.T) {
	h := newTestHandler()
	recorder := postJSON(t, h.Signature, "/api/v1/uploads/signature", `{"folder":"clips","resourceType":"video"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}

	var resp struct {
		APIKey    string `json:"apiKey"`
		Signature string `json:"signature"`
		Timestamp int64  `json:"timestamp"`
		Cloud     string `json:"cloud"`
		Error     string `json:"error"`
	}
	if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error != "" {
		t.Fatalf("unexpected embedded error %q", resp.Error)
	}
	if resp.APIKey != "key-1" || resp.Cloud != "demo" {
		t.Fatalf("unexpected credentials %+v", resp)
	}
	if !signing.VerifyParams("shh", map[string]string{"folder": "clips"}, resp.Timestamp, resp.Signature) {
		t.Fatal("issued signature does not verify against the signing secret")
	}
}

func TestSignatureDeniesNonVideoResource(t *testing.T) {
	h := newTestHandler()
	recorder := postJSON(t, h.Signature, "/api/v1/uploads/signature", `{"folder":"clips","resourceType":"image"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("denials travel in the body, not the status; got %d", recorder.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] != `resource type "image" is not supported` {
		t.Fatalf("unexpected denial %q", resp["error"])
	}
}

func TestSignatureReplayIsDeniedInBody(t *testing.T) {
	h := newTestHandler()
	h.Registry = &faultyRegistry{reserveErr: storage.ErrSignatureReplayed}

	recorder := postJSON(t, h.Signature, "/api/v1/uploads/signature", `{"folder":"clips"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
	var resp map[string]string
	json.NewDecoder(recorder.Body).Decode(&resp)
	if resp["error"] != "signature already issued for these parameters" {
		t.Fatalf("unexpected denial %q", resp["error"])
	}
}

func TestSignatureRegistryOutageIsServiceUnavailable(t *testing.T) {
	h := newTestHandler()
	h.Registry = &faultyRegistry{reserveErr: errors.New("connection refused")}

	recorder := postJSON(t, h.Signature, "/api/v1/uploads/signature", `{"folder":"clips"}`)
	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", recorder.Code)
	}
}

func TestSignatureMethodNotAllowed(t *testing.T) {
	h := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/uploads/signature", nil)
	recorder := httptest.NewRecorder()
	h.Signature(recorder, req)
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", recorder.Code)
	}
	if got := recorder.Header().Get("Allow"); got != http.MethodPost {
		t.Fatalf("Allow = %q, want POST", got)
	}
}

func TestVideosCreateAndDelete(t *testing.T) {
	h := newTestHandler()

	recorder := postJSON(t, h.Videos, "/api/v1/videos", `{"videoUrl":"https://cdn/clip.mp4","publicId":"clips/abc"}`)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", recorder.Code)
	}
	var ref struct {
		ID       string `json:"id"`
		URL      string `json:"videoUrl"`
		PublicID string `json:"publicId"`
	}
	if err := json.NewDecoder(recorder.Body).Decode(&ref); err != nil {
		t.Fatalf("decode reference: %v", err)
	}
	if ref.ID == "" || ref.PublicID != "clips/abc" {
		t.Fatalf("unexpected reference %+v", ref)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/videos",
		strings.NewReader(`{"id":"`+ref.ID+`","publicId":"clips/abc"}`))
	deleteRecorder := httptest.NewRecorder()
	h.Videos(deleteRecorder, req)
	if deleteRecorder.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", deleteRecorder.Code)
	}
}

func TestVideosCreateRequiresFields(t *testing.T) {
	h := newTestHandler()
	recorder := postJSON(t, h.Videos, "/api/v1/videos", `{"videoUrl":"","publicId":"clips/abc"}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", recorder.Code)
	}
}

func TestVideosDeleteUnknownReference(t *testing.T) {
	h := newTestHandler()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/videos",
		strings.NewReader(`{"id":"missing","publicId":"clips/abc"}`))
	recorder := httptest.NewRecorder()
	h.Videos(recorder, req)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", recorder.Code)
	}
}

func TestVideoStatusCountsReferences(t *testing.T) {
	h := newTestHandler()
	postJSON(t, h.Videos, "/api/v1/videos", `{"videoUrl":"https://cdn/a.mp4","publicId":"clips/a"}`)
	postJSON(t, h.Videos, "/api/v1/videos", `{"videoUrl":"https://cdn/b.mp4","publicId":"clips/b"}`)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos/status", nil)
	recorder := httptest.NewRecorder()
	h.VideoStatus(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
	var resp videoStatusResponse
	if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 2 || resp.Status != "ok" {
		t.Fatalf("unexpected status response %+v", resp)
	}
}

func TestHealthReportsDegradedRegistry(t *testing.T) {
	h := newTestHandler()
	h.Registry = &faultyRegistry{pingErr: errors.New("connection refused")}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	recorder := httptest.NewRecorder()
	h.Health(recorder, req)
	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", recorder.Code)
	}
	var resp healthResponse
	if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "degraded" {
		t.Fatalf("overall status = %q, want degraded", resp.Status)
	}
	var found bool
	for _, component := range resp.Components {
		if component.Component == "signature_registry" && component.Status == "degraded" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected the signature_registry component to be degraded")
	}
}

func TestHealthOK(t *testing.T) {
	h := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	recorder := httptest.NewRecorder()
	h.Health(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
}
