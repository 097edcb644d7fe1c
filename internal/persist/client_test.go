package persist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"clipflow/internal/models"
)

type recordedRequest struct {
	Method        string
	Path          string
	Authorization string
	Body          map[string]string
}

func recordingServer(t *testing.T, commitStatus int) (*httptest.Server, func() []recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	var requests []recordedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Authorization: r.Header.Get("Authorization")}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&rec.Body)
		}
		mu.Lock()
		requests = append(requests, rec)
		mu.Unlock()

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/videos":
			w.WriteHeader(commitStatus)
		case r.Method == http.MethodDelete && r.URL.Path == "/api/v1/videos":
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/videos/status":
			_ = json.NewEncoder(w).Encode(map[string]any{"count": 1, "status": "ok"})
		default:
			http.Error(w, "unexpected request", http.StatusNotFound)
		}
	}))
	return server, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		out := make([]recordedRequest, len(requests))
		copy(out, requests)
		return out
	}
}

func TestCommitPostsReferenceAndRefreshesStatus(t *testing.T) {
	server, requests := recordingServer(t, http.StatusCreated)
	defer server.Close()

	client, err := NewClient(ClientConfig{BaseURL: server.URL, Token: "token-1"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	ref := models.RemoteReference{URL: "https://cdn/clip.mp4", PublicID: "clips/abc"}
	if err := client.Commit(context.Background(), ref); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got := requests()
	if len(got) != 2 {
		t.Fatalf("expected commit then status refetch, got %d requests", len(got))
	}
	if got[0].Method != http.MethodPost || got[0].Path != "/api/v1/videos" {
		t.Fatalf("unexpected first request %+v", got[0])
	}
	if got[0].Body["videoUrl"] != ref.URL || got[0].Body["publicId"] != ref.PublicID {
		t.Fatalf("unexpected commit body %v", got[0].Body)
	}
	if got[0].Authorization != "Bearer token-1" {
		t.Fatalf("unexpected authorization header %q", got[0].Authorization)
	}
	if got[1].Method != http.MethodGet || got[1].Path != "/api/v1/videos/status" {
		t.Fatalf("unexpected second request %+v", got[1])
	}
}

func TestCommitFailureWrapsPersistFailed(t *testing.T) {
	server, _ := recordingServer(t, http.StatusInternalServerError)
	defer server.Close()

	client, err := NewClient(ClientConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	err = client.Commit(context.Background(), models.RemoteReference{URL: "u", PublicID: "p"})
	if !errors.Is(err, models.ErrPersistFailed) {
		t.Fatalf("expected ErrPersistFailed, got %v", err)
	}
}

func TestCommitSucceedsWhenStatusRefetchFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			return
		}
		http.Error(w, "status broken", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if err := client.Commit(context.Background(), models.RemoteReference{URL: "u", PublicID: "p"}); err != nil {
		t.Fatalf("commit must not fail on an advisory status refetch: %v", err)
	}
}

func TestRemoveDeletesReference(t *testing.T) {
	server, requests := recordingServer(t, http.StatusCreated)
	defer server.Close()

	client, err := NewClient(ClientConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := client.Remove(context.Background(), "id-1", "clips/abc"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	got := requests()
	if len(got) != 1 || got[0].Method != http.MethodDelete {
		t.Fatalf("unexpected requests %+v", got)
	}
	if got[0].Body["id"] != "id-1" || got[0].Body["publicId"] != "clips/abc" {
		t.Fatalf("unexpected delete body %v", got[0].Body)
	}
}
