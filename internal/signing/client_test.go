package signing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"clipflow/internal/models"
)

func TestClientFetchReturnsCredentials(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Path != "/api/v1/uploads/signature" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Errorf("unexpected authorization header %q", got)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body["folder"] != "clips" || body["resourceType"] != "video" {
			t.Errorf("unexpected request body %v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"apiKey":    "key-1",
			"signature": "sig-1",
			"timestamp": 1700000000,
		})
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{BaseURL: server.URL, Token: "token-1", Folder: "clips"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	creds, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if creds.APIKey != "key-1" || creds.Signature != "sig-1" || creds.Timestamp != 1700000000 {
		t.Fatalf("unexpected credentials %+v", creds)
	}

	// Credentials are single-use: a second fetch must hit the backend again.
	if _, err := client.Fetch(context.Background()); err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if requests.Load() != 2 {
		t.Fatalf("expected 2 backend requests, got %d", requests.Load())
	}
}

func TestClientFetchEmbeddedErrorIsDenial(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "folder not allowed"})
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = client.Fetch(context.Background())
	var denied *models.SignatureDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected SignatureDeniedError, got %v", err)
	}
	if denied.Reason != "folder not allowed" {
		t.Fatalf("unexpected reason %q", denied.Reason)
	}
}

func TestClientFetchNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.Fetch(context.Background()); err == nil {
		t.Fatalf("expected error for non-2xx response")
	}
}

func TestClientFetchMissingCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"apiKey": "key-only"})
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.Fetch(context.Background()); err == nil {
		t.Fatalf("expected error when signature fields are missing")
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Fatalf("expected error for empty base URL")
	}
}
