// Package storagestub hosts a fake object-storage upload endpoint for tests.
// It accepts the multipart upload the real service expects, optionally
// verifies the attached signature, and records every interaction.
package storagestub

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"clipflow/internal/signing"
)

// Options describes how the fake storage service should behave.
type Options struct {
	// Secret enables signature verification over the folder parameter. Empty
	// skips the check.
	Secret string

	// PublicID and SecureURL are returned from successful uploads. Defaults
	// are generated when empty.
	PublicID  string
	SecureURL string

	// FailUploads causes the first N uploads to return RejectStatus.
	// Subsequent attempts succeed.
	FailUploads  int
	RejectStatus int
	RejectBody   string
}

// Upload records one received upload request.
type Upload struct {
	Folder       string
	ResourceType string
	APIKey       string
	Signature    string
	Timestamp    int64
	FileBytes    int64
	Attempt      int
	Status       int
	ReceivedAt   time.Time
}

// Service hosts a single httptest.Server that serves the upload endpoint.
type Service struct {
	server *httptest.Server
	opts   Options

	mu       sync.Mutex
	uploads  []Upload
	attempts int
}

// Start spins up a new storage stub using the provided options.
func Start(opts Options) *Service {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusBadRequest
	}
	if opts.RejectBody == "" {
		opts.RejectBody = `{"error":{"message":"invalid signature"}}`
	}
	s := &Service{opts: opts}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Close shuts down the underlying HTTP server.
func (s *Service) Close() {
	if s.server != nil {
		s.server.Close()
	}
}

// URL returns the upload endpoint URL.
func (s *Service) URL() string {
	return s.server.URL
}

// Uploads returns a copy of all recorded uploads in the order received.
func (s *Service) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Upload, len(s.uploads))
	copy(out, s.uploads)
	return out
}

func (s *Service) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "unexpected request", http.StatusNotFound)
		return
	}
	if err := r.ParseMultipartForm(256 << 20); err != nil {
		http.Error(w, "bad multipart body", http.StatusBadRequest)
		return
	}

	timestamp, _ := strconv.ParseInt(r.FormValue("timestamp"), 10, 64)
	upload := Upload{
		Folder:       r.FormValue("folder"),
		ResourceType: r.FormValue("resource_type"),
		APIKey:       r.FormValue("api_key"),
		Signature:    r.FormValue("signature"),
		Timestamp:    timestamp,
		Status:       http.StatusOK,
		ReceivedAt:   time.Now(),
	}
	if file, _, err := r.FormFile("file"); err == nil {
		n, _ := io.Copy(io.Discard, file)
		upload.FileBytes = n
		file.Close()
	}

	s.mu.Lock()
	s.attempts++
	upload.Attempt = s.attempts
	s.mu.Unlock()

	if upload.Attempt <= s.opts.FailUploads {
		upload.Status = s.opts.RejectStatus
		s.record(upload)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(s.opts.RejectStatus)
		io.WriteString(w, s.opts.RejectBody)
		return
	}

	if s.opts.Secret != "" {
		params := map[string]string{"folder": upload.Folder}
		if !signing.VerifyParams(s.opts.Secret, params, upload.Timestamp, upload.Signature) {
			upload.Status = http.StatusUnauthorized
			s.record(upload)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"error":{"message":"signature mismatch"}}`)
			return
		}
	}

	s.record(upload)

	publicID := s.opts.PublicID
	if publicID == "" {
		publicID = fmt.Sprintf("clip-%d", upload.Attempt)
	}
	secureURL := s.opts.SecureURL
	if secureURL == "" {
		secureURL = fmt.Sprintf("%s/assets/%s.mp4", s.server.URL, publicID)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"secure_url": secureURL,
		"public_id":  publicID,
	})
}

func (s *Service) record(upload Upload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, upload)
}
