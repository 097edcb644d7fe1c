// Package uploader performs the direct client-to-storage transfer of a
// transcoded blob using previously negotiated single-use credentials.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"clipflow/internal/models"
)

const defaultUploadTimeout = 2 * time.Minute

// Config stores connectivity information for the object-storage endpoint.
type Config struct {
	UploadURL      string
	Folder         string
	ResourceType   string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// Uploader issues exactly one multipart POST per attempt. There is no
// chunking, no resume, and no retry: a failed upload requires the caller to
// restart the whole attempt with fresh credentials.
type Uploader struct {
	uploadURL    string
	folder       string
	resourceType string
	httpClient   *http.Client
	timeout      time.Duration
	logger       *slog.Logger
}

// New validates the configuration and constructs an Uploader.
func New(cfg Config) (*Uploader, error) {
	target := strings.TrimSpace(cfg.UploadURL)
	if target == "" {
		return nil, fmt.Errorf("upload URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultUploadTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	resourceType := strings.TrimSpace(cfg.ResourceType)
	if resourceType == "" {
		resourceType = "video"
	}
	return &Uploader{
		uploadURL:    target,
		folder:       strings.TrimSpace(cfg.Folder),
		resourceType: resourceType,
		httpClient:   httpClient,
		timeout:      timeout,
		logger:       logger,
	}, nil
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
}

// Upload transfers the transcoded blob with the credential fields as a
// multipart form. A non-2xx status reads the response body as diagnostic
// text and fails with UploadRejectedError; a 2xx response yields the
// RemoteReference extracted from the JSON body.
func (u *Uploader) Upload(ctx context.Context, result models.TranscodeResult, creds models.UploadCredentials) (models.RemoteReference, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	filePart, err := writer.CreateFormFile("file", "clip.mp4")
	if err != nil {
		return models.RemoteReference{}, fmt.Errorf("create file part: %w", err)
	}
	if _, err := filePart.Write(result.Data); err != nil {
		return models.RemoteReference{}, fmt.Errorf("write file part: %w", err)
	}

	fields := map[string]string{
		"api_key":       creds.APIKey,
		"timestamp":     strconv.FormatInt(creds.Timestamp, 10),
		"signature":     creds.Signature,
		"folder":        u.folder,
		"resource_type": u.resourceType,
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(name, value); err != nil {
			return models.RemoteReference{}, fmt.Errorf("write field %s: %w", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return models.RemoteReference{}, fmt.Errorf("finalize multipart body: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, u.uploadURL, &body)
	if err != nil {
		return models.RemoteReference{}, fmt.Errorf("create upload request: %w", err)
	}
	request.Header.Set("Content-Type", writer.FormDataContentType())

	response, err := u.httpClient.Do(request)
	if err != nil {
		return models.RemoteReference{}, fmt.Errorf("upload blob: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		diagnostic, readErr := io.ReadAll(io.LimitReader(response.Body, 8192))
		if readErr != nil {
			diagnostic = []byte(fmt.Sprintf("unreadable response body: %v", readErr))
		}
		return models.RemoteReference{}, &models.UploadRejectedError{
			Status: response.StatusCode,
			Body:   strings.TrimSpace(string(diagnostic)),
		}
	}

	var decoded uploadResponse
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		return models.RemoteReference{}, fmt.Errorf("decode upload response: %w", err)
	}
	if decoded.SecureURL == "" || decoded.PublicID == "" {
		return models.RemoteReference{}, fmt.Errorf("upload response missing secure_url or public_id")
	}

	u.logger.Info("upload accepted",
		"public_id", decoded.PublicID,
		"size_bytes", len(result.Data),
		"used_fallback", result.UsedFallback,
	)
	return models.RemoteReference{URL: decoded.SecureURL, PublicID: decoded.PublicID}, nil
}
