package signing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"clipflow/internal/models"
)

const defaultRequestTimeout = 10 * time.Second

// ClientConfig stores connectivity information for the signature endpoint.
type ClientConfig struct {
	BaseURL        string
	Token          string
	Folder         string
	ResourceType   string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// Client requests short-lived, single-use upload credentials from the
// backend. Credentials are never cached: every call performs a fresh request
// so each upload attempt carries its own signature.
type Client struct {
	baseURL      string
	token        string
	folder       string
	resourceType string
	httpClient   *http.Client
	timeout      time.Duration
	logger       *slog.Logger
}

// NewClient validates the configuration and constructs a signature client.
func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("signature base URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	resourceType := strings.TrimSpace(cfg.ResourceType)
	if resourceType == "" {
		resourceType = "video"
	}
	return &Client{
		baseURL:      base,
		token:        strings.TrimSpace(cfg.Token),
		folder:       strings.TrimSpace(cfg.Folder),
		resourceType: resourceType,
		httpClient:   httpClient,
		timeout:      timeout,
		logger:       logger,
	}, nil
}

type signatureRequest struct {
	Folder       string `json:"folder,omitempty"`
	ResourceType string `json:"resourceType"`
}

type signatureResponse struct {
	APIKey    string `json:"apiKey"`
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
	Cloud     string `json:"cloud,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Fetch performs one authenticated request for upload credentials. A
// backend-reported error field is a hard SignatureDenied failure and is never
// retried here; transport and decode failures are returned wrapped.
func (c *Client) Fetch(ctx context.Context) (models.UploadCredentials, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(signatureRequest{Folder: c.folder, ResourceType: c.resourceType})
	if err != nil {
		return models.UploadCredentials{}, fmt.Errorf("encode signature request: %w", err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/uploads/signature", bytes.NewReader(payload))
	if err != nil {
		return models.UploadCredentials{}, fmt.Errorf("create signature request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return models.UploadCredentials{}, fmt.Errorf("request signature: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, response.Body)
		response.Body.Close()
	}()

	var decoded signatureResponse
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		return models.UploadCredentials{}, fmt.Errorf("decode signature response: %w", err)
	}
	if strings.TrimSpace(decoded.Error) != "" {
		return models.UploadCredentials{}, &models.SignatureDeniedError{Reason: decoded.Error}
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return models.UploadCredentials{}, fmt.Errorf("signature endpoint returned status %d", response.StatusCode)
	}
	if decoded.Signature == "" || decoded.Timestamp == 0 {
		return models.UploadCredentials{}, fmt.Errorf("signature response missing credentials")
	}

	c.logger.Debug("signature issued", "timestamp", decoded.Timestamp)
	return models.UploadCredentials{
		APIKey:    decoded.APIKey,
		Signature: decoded.Signature,
		Timestamp: decoded.Timestamp,
		Cloud:     decoded.Cloud,
	}, nil
}

// Folder exposes the folder the client negotiates signatures for.
func (c *Client) Folder() string {
	return c.folder
}

// ResourceType exposes the resource kind the client negotiates signatures for.
func (c *Client) ResourceType() string {
	return c.resourceType
}
