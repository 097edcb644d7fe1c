// Package persist commits the remote reference produced by an upload to the
// application's durable record. It is the only part of the pipeline whose
// failure leaves state behind: a failed commit after a successful upload
// orphans the remote object, and no compensating deletion is attempted.
package persist

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

const defaultRequestTimeout = 15 * time.Second

// ClientConfig stores connectivity information for the persistence endpoint.
type ClientConfig struct {
	BaseURL        string
	Token          string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// Client talks to the application persistence endpoint.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// NewClient validates the configuration and constructs a persistence client.
func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("persistence base URL is required")
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
	return &Client{
		baseURL:    base,
		token:      strings.TrimSpace(cfg.Token),
		httpClient: httpClient,
		timeout:    timeout,
		logger:     logger,
	}, nil
}

type commitRequest struct {
	VideoURL string `json:"videoUrl"`
	PublicID string `json:"publicId"`
}

type removeRequest struct {
	ID       string `json:"id"`
	PublicID string `json:"publicId"`
}

// Commit stores the remote reference and triggers a status refetch. Any
// failure wraps models.ErrPersistFailed so callers can classify it.
func (c *Client) Commit(ctx context.Context, ref models.RemoteReference) error {
	payload, err := json.Marshal(commitRequest{VideoURL: ref.URL, PublicID: ref.PublicID})
	if err != nil {
		return fmt.Errorf("%w: encode commit request: %v", models.ErrPersistFailed, err)
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/videos", payload, http.StatusCreated, http.StatusOK); err != nil {
		return fmt.Errorf("%w: %v", models.ErrPersistFailed, err)
	}

	// The refetch is advisory; the commit already succeeded, so a refetch
	// failure is logged rather than surfaced as PersistFailed.
	if err := c.RefreshStatus(ctx); err != nil {
		c.logger.Warn("status refetch after commit failed", "error", err)
	}
	return nil
}

// Remove deletes a previously committed reference.
func (c *Client) Remove(ctx context.Context, id, publicID string) error {
	payload, err := json.Marshal(removeRequest{ID: id, PublicID: publicID})
	if err != nil {
		return fmt.Errorf("encode remove request: %w", err)
	}
	return c.do(ctx, http.MethodDelete, "/api/v1/videos", payload, http.StatusNoContent, http.StatusOK)
}

// RefreshStatus performs the parameterless status refetch call.
func (c *Client) RefreshStatus(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/v1/videos/status", nil, http.StatusOK)
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, accepted ...int) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		io.Copy(io.Discard, response.Body)
		response.Body.Close()
	}()

	for _, status := range accepted {
		if response.StatusCode == status {
			return nil
		}
	}
	return fmt.Errorf("%s %s returned status %d", method, path, response.StatusCode)
}
