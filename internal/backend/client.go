package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/ashureev/askvoice/internal/config"
)

// APIKeyHeader carries the backend service key.
const APIKeyHeader = "X-API-Key"

// RequestIDHeader propagates the proxy request ID to the backend logs.
const RequestIDHeader = "X-Request-ID"

var errUnhealthy = errors.New("backend health check failed")

// Reply is an undecoded backend response.
type Reply struct {
	Status int
	Body   []byte
}

// OK reports whether the backend answered with a 2xx status.
func (r *Reply) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Client forwards questions to the backend. It holds no per-request state;
// the target is passed on every call.
type Client struct {
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a backend client. A nil httpClient uses a client without
// an explicit timeout.
func NewClient(httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{http: httpClient, logger: logger}
}

// Query posts the question to {BaseURL}/query and returns the raw reply.
// Only transport failures are returned as errors; non-2xx replies are not.
func (c *Client) Query(ctx context.Context, target config.Backend, question, requestID string) (*Reply, error) {
	payload, err := json.Marshal(QueryRequest{Question: question})
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.BaseURL+"/query", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	if target.APIKey != "" {
		req.Header.Set(APIKeyHeader, target.APIKey)
	}
	if requestID != "" {
		req.Header.Set(RequestIDHeader, requestID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query backend at %s: %w", target.BaseURL, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close backend response body", "error", closeErr)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read backend response: %w", err)
	}

	c.logger.Debug("Backend replied", "status", resp.StatusCode, "bytes", len(body), "request_id", requestID)
	return &Reply{Status: resp.StatusCode, Body: body}, nil
}

// Health probes {BaseURL}/health and returns an error unless it answers 2xx.
func (c *Client) Health(ctx context.Context, target config.Backend) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	if target.APIKey != "" {
		req.Header.Set(APIKeyHeader, target.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("probe backend at %s: %w", target.BaseURL, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", errUnhealthy, resp.StatusCode)
	}
	return nil
}
