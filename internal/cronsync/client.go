package cronsync

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/carlmjohnson/requests"
)

const (
	// ContentSyncPath is the content sync service route
	ContentSyncPath = "/api/sync"
	// ExecutionSyncPath is the execution-log sync service route
	ExecutionSyncPath = "/api/sync/executions"
)

// Downstream posts to one of the sync services
type Downstream interface {
	Post(ctx context.Context, path string) (*DownstreamResult, error)
}

// HTTPClient calls the sync services over HTTP
type HTTPClient struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

// NewHTTPClient creates a client for the sync services at baseURL.
// A non-empty secret is forwarded in the x-cron-secret header.
func NewHTTPClient(baseURL, secret string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		secret:  secret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the address the client posts to
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Post issues a body-less POST and captures the status and body whatever the status is.
// An error means no response was obtained.
func (c *HTTPClient) Post(ctx context.Context, path string) (*DownstreamResult, error) {
	result := &DownstreamResult{Path: path}
	var body bytes.Buffer

	// Appended, not resolved, so a base URL path prefix survives
	rb := requests.
		URL(c.baseURL + path).
		Client(c.httpClient).
		Post().
		Header("Accept", "application/json").
		AddValidator(func(res *http.Response) error {
			result.Status = res.StatusCode
			return nil
		}).
		ToBytesBuffer(&body)

	if c.secret != "" {
		rb = rb.Header(SecretHeader, c.secret)
	}

	if err := rb.Fetch(ctx); err != nil {
		return nil, fmt.Errorf("POST %s%s: %w", c.baseURL, path, err)
	}

	result.Body = body.Bytes()
	return result, nil
}
