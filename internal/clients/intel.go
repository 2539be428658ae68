// Package clients provides clients for interacting with external services.
// This file defines the HTTP client for the threat-intel advisory feed.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// IntelClient provides methods to interact with an advisory feed over HTTP.
type IntelClient struct {
	HTTPClient   *http.Client
	BaseURL      string
	AdvisoryPath string
}

// NewIntelClient initializes a new intel client with the provided base URL
// and advisory path.
func NewIntelClient(baseURL, advisoryPath string, timeout time.Duration) (*IntelClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &IntelClient{
		BaseURL:      baseURL,
		AdvisoryPath: advisoryPath,
		HTTPClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
	}, nil
}

// Do performs an HTTP request with the specified method and URL.
func (c *IntelClient) Do(
	ctx context.Context,
	method, url string,
	body io.Reader,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	return c.HTTPClient.Do(req)
}

// GetIntelHealth checks the health endpoint of the advisory feed.
func (c *IntelClient) GetIntelHealth(ctx context.Context) (*http.Response, error) {
	url := c.BaseURL + "/health"

	return c.Do(ctx, http.MethodGet, url, nil)
}

// FetchAdvisories requests advisories for a batch of CVE ids. The response
// body is decoded by the caller.
func (c *IntelClient) FetchAdvisories(ctx context.Context, cves []string) (*http.Response, error) {
	url := c.BaseURL + c.AdvisoryPath

	body, err := json.Marshal(map[string][]string{"cves": cves})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	return c.HTTPClient.Do(req)
}
