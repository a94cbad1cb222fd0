// Package connect is a small REST client for the platform API: installation
// records, the marketplace catalog and subscription assets.
package connect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chart-extension/internal/logging"
)

// Collections addressed by the extension.
const (
	CollectionInstallations = "devops/installations"
	CollectionMarketplaces  = "marketplaces"
	CollectionAssets        = "subscriptions/assets"
)

const defaultPageSize = 100

// Client talks to the platform API with the extension's API key.
type Client struct {
	baseURL   string
	apiKey    string
	client    *http.Client
	pageSize  int
	userAgent string
}

// New creates a new API client.
func New(baseURL string, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		apiKey:    apiKey,
		client:    &http.Client{Timeout: timeout},
		pageSize:  defaultPageSize,
		userAgent: "chart-extension/1.0",
	}
}

// SetPageSize configures how many items each listing request asks for.
func (c *Client) SetPageSize(n int) {
	if n > 0 {
		c.pageSize = n
	}
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(hc *http.Client) {
	if hc != nil {
		c.client = hc
	}
}

// authHeader renders the API key in the platform's "ApiKey <key>" scheme.
func (c *Client) authHeader() string {
	if strings.HasPrefix(c.apiKey, "ApiKey ") {
		return c.apiKey
	}
	return "ApiKey " + c.apiKey
}

// do sends one request. rawQuery is appended verbatim so RQL expressions keep
// their shape. When out is non-nil a 2xx body is decoded into it.
func (c *Client) do(ctx context.Context, method, path, rawQuery string, body interface{}, out interface{}) (*http.Response, error) {
	endpoint := c.baseURL + "/" + strings.TrimPrefix(path, "/")
	if rawQuery != "" {
		endpoint += "?" + rawQuery
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.authHeader())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := logging.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-Id", id)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	logging.FromContext(ctx).Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("connect api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, decodeAPIError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp, nil
}
