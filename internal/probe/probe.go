// Package probe issues single timed GET requests against the availability
// service and reports elapsed time, downloaded size, and status.
package probe

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client issues timed GET requests against a base URL.
type Client struct {
	base   string
	client *http.Client
}

// New creates a Client for the given base URL, e.g. "http://localhost:9001".
func New(base string, timeout time.Duration) *Client {
	return &Client{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

// Target returns the base URL the client probes.
func (c *Client) Target() string {
	return c.base
}

// URL builds the full request URL for a path and query parameters.
func (c *Client) URL(path string, params url.Values) string {
	u := c.base + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// Fetch performs one timed GET. The body is read to completion so that Size
// reflects the full download and Elapsed includes transfer time.
func (c *Client) Fetch(ctx context.Context, label, path string, params url.Values) Result {
	u := c.URL(path, params)
	start := time.Now()
	result := Result{
		Label:     label,
		URL:       u,
		FetchedAt: start,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		result.Error = err.Error()
		result.Elapsed = time.Since(start)
		return result
	}

	resp, err := c.client.Do(req)
	if err != nil {
		result.Error = err.Error()
		result.Elapsed = time.Since(start)
		return result
	}
	defer resp.Body.Close()

	n, err := io.Copy(io.Discard, resp.Body)
	result.Elapsed = time.Since(start)
	result.Size = n
	result.StatusCode = resp.StatusCode
	if err != nil {
		result.Error = err.Error()
	}
	return result
}
