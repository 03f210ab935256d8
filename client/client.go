// Package client is the HTTP transport to a ledger node.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	defaultTimeout = 3 * time.Second
	userAgent      = "certanchor"
)

type Client struct {
	client   *http.Client
	cache    *cache.Cache
	endpoint string
}

// New builds a client for the ledger node at endpoint, e.g.
// "https://ledger.example.com". GET responses are cached briefly to keep
// verification latency down without hiding fresh anchors for long.
func New(endpoint string) *Client {
	httpClient := http.Client{
		Timeout: defaultTimeout,
	}

	c := &Client{
		client:   &httpClient,
		cache:    cache.New(30*time.Second, time.Minute),
		endpoint: strings.TrimSuffix(endpoint, "/"),
	}
	httpClient.Transport = c
	return c
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)
	return http.DefaultTransport.RoundTrip(req)
}

// JSON performs a request with an optional JSON body and decodes a JSON
// response into out (when out is non-nil and the response has a body).
// The HTTP status code is returned alongside so callers can classify
// failures; transport-level errors come back with status 0.
func (c *Client) JSON(ctx context.Context, method, path string, body, out any) (int, error) {

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response body: %v", err)
	}

	if out != nil && len(raw) > 0 && resp.StatusCode < http.StatusMultipleChoices {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %v", err)
		}
	}

	return resp.StatusCode, nil
}

// GetCached serves a GET from the in-process cache when possible.
func (c *Client) GetCached(ctx context.Context, path string, out any) (int, error) {

	if raw, found := c.cache.Get(path); found {
		if err := json.Unmarshal(raw.([]byte), out); err == nil {
			return http.StatusOK, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %v", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %v", err)
	}
	c.cache.Set(path, raw, cache.DefaultExpiration)

	return resp.StatusCode, nil
}

// Invalidate drops a cached GET, used after writes that change the path.
func (c *Client) Invalidate(path string) {
	c.cache.Delete(path)
}
