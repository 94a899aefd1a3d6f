// Package rest provides access to the quiz server's HTTP surface: the avatar
// catalog consumed before joining a room.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client provides REST API access to the quiz server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new REST API client.
// baseURL should be the base URL of the server, e.g., "https://play.quizsync.dev".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetHTTPClient allows setting a custom HTTP client.
func (c *Client) SetHTTPClient(client *http.Client) {
	if client != nil {
		c.httpClient = client
	}
}

// ListAvatars fetches the avatar catalog. Any failure — unreachable server,
// error status, malformed or empty response — yields the built-in fallback
// set instead of an error; the catalog is best-effort by contract.
func (c *Client) ListAvatars(ctx context.Context) ([]string, error) {
	var avatars []string
	if err := c.get(ctx, "/api/avatars", &avatars); err != nil || len(avatars) == 0 {
		return append([]string(nil), FallbackAvatars...), nil
	}
	return avatars, nil
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, dest)
}

func (c *Client) do(req *http.Request, dest any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("api error (status %d): %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("http error: %s (status %d)", string(body), resp.StatusCode)
	}

	if dest != nil {
		if err := json.Unmarshal(body, dest); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
