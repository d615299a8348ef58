// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/scamguard/internal/usage"
)

// Client calls a running service's admin endpoints.
type Client struct {
	base string
	http *http.Client
}

// NewClient targets addr, which may be a host:port or a full URL.
func NewClient(addr string) *Client {
	if addr == "" {
		addr = DefaultAddr
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &Client{
		base: strings.TrimRight(addr, "/"),
		http: &http.Client{Timeout: 10 * time.Minute},
	}
}

// Reload triggers a rebuild and waits for it to finish.
func (c *Client) Reload(ctx context.Context, force bool) (*ReloadResult, error) {
	u := c.base + "/reload"
	if force {
		u += "?force=true"
	}
	var out ReloadResult
	if err := c.do(ctx, http.MethodPost, u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats fetches the current usage counters.
func (c *Client) Stats(ctx context.Context) (*usage.Stats, error) {
	var out usage.Stats
	if err := c.do(ctx, http.MethodGet, c.base+"/report", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health fetches the engine state. A Cold engine is not an error.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.do(ctx, http.MethodGet, c.base+"/healthz", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, data any) error {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	env := Response{Data: data}
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err)
	}
	if env.Error != "" {
		return fmt.Errorf("%s %s: %s (status %d)", method, rawURL, env.Error, resp.StatusCode)
	}
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusServiceUnavailable {
		return fmt.Errorf("%s %s: status %d", method, rawURL, resp.StatusCode)
	}
	return nil
}
