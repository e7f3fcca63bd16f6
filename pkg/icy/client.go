package icy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultUserAgent is sent with metadata requests when none is configured.
const DefaultUserAgent = "Airwave/1.0"

// Client fetches the current track title of a stream. A single Client is
// shared by all guilds and is safe for concurrent use.
type Client struct {
	http      *http.Client
	userAgent string
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		if ua != "" {
			cl.userAgent = ua
		}
	}
}

// NewClient returns a Client. Without [WithHTTPClient] it uses a dedicated
// http.Client with no overall timeout; callers bound requests via ctx.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				MaxIdleConnsPerHost:   2,
				IdleConnTimeout:       90 * time.Second,
				ResponseHeaderTimeout: 10 * time.Second,
			},
		},
		userAgent: DefaultUserAgent,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// HTTPClient returns the shared HTTP client.
func (c *Client) HTTPClient() *http.Client { return c.http }

// FetchTitle requests url with in-band metadata enabled and returns the first
// StreamTitle found.
//
// A 2xx response without an icy-metaint header, an empty metadata block or a
// block lacking StreamTitle all yield ("", false, nil): the stream is reachable
// but has no title. Transport failures, non-2xx statuses and truncated bodies
// return an error.
func (c *Client) FetchTitle(ctx context.Context, url string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false, fmt.Errorf("icy: build request: %w", err)
	}
	req.Header.Set("Icy-Metadata", "1")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("icy: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", false, fmt.Errorf("icy: fetch %s: unexpected status %s", url, resp.Status)
	}

	raw := strings.TrimSpace(resp.Header.Get("icy-metaint"))
	if raw == "" {
		return "", false, nil
	}
	metaint, err := strconv.Atoi(raw)
	if err != nil || metaint <= 0 {
		return "", false, fmt.Errorf("icy: invalid icy-metaint header %q", raw)
	}

	meta, err := ReadMetadata(resp.Body, metaint)
	if errors.Is(err, ErrNoMetadata) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	title, ok := ParseTitle(meta)
	return title, ok, nil
}
