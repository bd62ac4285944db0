// Package upstream talks to the media origin: credential selection, request
// settings and the HTTP client itself.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the media origin.
const DefaultBaseURL = "https://assets.grok.com"

// ClientConfig configures the origin client.
type ClientConfig struct {
	BaseURL string
	Referer string
	// HeaderTimeout bounds the wait for response headers. Bodies stream unbounded.
	HeaderTimeout time.Duration
	HTTPClient    *http.Client
}

// Client issues GET requests against the origin.
type Client struct {
	base    *url.URL
	referer string
	http    *http.Client
}

// NewClient validates cfg and builds a client.
func NewClient(cfg ClientConfig) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("upstream: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.New("upstream: base url must be absolute")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.HeaderTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = timeout
		httpClient = &http.Client{Transport: transport}
	}

	referer := cfg.Referer
	if referer == "" {
		referer = DefaultReferer
	}
	return &Client{base: base, referer: referer, http: httpClient}, nil
}

// Referer returns the referer sent with origin requests.
func (c *Client) Referer() string {
	return c.referer
}

// URL resolves an origin path against the base URL.
func (c *Client) URL(originPath string) string {
	if !strings.HasPrefix(originPath, "/") {
		originPath = "/" + originPath
	}
	return c.base.String() + originPath
}

// Fetch issues a GET for originPath. A non-empty rangeHeader is forwarded as Range.
// The caller owns the response body.
func (c *Client) Fetch(ctx context.Context, originPath string, headers http.Header, rangeHeader string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(originPath), nil)
	if err != nil {
		return nil, fmt.Errorf("upstream: build request: %w", err)
	}
	for name, values := range headers {
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: fetch %s: %w", originPath, err)
	}
	return resp, nil
}
