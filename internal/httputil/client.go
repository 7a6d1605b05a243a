// Package httputil provides the paced HTTP client shared by the JPL API
// clients.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// MaxBodyBytes caps a single response body.
const MaxBodyBytes = 64 << 20

// ErrBodyTooLarge is returned when a response exceeds MaxBodyBytes.
var ErrBodyTooLarge = errors.New("response exceeds byte limit")

// StatusError is returned for non-200 responses. Body holds the raw
// payload so callers can persist it.
type StatusError struct {
	URL    string
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.Status, e.URL)
}

// Config configures a Client.
type Config struct {
	Timeout   time.Duration // per request, default 60s
	RateLimit float64       // requests per second, <= 0 disables pacing
	RateBurst int           // default 1
	UserAgent string
	Transport http.RoundTripper
}

// Client performs paced GET requests.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
}

// NewClient returns a Client for cfg.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "solarpaper/1.0"
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		limiter:   rate.NewLimiter(limit, cfg.RateBurst),
		userAgent: cfg.UserAgent,
	}
}

// Get waits for the limiter, then fetches base?query and returns the body.
func (c *Client) Get(ctx context.Context, base string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	u := base
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", base, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > MaxBodyBytes {
		return nil, fmt.Errorf("%w of %d bytes from %s", ErrBodyTooLarge, MaxBodyBytes, base)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: base, Status: resp.StatusCode, Body: body}
	}
	return body, nil
}
