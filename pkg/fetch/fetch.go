// Package fetch retrieves the card list page and card images over HTTP.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// MaxPageSize caps the HTML document read from the wiki.
	MaxPageSize = 10 * 1024 * 1024
	// MaxImageSize caps a single card image.
	MaxImageSize = 25 * 1024 * 1024

	defaultTimeout = 30 * time.Second
)

// ErrTooLarge is returned when a response body exceeds its size cap.
var ErrTooLarge = errors.New("response body exceeds size limit")

// StatusError reports a non-success HTTP status.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %s", e.URL, e.Status)
}

// Client fetches bytes for a URL. It fails on transport errors and on any
// status outside 2xx.
type Client struct {
	http      *http.Client
	userAgent string
}

// New creates a Client. A zero timeout selects 30 seconds.
func New(timeout time.Duration, userAgent string) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Page fetches an HTML document.
func (c *Client) Page(ctx context.Context, url string) ([]byte, error) {
	return c.get(ctx, url, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8", MaxPageSize)
}

// Image fetches a card image.
func (c *Client) Image(ctx context.Context, url string) ([]byte, error) {
	return c.get(ctx, url, "image/avif,image/webp,image/apng,image/*,*/*;q=0.8", MaxImageSize)
}

func (c *Client) get(ctx context.Context, url, accept string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,ja;q=0.8")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}
	if resp.ContentLength > limit {
		return nil, fmt.Errorf("fetch %s: %w (%d > %d bytes)", url, ErrTooLarge, resp.ContentLength, limit)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", url, err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("fetch %s: %w (%d bytes)", url, ErrTooLarge, limit)
	}
	return body, nil
}
