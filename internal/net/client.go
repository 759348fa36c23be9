// Package net provides the retrying HTTP client used by every outbound
// request in Tidarr.
package net

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tidarr/internal/times"
	"tidarr/internal/utils/logging"
)

// NetworkError wraps the final transport failure after retries are exhausted.
type NetworkError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("request to %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Client retries transport-level failures with linear backoff and honours
// HTTP 429 Retry-After waits without consuming a retry attempt. Non-429
// HTTP error statuses are returned to the caller untouched.
type Client struct {
	HTTP              *http.Client
	MaxRetries        int
	BackoffBase       time.Duration
	DefaultRetryAfter time.Duration
	Clock             times.Clock
}

// New returns a Client with the given retry policy.
func New(timeout time.Duration, maxRetries int, backoffBase, defaultRetryAfter time.Duration) *Client {
	return &Client{
		HTTP:              &http.Client{Timeout: timeout},
		MaxRetries:        maxRetries,
		BackoffBase:       backoffBase,
		DefaultRetryAfter: defaultRetryAfter,
		Clock:             times.Real(),
	}
}

// Do executes the request under the retry policy. The request must carry
// GetBody if it has a body (http.NewRequest sets it for the usual readers).
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	attempts := 0
	for {
		resp, err := c.attempt(req)
		if err != nil {
			if ctxErr := req.Context().Err(); ctxErr != nil {
				return nil, ctxErr
			}
			attempts++
			if attempts >= c.MaxRetries {
				return nil, &NetworkError{URL: req.URL.String(), Attempts: attempts, Err: err}
			}
			wait := c.BackoffBase * time.Duration(attempts)
			logging.D(1, "Request to %s failed (attempt %d/%d), retrying in %v: %v",
				req.URL, attempts, c.MaxRetries, wait, err)
			c.Clock.Sleep(wait)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := c.retryAfter(resp)
			resp.Body.Close()
			logging.W("Rate limited by %s, waiting %v before reissuing", req.URL.Host, wait)
			c.Clock.Sleep(wait)
			continue // rate-limit waits do not consume a retry attempt
		}

		return resp, nil
	}
}

// Get issues a GET with the given headers.
func (c *Client) Get(ctx context.Context, rawURL string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", rawURL, err)
	}
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	return c.Do(req)
}

// PostForm issues a form-encoded POST.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", rawURL, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.Do(req)
}

func (c *Client) attempt(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		r.Body = body
	}
	return c.HTTP.Do(r)
}

func (c *Client) retryAfter(resp *http.Response) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return c.DefaultRetryAfter
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return c.DefaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}
