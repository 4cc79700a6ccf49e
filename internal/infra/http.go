package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultUserAgent is sent when a source does not demand a specific one.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

var (
	// ErrRateLimited is returned when a source keeps answering 429
	// after all retries are spent.
	ErrRateLimited = errors.New("rate limited by source")

	// ErrNotFound is returned for HTTP 404.
	ErrNotFound = errors.New("resource not found")
)

// ErrHTTP is returned for any other non-2xx response.
type ErrHTTP struct {
	StatusCode int
	URL        string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// Transient reports whether a retry on a later run may succeed.
func (e *ErrHTTP) Transient() bool {
	return e.StatusCode >= 500
}

// HTTPOptions configures an HTTPClient.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Limiter    *RateLimiter
}

// HTTPClient is a GET-only client with retry, backoff and rate limiting.
type HTTPClient struct {
	rc *resty.Client
}

// NewHTTPClient creates a client. Requests answered with 429 or 5xx are
// retried up to MaxRetries times with exponential backoff between
// BaseDelay and MaxDelay; every attempt waits on the limiter first.
func NewHTTPClient(opts HTTPOptions) *HTTPClient {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.MaxDelay < opts.BaseDelay {
		opts.MaxDelay = opts.BaseDelay * 16
	}

	rc := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetRetryCount(opts.MaxRetries).
		SetRetryWaitTime(opts.BaseDelay).
		SetRetryMaxWaitTime(opts.MaxDelay).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return !errors.Is(err, context.Canceled)
			}
			code := r.StatusCode()
			return code == http.StatusTooManyRequests || code >= 500
		})

	if opts.Limiter != nil {
		limiter := opts.Limiter
		rc.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}
	return &HTTPClient{rc: rc}
}

// Get fetches url and returns the body of a 2xx response.
func (c *HTTPClient) Get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	resp, err := c.rc.R().
		SetContext(ctx).
		SetHeaders(headers).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusTooManyRequests:
		return nil, fmt.Errorf("GET %s: %w", url, ErrRateLimited)
	case code == http.StatusNotFound:
		return nil, fmt.Errorf("GET %s: %w", url, ErrNotFound)
	case code < 200 || code >= 300:
		return nil, &ErrHTTP{StatusCode: code, URL: url}
	}
	return resp.Body(), nil
}

// GetJSON fetches url and decodes the JSON body into dest.
func (c *HTTPClient) GetJSON(ctx context.Context, url string, headers map[string]string, dest any) error {
	if headers == nil {
		headers = map[string]string{}
	}
	if _, ok := headers["Accept"]; !ok {
		headers["Accept"] = "application/json"
	}
	body, err := c.Get(ctx, url, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("parse JSON from %s: %w", url, err)
	}
	return nil
}
