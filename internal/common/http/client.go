// internal/common/http/client.go
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Client is an outbound HTTP client that retries throttled and unavailable responses.
// Request bodies must be rewindable (GetBody set), which http.NewRequest does for
// bytes, strings and bytes.Buffer readers.
type Client struct {
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
}

type Option func(*Client)

// WithRetries sets how many times a request is re-sent after the first attempt.
func WithRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithBackoff sets the delay before the first retry; it doubles per attempt.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

func NewClient(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: 2,
		backoff:    250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// errRetryableStatus marks a response worth another attempt.
var errRetryableStatus = errors.New("retryable response status")

// Do sends req, retrying on transport errors and 429/502/503/504 until the retry budget or
// the request context runs out. The last response is returned unread.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var (
		resp    *http.Response
		attempt int
	)
	op := func() error {
		if resp != nil {
			io.Copy(io.Discard, resp.Body) //nolint:errcheck
			resp.Body.Close()
			resp = nil
		}
		if attempt > 0 {
			if err := rewind(req); err != nil {
				return backoff.Permanent(err)
			}
		}
		attempt++

		r, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		resp = r
		if shouldRetry(r) {
			return errRetryableStatus
		}
		return nil
	}

	retries := c.maxRetries
	if retries < 0 {
		retries = 0
	}
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(c.policy(), uint64(retries)), req.Context()))
	switch {
	case err == nil, errors.Is(err, errRetryableStatus):
		return resp, nil
	case resp != nil:
		// context ended while waiting to retry a response
		resp.Body.Close()
	}
	return nil, err
}

// policy doubles the delay from c.backoff with no jitter.
func (c *Client) policy() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.backoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.Do(req.WithContext(ctx))
}

func shouldRetry(resp *http.Response) bool {
	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func rewind(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody {
		return nil
	}
	if req.GetBody == nil {
		return fmt.Errorf("cannot retry %s %s: request body is not rewindable", req.Method, req.URL.Redacted())
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("rewind request body: %w", err)
	}
	req.Body = body
	return nil
}
