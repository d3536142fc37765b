// Package httpretry retries idempotent-safe HTTP calls with exponential
// backoff and full jitter. The CLI uses it to talk to a remote paybench
// server.
package httpretry

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/ignite/paybench/internal/pkg/logger"
)

// HTTPDoer executes HTTP requests. *http.Client and *Client satisfy it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client wraps an HTTPDoer with retries.
type Client struct {
	client     HTTPDoer
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	log        *logger.Logger
	sleep      func(time.Duration) <-chan time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithMaxRetries sets the number of retries after the first attempt.
func WithMaxRetries(n int) Option { return func(c *Client) { c.maxRetries = n } }

// WithBackoff sets the base and maximum delay between attempts.
func WithBackoff(base, maxDelay time.Duration) Option {
	return func(c *Client) { c.baseDelay, c.maxDelay = base, maxDelay }
}

func WithLogger(l *logger.Logger) Option { return func(c *Client) { c.log = l } }

// New wraps client. A nil client becomes an http.Client with a 60s timeout.
func New(client HTTPDoer, opts ...Option) *Client {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	c := &Client{
		client:     client,
		maxRetries: 3,
		baseDelay:  500 * time.Millisecond,
		maxDelay:   15 * time.Second,
		log:        logger.Default(),
		sleep:      time.After,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	c.log = c.log.With("httpretry")
	return c
}

// Do sends req, retrying on 429, 502, 503, 504 and network errors. A 500 is
// not retried: the server already ran the handler and reported a failure.
// Requests with a body are only retried when req.GetBody is set. The last
// retryable response is returned as-is so the caller can read it.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := req.Context().Err(); err != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, err
		}

		if attempt > 0 {
			if req.Body != nil && req.Body != http.NoBody {
				if req.GetBody == nil {
					return nil, lastErr
				}
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("httpretry: reset request body: %w", err)
				}
				req.Body = body
			}
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			if req.Context().Err() != nil {
				return nil, err
			}
			if !c.wait(req, attempt, 0) {
				return nil, lastErr
			}
			continue
		}

		if !Retryable(resp.StatusCode) || attempt == c.maxRetries {
			return resp, nil
		}

		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("httpretry: server returned %d", resp.StatusCode)
		if !c.wait(req, attempt, retryAfter) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// wait sleeps before the next attempt. It reports false when there is no
// next attempt or the request context ended.
func (c *Client) wait(req *http.Request, attempt int, retryAfter time.Duration) bool {
	if attempt >= c.maxRetries {
		return false
	}
	delay := c.delay(attempt + 1)
	if retryAfter > delay {
		delay = min(retryAfter, c.maxDelay)
	}
	c.log.Warn("retrying request",
		"method", req.Method,
		"path", req.URL.Path,
		"attempt", attempt+1,
		"of", c.maxRetries,
		"wait", delay.String(),
	)
	select {
	case <-c.sleep(delay):
		return true
	case <-req.Context().Done():
		return false
	}
}

// delay is a full-jitter exponential backoff with a 50ms floor.
func (c *Client) delay(attempt int) time.Duration {
	exp := float64(c.baseDelay) * math.Pow(2, float64(attempt-1))
	if exp > float64(c.maxDelay) {
		exp = float64(c.maxDelay)
	}
	d := time.Duration(rand.Float64() * exp)
	if d < 50*time.Millisecond {
		d = 50 * time.Millisecond
	}
	return d
}

// Retryable reports whether a status is worth another attempt.
func Retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// parseRetryAfter reads the delay-seconds form of Retry-After.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
