package httpretry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ignite/paybench/internal/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(opts ...Option) *Client {
	quiet := logger.New(io.Discard, logger.ERROR, true)
	c := New(nil, append([]Option{WithLogger(quiet), WithBackoff(time.Millisecond, 5*time.Millisecond)}, opts...)...)
	c.sleep = func(time.Duration) <-chan time.Time {
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}
	return c
}

func TestRetriesUntilSuccess(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "payload", string(body))
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader("payload"))
	require.NoError(t, err)
	resp, err := newTestClient().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDoesNotRetryServerErrorsOrClientErrors(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusBadRequest, http.StatusConflict} {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(status)
		}))

		req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
		resp, err := newTestClient().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, status, resp.StatusCode)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "status %d", status)
		srv.Close()
	}
}

func TestReturnsLastRetryableResponse(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := newTestClient(WithMaxRetries(2)).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "slow down", string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

type failingDoer struct{ calls int }

func (f *failingDoer) Do(*http.Request) (*http.Response, error) {
	f.calls++
	return nil, errors.New("connection refused")
}

func TestNetworkErrors(t *testing.T) {
	doer := &failingDoer{}
	c := newTestClient(WithMaxRetries(2))
	c.client = doer

	req, _ := http.NewRequest(http.MethodGet, "http://paybench.invalid/health", nil)
	_, err := c.Do(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 3, doer.calls)
}

func TestCancelledContextStops(t *testing.T) {
	doer := &failingDoer{}
	c := newTestClient()
	c.client = doer

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://paybench.invalid/health", nil)
	_, err := c.Do(req)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, doer.calls)
}

func TestDelayBounds(t *testing.T) {
	c := New(nil, WithBackoff(100*time.Millisecond, time.Second))
	for attempt := 1; attempt <= 8; attempt++ {
		d := c.delay(attempt)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, time.Second)
	}
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 3*time.Second, parseRetryAfter("3"))
	assert.Zero(t, parseRetryAfter(""))
	assert.Zero(t, parseRetryAfter("Wed, 21 Oct 2015 07:28:00 GMT"))
	assert.Zero(t, parseRetryAfter("-1"))
}
