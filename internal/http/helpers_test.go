package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newResponse(req *http.Request, status int, contentType, body string) *http.Response {
	header := make(http.Header)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return &http.Response{
		StatusCode:    status,
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Header:        header,
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

// concurrencyTracker is a mock transport that records peak concurrent use,
// overall and per host.
type concurrencyTracker struct {
	delay time.Duration

	mu          sync.Mutex
	current     int
	peak        int
	perHost     map[string]int
	peakPerHost map[string]int
	calls       int
}

func newConcurrencyTracker(delay time.Duration) *concurrencyTracker {
	return &concurrencyTracker{
		delay:       delay,
		perHost:     make(map[string]int),
		peakPerHost: make(map[string]int),
	}
}

func (c *concurrencyTracker) RoundTrip(req *http.Request) (*http.Response, error) {
	host := req.URL.Host

	c.mu.Lock()
	c.calls++
	c.current++
	c.perHost[host]++
	if c.current > c.peak {
		c.peak = c.current
	}
	if c.perHost[host] > c.peakPerHost[host] {
		c.peakPerHost[host] = c.perHost[host]
	}
	c.mu.Unlock()

	select {
	case <-time.After(c.delay):
	case <-req.Context().Done():
	}

	c.mu.Lock()
	c.current--
	c.perHost[host]--
	c.mu.Unlock()

	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	return newResponse(req, http.StatusOK, "application/json", `{"ok":true}`), nil
}

func (c *concurrencyTracker) Peak() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peak
}

func (c *concurrencyTracker) PeakForHost(host string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peakPerHost[host]
}

// sleepRecorder replaces the client's backoff sleep and records delays.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, done <-chan struct{}, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}
