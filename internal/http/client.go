package http

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Observer receives per-attempt and per-request outcomes.
type Observer interface {
	AttemptFailed(method, host string, kind Kind)
	RequestDone(method, host string, status int, success bool, attempts int, elapsed time.Duration)
}

// Client issues requests through a lazily created, shared Pool with bounded
// retries and exponential backoff. Client is safe for concurrent use; Do
// never returns an error, every failure is reported in the Result.
type Client struct {
	baseURL     string
	timeout     time.Duration
	maxRetries  int
	headers     map[string]string
	backoffUnit time.Duration
	poolConfig  PoolConfig

	logger     *zap.Logger
	classifier *Classifier
	observer   Observer
	sleep      func(ctx context.Context, done <-chan struct{}, d time.Duration) error

	mu   sync.Mutex
	pool *Pool
}

// ClientOption is a function that configures a Client
type ClientOption func(*Client)

// NewClient creates a client. No connections or pool exist until the first
// request, Open or Use.
func NewClient(options ...ClientOption) *Client {
	client := &Client{
		timeout:     10 * time.Second,
		maxRetries:  2,
		headers:     make(map[string]string),
		backoffUnit: time.Second,
		poolConfig:  DefaultPoolConfig(),
		logger:      zap.NewNop(),
		sleep:       sleepContext,
	}

	for _, option := range options {
		option(client)
	}
	client.classifier = NewClassifier(client.logger)

	return client
}

// WithBaseURL sets the base URL for relative endpoints
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTimeout sets the per-attempt timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithMaxRetries sets how many times a failed attempt is retried
func WithMaxRetries(retries int) ClientOption {
	return func(c *Client) {
		if retries < 0 {
			retries = 0
		}
		c.maxRetries = retries
	}
}

// WithHeader adds a default header
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithHeaders adds several default headers
func WithHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for key, value := range headers {
			c.headers[key] = value
		}
	}
}

// WithConnLimit caps concurrent connections across hosts (0 = unlimited)
func WithConnLimit(limit int) ClientOption {
	return func(c *Client) {
		c.poolConfig.Limit = limit
	}
}

// WithConnLimitPerHost caps concurrent connections per host (0 = unlimited)
func WithConnLimitPerHost(limit int) ClientOption {
	return func(c *Client) {
		c.poolConfig.LimitPerHost = limit
	}
}

// WithDNSCacheTTL sets how long resolved addresses are cached
func WithDNSCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.poolConfig.DNSCacheTTL = ttl
	}
}

// WithVerifyTLS toggles certificate verification
func WithVerifyTLS(verify bool) ClientOption {
	return func(c *Client) {
		c.poolConfig.VerifyTLS = verify
	}
}

// WithTransport replaces the base round tripper used by the pool
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.poolConfig.Transport = rt
	}
}

// WithBackoffUnit sets the unit of the 2^n backoff delay
func WithBackoffUnit(unit time.Duration) ClientOption {
	return func(c *Client) {
		if unit >= 0 {
			c.backoffUnit = unit
		}
	}
}

// WithLogger sets the logger used for classification and request logs
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver registers an Observer for attempt and request outcomes
func WithObserver(observer Observer) ClientOption {
	return func(c *Client) {
		c.observer = observer
	}
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Open creates the pool if it does not exist yet.
func (c *Client) Open(ctx context.Context) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	c.ensurePool()
	return nil
}

// Close closes the pool. Closing a client that was never opened or is
// already closed is a no-op. A later request opens a fresh pool.
func (c *Client) Close() error {
	c.mu.Lock()
	pool := c.pool
	c.pool = nil
	c.mu.Unlock()

	if pool == nil {
		return nil
	}
	return pool.Close()
}

// Use opens the pool, runs fn and closes the pool on every exit path,
// including panics.
func (c *Client) Use(ctx context.Context, fn func(context.Context, *Client) error) (err error) {
	if err := c.Open(ctx); err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(ctx, c)
}

func (c *Client) ensurePool() *Pool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pool == nil || c.pool.Closed() {
		c.pool = NewPool(c.poolConfig)
	}
	return c.pool
}

// received is what one successful attempt produced.
type received struct {
	status  int
	payload any
	url     string
	headers http.Header
}

// Do executes req with retries and returns its normalized result. Only
// errors raised by an attempt are retried; any received response, whatever
// its status, ends the loop.
func (c *Client) Do(ctx context.Context, req *Request) *Result {
	if ctx == nil {
		ctx = context.Background()
	}
	requestID := uuid.NewString()

	if req == nil {
		return c.rejected("", "", invalidValue("nil request"), requestID)
	}

	target, err := req.ResolveURL(c.baseURL)
	label := req.Method() + " " + target
	if err != nil {
		return c.rejected(label, target, fmt.Errorf("%w: %w", ErrInvalidValue, err), requestID)
	}
	if !req.Shape().Valid() {
		return c.rejected(label, target, invalidValue("unsupported response shape: %q", string(req.Shape())), requestID)
	}
	body, err := req.encodeBody()
	if err != nil {
		return c.rejected(label, target, err, requestID)
	}
	headers := mergeHeaders(c.headers, req.headers)
	if _, err := req.build(ctx, target, headers, body); err != nil {
		return c.rejected(label, target, fmt.Errorf("%w: %w", ErrInvalidValue, err), requestID)
	}

	pool := c.ensurePool()
	host := hostOf(target)
	logger := c.logger.With(zap.String("request_id", requestID))

	start := time.Now()
	var last ErrorInfo
	attempts := 0
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		attempts = attempt + 1

		rec, err := c.attempt(ctx, pool, req, target, headers, body)
		if err == nil {
			result := c.complete(rec, attempts, time.Since(start), requestID)
			logger.Debug("request completed",
				zap.String("request", label),
				zap.Int("status", rec.status),
				zap.Int("attempts", attempts),
				zap.Duration("elapsed", result.Elapsed()))
			c.observeDone(req.Method(), host, result)
			return result
		}

		if ctx.Err() != nil {
			err = ctx.Err()
		}
		last = c.classifier.Classify(err, label)
		if c.observer != nil {
			c.observer.AttemptFailed(req.Method(), host, last.Kind)
		}
		if ctx.Err() != nil {
			break
		}

		if attempt < c.maxRetries {
			delay := c.backoff(attempt)
			logger.Debug("retrying request",
				zap.String("request", label),
				zap.Int("attempt", attempts),
				zap.Duration("delay", delay))
			if err := c.sleep(ctx, pool.Done(), delay); err != nil {
				last = c.classifier.Classify(err, label)
				break
			}
		}
	}

	result := newResult(resultFields{
		url:       target,
		err:       last.Message,
		kind:      last.Kind,
		elapsed:   time.Since(start),
		attempts:  attempts,
		requestID: requestID,
	})
	logger.Debug("request failed",
		zap.String("request", label),
		zap.String("kind", last.Kind.String()),
		zap.Int("attempts", attempts),
		zap.Duration("elapsed", result.Elapsed()))
	c.observeDone(req.Method(), host, result)
	return result
}

// attempt performs one send-and-read under the per-attempt timeout.
func (c *Client) attempt(ctx context.Context, pool *Pool, req *Request, target string, headers map[string]string, body *encodedBody) (*received, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	stop := context.AfterFunc(pool.ctx, cancel)
	defer stop()

	httpReq, err := req.build(attemptCtx, target, headers, body)
	if err != nil {
		return nil, err
	}

	resp, err := pool.Do(httpReq)
	if err != nil {
		if pool.Closed() {
			return nil, fmt.Errorf("%w: %v", ErrPoolClosed, err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if pool.Closed() {
			return nil, fmt.Errorf("%w: %v", ErrPoolClosed, err)
		}
		return nil, &PayloadError{Err: err}
	}

	payload, err := decodePayload(req.Shape(), resp.Header.Get("Content-Type"), data)
	if err != nil {
		return nil, err
	}

	finalURL := target
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &received{
		status:  resp.StatusCode,
		payload: payload,
		url:     finalURL,
		headers: resp.Header,
	}, nil
}

func (c *Client) complete(rec *received, attempts int, elapsed time.Duration, requestID string) *Result {
	fields := resultFields{
		status:    &rec.status,
		payload:   rec.payload,
		url:       rec.url,
		elapsed:   elapsed,
		attempts:  attempts,
		headers:   rec.headers,
		requestID: requestID,
	}
	if rec.status < 200 || rec.status >= 300 {
		fields.err = fmt.Sprintf("HTTP %d %s", rec.status, http.StatusText(rec.status))
		fields.kind = KindResponse
	}
	return newResult(fields)
}

// rejected builds the result for a request that never reached the retry
// loop: no attempts, no delay.
func (c *Client) rejected(label, target string, err error, requestID string) *Result {
	info := c.classifier.Classify(err, label)
	return newResult(resultFields{
		url:       target,
		err:       info.Message,
		kind:      info.Kind,
		requestID: requestID,
	})
}

func (c *Client) observeDone(method, host string, result *Result) {
	if c.observer == nil {
		return
	}
	c.observer.RequestDone(method, host, result.StatusCode(), result.Success(), result.Attempts(), result.Elapsed())
}

// maxBackoff is the longest representable delay; backoff saturates there.
const maxBackoff = time.Duration(math.MaxInt64)

// backoff returns the delay before attempt n+1: 2^n units.
func (c *Client) backoff(n int) time.Duration {
	if c.backoffUnit <= 0 {
		return 0
	}
	if n >= 62 || c.backoffUnit > maxBackoff>>uint(n) {
		return maxBackoff
	}
	return c.backoffUnit << uint(n)
}

func sleepContext(ctx context.Context, done <-chan struct{}, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return ErrPoolClosed
	}
}

func hostOf(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	return u.Host
}
