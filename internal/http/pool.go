package http

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

const maxRedirects = 10

// PoolConfig bounds and tunes the shared transport.
type PoolConfig struct {
	// Limit caps concurrent connections across all hosts; 0 means unlimited.
	Limit int
	// LimitPerHost caps concurrent connections per host; 0 means unlimited.
	LimitPerHost int
	// DNSCacheTTL is how long resolved addresses are reused; <= 0 disables
	// the cache.
	DNSCacheTTL time.Duration
	// VerifyTLS enables certificate verification.
	VerifyTLS bool
	// Transport replaces the default base transport. The caps still apply.
	Transport http.RoundTripper
}

// DefaultPoolConfig returns the defaults used by NewClient.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Limit:        100,
		LimitPerHost: 10,
		DNSCacheTTL:  300 * time.Second,
		VerifyTLS:    true,
	}
}

// Pool is a bounded transport shared by every request of a Client. Attempts
// beyond either cap wait for a slot; a slot is held until the response body
// is closed. Pool is safe for concurrent use.
type Pool struct {
	cfg    PoolConfig
	base   http.RoundTripper
	client *http.Client
	global *semaphore.Weighted

	mu    sync.Mutex
	hosts map[string]*semaphore.Weighted

	ctx       context.Context
	cancel    context.CancelFunc
	closed    atomic.Bool
	closeOnce sync.Once

	inUse   atomic.Int64
	waiting atomic.Int64
}

// NewPool builds a pool from cfg.
func NewPool(cfg PoolConfig) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		cfg:    cfg,
		base:   cfg.Transport,
		hosts:  make(map[string]*semaphore.Weighted),
		ctx:    ctx,
		cancel: cancel,
	}
	if p.base == nil {
		p.base = newTransport(cfg)
	}
	if cfg.Limit > 0 {
		p.global = semaphore.NewWeighted(int64(cfg.Limit))
	}
	p.client = &http.Client{
		Transport:     p,
		CheckRedirect: checkRedirect,
	}

	return p
}

func newTransport(cfg PoolConfig) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          cfg.Limit,
		MaxIdleConnsPerHost:   cfg.LimitPerHost,
		MaxConnsPerHost:       cfg.LimitPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: !cfg.VerifyTLS,
		},
	}
	if cfg.DNSCacheTTL > 0 {
		transport.DialContext = newDNSCache(cfg.DNSCacheTTL, dialer).DialContext
	}

	return transport
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		status := 0
		if req.Response != nil {
			status = req.Response.StatusCode
		}
		return &ResponseError{Status: status, Message: "stopped after 10 redirects"}
	}
	return nil
}

// RoundTrip implements http.RoundTripper. It waits for a global and a
// per-host slot, then delegates to the base transport.
func (p *Pool) RoundTrip(req *http.Request) (*http.Response, error) {
	if p.Closed() {
		return nil, ErrPoolClosed
	}

	release, err := p.acquire(req.Context(), req.URL.Host)
	if err != nil {
		return nil, err
	}
	if p.Closed() {
		release()
		return nil, ErrPoolClosed
	}

	resp, err := p.base.RoundTrip(req)
	if err != nil {
		release()
		return nil, err
	}
	if resp.Body == nil {
		release()
		return resp, nil
	}
	resp.Body = &releasingBody{ReadCloser: resp.Body, release: release}
	return resp, nil
}

func (p *Pool) acquire(ctx context.Context, host string) (func(), error) {
	p.waiting.Add(1)
	defer p.waiting.Add(-1)

	if p.global != nil {
		if err := p.global.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}

	hostSem := p.hostSemaphore(host)
	if hostSem != nil {
		if err := hostSem.Acquire(ctx, 1); err != nil {
			if p.global != nil {
				p.global.Release(1)
			}
			return nil, err
		}
	}

	p.inUse.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			p.inUse.Add(-1)
			if hostSem != nil {
				hostSem.Release(1)
			}
			if p.global != nil {
				p.global.Release(1)
			}
		})
	}, nil
}

func (p *Pool) hostSemaphore(host string) *semaphore.Weighted {
	if p.cfg.LimitPerHost <= 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	sem, ok := p.hosts[host]
	if !ok {
		sem = semaphore.NewWeighted(int64(p.cfg.LimitPerHost))
		p.hosts[host] = sem
	}
	return sem
}

// Do sends req through the pool.
func (p *Pool) Do(req *http.Request) (*http.Response, error) {
	return p.client.Do(req)
}

// Done is closed when the pool is closed.
func (p *Pool) Done() <-chan struct{} {
	return p.ctx.Done()
}

// Closed reports whether Close has been called.
func (p *Pool) Closed() bool {
	return p.closed.Load()
}

// InUse returns the number of slots currently held.
func (p *Pool) InUse() int64 {
	return p.inUse.Load()
}

// Waiting returns the number of attempts queued for a slot.
func (p *Pool) Waiting() int64 {
	return p.waiting.Load()
}

// Close releases idle connections and cancels in-flight attempts. It is
// safe to call more than once.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		p.cancel()
		if ci, ok := p.base.(interface{ CloseIdleConnections() }); ok {
			ci.CloseIdleConnections()
		}
	})
	return nil
}

// releasingBody gives the pool slot back once the body is closed.
type releasingBody struct {
	io.ReadCloser
	release func()
}

func (b *releasingBody) Close() error {
	err := b.ReadCloser.Close()
	b.release()
	return err
}
