package http

import (
	core "github.com/wesleyorama2/tether/internal/http"
)

// Client issues requests with retries through a lazily created pool.
type Client = core.Client

// ClientOption configures a Client.
type ClientOption = core.ClientOption

// Observer receives per-attempt and per-request outcomes.
type Observer = core.Observer

// PoolConfig bounds and tunes the shared transport.
type PoolConfig = core.PoolConfig

// NewClient creates a client. No connections exist until the first request.
var NewClient = core.NewClient

// DefaultPoolConfig returns the pool defaults used by NewClient.
var DefaultPoolConfig = core.DefaultPoolConfig

// Client options.
var (
	WithBaseURL          = core.WithBaseURL
	WithTimeout          = core.WithTimeout
	WithMaxRetries       = core.WithMaxRetries
	WithHeader           = core.WithHeader
	WithHeaders          = core.WithHeaders
	WithConnLimit        = core.WithConnLimit
	WithConnLimitPerHost = core.WithConnLimitPerHost
	WithDNSCacheTTL      = core.WithDNSCacheTTL
	WithVerifyTLS        = core.WithVerifyTLS
	WithTransport        = core.WithTransport
	WithBackoffUnit      = core.WithBackoffUnit
	WithLogger           = core.WithLogger
	WithObserver         = core.WithObserver
)
