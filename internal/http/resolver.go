package http

import (
	"context"
	"net"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const dnsCacheSize = 1024

// dnsCache resolves hosts through net.Resolver and keeps the answers for a
// fixed TTL.
type dnsCache struct {
	resolver *net.Resolver
	dialer   *net.Dialer
	entries  *expirable.LRU[string, []string]
}

func newDNSCache(ttl time.Duration, dialer *net.Dialer) *dnsCache {
	return &dnsCache{
		resolver: net.DefaultResolver,
		dialer:   dialer,
		entries:  expirable.NewLRU[string, []string](dnsCacheSize, nil, ttl),
	}
}

func (d *dnsCache) lookup(ctx context.Context, host string) ([]string, error) {
	if addrs, ok := d.entries.Get(host); ok {
		return addrs, nil
	}
	addrs, err := d.resolver.LookupHost(ctx, host)
	if err != nil {
		return nil, err
	}
	d.entries.Add(host, addrs)
	return addrs, nil
}

// DialContext dials addr, resolving its host through the cache. Lookup
// failures are reported the way net.Dialer reports them.
func (d *dnsCache) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil || net.ParseIP(host) != nil {
		return d.dialer.DialContext(ctx, network, addr)
	}

	addrs, err := d.lookup(ctx, host)
	if err != nil {
		return nil, &net.OpError{Op: "dial", Net: network, Err: err}
	}

	var lastErr error
	for _, ip := range addrs {
		conn, err := d.dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = &net.OpError{Op: "dial", Net: network, Err: &net.DNSError{Err: "no addresses", Name: host, IsNotFound: true}}
	}
	return nil, lastErr
}
