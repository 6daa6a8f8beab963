// Package dnscache provides a thread-safe, TTL-based cache in front of a DNS
// resolver, with singleflight deduplication for concurrent lookups of the
// same name.
package dnscache

import (
	"context"
	"errors"
	"net"
	"slices"
	"sync"
	"time"
)

// Resolver is the subset of *net.Resolver the cache wraps.
type Resolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	LookupTXT(ctx context.Context, name string) ([]string, error)
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Cache is itself a Resolver. Concurrent lookups for the same name and
// record type are deduplicated: only one query is sent and all waiters
// receive its result.
type Cache struct {
	mu            sync.Mutex
	entries       map[string]*entry
	cacheTTL      time.Duration
	lookupTimeout time.Duration
	resolver      Resolver
}

type entry struct {
	val     any
	err     error
	expires time.Time
	done    chan struct{} // closed when lookup is complete
}

// New creates a cache over r with the given per-lookup timeout and TTL.
// A nil r uses the system resolver.
func New(r Resolver, lookupTimeout, cacheTTL time.Duration) *Cache {
	if r == nil {
		r = &net.Resolver{}
	}
	return &Cache{
		entries:       make(map[string]*entry),
		cacheTTL:      cacheTTL,
		lookupTimeout: lookupTimeout,
		resolver:      r,
	}
}

// LookupMX returns MX records for the domain, using the cache when possible.
func (c *Cache) LookupMX(ctx context.Context, domain string) ([]*net.MX, error) {
	v, err := c.do(ctx, "mx:"+domain, func(ctx context.Context) (any, error) {
		return c.resolver.LookupMX(ctx, domain)
	})
	recs, _ := v.([]*net.MX)
	return copyMX(recs), err
}

// LookupTXT returns TXT records for name, using the cache when possible.
func (c *Cache) LookupTXT(ctx context.Context, name string) ([]string, error) {
	v, err := c.do(ctx, "txt:"+name, func(ctx context.Context) (any, error) {
		return c.resolver.LookupTXT(ctx, name)
	})
	txt, _ := v.([]string)
	return slices.Clone(txt), err
}

// LookupHost returns host addresses for name, using the cache when possible.
func (c *Cache) LookupHost(ctx context.Context, host string) ([]string, error) {
	v, err := c.do(ctx, "host:"+host, func(ctx context.Context) (any, error) {
		return c.resolver.LookupHost(ctx, host)
	})
	addrs, _ := v.([]string)
	return slices.Clone(addrs), err
}

// Len returns the number of entries in the cache (for diagnostics).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	c.mu.Lock()

	if e, ok := c.entries[key]; ok {
		select {
		case <-e.done:
			if time.Now().Before(e.expires) {
				c.mu.Unlock()
				return e.val, e.err
			}
			// expired, fall through to refresh
		default:
			c.mu.Unlock()
			select {
			case <-e.done:
				return e.val, e.err
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	e := &entry{done: make(chan struct{})}
	c.entries[key] = e
	c.mu.Unlock()

	lctx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	e.val, e.err = fn(lctx)
	e.expires = time.Now().Add(c.cacheTTL)

	// A cancelled caller says nothing about the name; don't keep it.
	if errors.Is(e.err, context.Canceled) || ctx.Err() != nil {
		c.mu.Lock()
		if c.entries[key] == e {
			delete(c.entries, key)
		}
		c.mu.Unlock()
	}
	close(e.done)

	return e.val, e.err
}

// copyMX returns a deep copy of MX records so callers can sort or mutate
// them without touching cached data.
func copyMX(records []*net.MX) []*net.MX {
	if records == nil {
		return nil
	}
	out := make([]*net.MX, len(records))
	for i, r := range records {
		cp := *r
		out[i] = &cp
	}
	return out
}
