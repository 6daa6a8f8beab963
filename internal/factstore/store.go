// Package factstore caches resolved DomainFacts in Redis so that several
// verifier processes share DNS work for the same domain.
package factstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/optimode/mailverify/types"
)

const keyPrefix = "mailverify:facts:"

// Options configures the Redis connection.
type Options struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration // default: 1h
}

// Store is a Redis-backed DomainFacts cache. Every method fails open:
// errors are returned to the caller, who is expected to resolve afresh.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func New(opts Options) *Store {
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	return &Store{
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Address,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		ttl: opts.TTL,
	}
}

// Key returns the Redis key for domain.
func Key(domain string) string {
	return keyPrefix + strings.ToLower(domain)
}

// Get returns cached facts for domain. ok is false on a miss.
func (s *Store) Get(ctx context.Context, domain string) (facts types.DomainFacts, ok bool, err error) {
	raw, err := s.client.Get(ctx, Key(domain)).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.DomainFacts{}, false, nil
	}
	if err != nil {
		return types.DomainFacts{}, false, fmt.Errorf("factstore get %s: %w", domain, err)
	}
	if err := json.Unmarshal(raw, &facts); err != nil {
		return types.DomainFacts{}, false, fmt.Errorf("factstore decode %s: %w", domain, err)
	}
	return facts, true, nil
}

// Put stores facts for domain with the configured TTL.
func (s *Store) Put(ctx context.Context, domain string, facts types.DomainFacts) error {
	raw, err := json.Marshal(facts)
	if err != nil {
		return fmt.Errorf("factstore encode %s: %w", domain, err)
	}
	if err := s.client.Set(ctx, Key(domain), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("factstore set %s: %w", domain, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
