// Package redis is a store driver for deployments running more than one
// portal replica. Records expire through Redis TTLs; the stored expiry is
// checked again on read to tolerate clock skew.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/portal/internal/portal/store"
	"github.com/aussiebroadwan/portal/pkg/cryptox"
)

const (
	keyTypeSession = "session"
	keyTypeLogin   = "login"

	// DefaultKeyPrefix namespaces every key the portal writes.
	DefaultKeyPrefix = "portal:"

	scanBatch = 256
)

// Config holds the connection settings for a single Redis node.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Store struct {
	client    redis.UniversalClient
	keyPrefix string
	sealer    *cryptox.Sealer
	now       func() time.Time
}

// NewStore connects to Redis and verifies the connection.
func NewStore(ctx context.Context, cfg Config, sealer *cryptox.Sealer) (*Store, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis: address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewStoreWithClient(client, cfg.KeyPrefix, sealer)
}

// NewStoreWithClient wraps a pre-configured client. This is useful for
// testing with miniredis.
func NewStoreWithClient(client redis.UniversalClient, keyPrefix string, sealer *cryptox.Sealer) (*Store, error) {
	if sealer == nil {
		return nil, errors.New("redis: sealer is required")
	}
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &Store{client: client, keyPrefix: keyPrefix, sealer: sealer, now: time.Now}, nil
}

// WithClock replaces the store's time source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Sessions() store.Sessions           { return &sessionsRepo{s: s} }
func (s *Store) PendingLogins() store.PendingLogins { return &pendingLoginsRepo{s: s} }

func (s *Store) ApplyMigrations() error { return nil }

// Close closes the Redis client connection.
func (s *Store) Close() error { return s.client.Close() }

// Ping checks Redis connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *Store) key(kind, id string) string {
	return s.keyPrefix + kind + ":" + id
}

// ttl returns the remaining lifetime of a record, or false if it has none left.
func (s *Store) ttl(expiresAt time.Time) (time.Duration, bool) {
	remaining := expiresAt.Sub(s.now())
	if remaining <= 0 {
		return 0, false
	}
	// Redis TTLs have millisecond resolution.
	if remaining < time.Millisecond {
		remaining = time.Millisecond
	}
	return remaining, true
}

// deleteByPattern SCANs for keys matching pattern and unlinks them in batches.
func (s *Store) deleteByPattern(ctx context.Context, pattern string) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to scan keys: %w", err)
		}
		if len(keys) > 0 {
			n, err := s.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("failed to delete keys: %w", err)
			}
			removed += int(n)
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}

func (s *Store) countByPattern(ctx context.Context, pattern string) (int, error) {
	var (
		cursor uint64
		count  int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to scan keys: %w", err)
		}
		count += len(keys)
		if next == 0 {
			return count, nil
		}
		cursor = next
	}
}

func unmarshal[T any](data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}
