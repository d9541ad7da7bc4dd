package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates no fresh entry exists for the key.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates a stored hash that cannot be decoded.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

const clearBatch = 100

// Manager keeps Data Garden responses in Redis hashes. Each hash expires on
// its own; Clear drops every response of one account at once.
type Manager struct {
	redis *redis.Client
	now   func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a cache manager on redisClient.
func NewManager(redisClient *redis.Client, opts ...Option) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	m := &Manager{redis: redisClient, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Lookup returns the fresh entry stored under key, or ErrCacheMiss.
func (m *Manager) Lookup(ctx context.Context, key CacheKey) (*Entry, error) {
	h, err := m.redis.HGetAll(ctx, key.String()).Result()
	if err != nil {
		Errors.WithLabelValues("lookup").Inc()
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}

	entry, err := entryFromFields(h)
	switch {
	case errors.Is(err, ErrCacheMiss):
		Lookups.WithLabelValues("miss").Inc()
		return nil, err
	case err != nil:
		Errors.WithLabelValues("lookup").Inc()
		return nil, err
	}

	if !entry.FreshAt(m.now()) {
		_ = m.Invalidate(ctx, key)
		Lookups.WithLabelValues("stale").Inc()
		return nil, ErrCacheMiss
	}

	Lookups.WithLabelValues("hit").Inc()
	return entry, nil
}

// Store writes entry under key until entry.Expires. Entries that are no
// longer fresh are skipped.
func (m *Manager) Store(ctx context.Context, key CacheKey, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	if entry.Remaining(m.now()) <= 0 {
		return nil
	}

	k := key.String()
	_, err := m.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k, entry.fields())
		pipe.PExpireAt(ctx, k, entry.Expires)
		return nil
	})
	if err != nil {
		Errors.WithLabelValues("store").Inc()
		return fmt.Errorf("redis store %s: %w", k, err)
	}

	StoredBytes.Add(float64(len(entry.Body)))
	return nil
}

// Invalidate removes the entry stored under key.
func (m *Manager) Invalidate(ctx context.Context, key CacheKey) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		Errors.WithLabelValues("invalidate").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Clear removes every response cached for scope and returns how many were
// dropped. An empty scope clears all Data Garden responses.
func (m *Manager) Clear(ctx context.Context, scope string) (int, error) {
	iter := m.redis.Scan(ctx, 0, scopePattern(scope), clearBatch).Iterator()

	removed := 0
	batch := make([]string, 0, clearBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := m.redis.Del(ctx, batch...).Result()
		if err != nil {
			return err
		}
		removed += int(n)
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == clearBatch {
			if err := flush(); err != nil {
				Errors.WithLabelValues("clear").Inc()
				return removed, fmt.Errorf("redis del: %w", err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		Errors.WithLabelValues("clear").Inc()
		return removed, fmt.Errorf("redis scan: %w", err)
	}
	if err := flush(); err != nil {
		Errors.WithLabelValues("clear").Inc()
		return removed, fmt.Errorf("redis del: %w", err)
	}

	Cleared.Add(float64(removed))
	return removed, nil
}

// scopePattern is the SCAN pattern matching the keys of one scope.
func scopePattern(scope string) string {
	if scope == "" {
		return KeyPrefix + ":*"
	}
	return KeyPrefix + ":*:scope=" + globEscaper.Replace(scope)
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
