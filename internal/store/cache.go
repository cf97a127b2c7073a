package store

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// MemoryCache is an in-process response cache with per-entry expiry
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryCache creates an empty cache; a nil clock means time.Now
func NewMemoryCache(now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{entries: make(map[string]cacheEntry), now: now}
}

// Get returns a live entry
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return append([]byte(nil), e.value...), true
}

// Set stores value for ttl
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{
		value:     append([]byte(nil), value...),
		expiresAt: c.now().Add(ttl),
	}
}

// Len returns the number of stored entries, live or not
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Get reads a live cache entry from the report_cache table. Read errors
// count as a miss.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool) {
	var value []byte
	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT value, expires_at FROM report_cache WHERE cache_key = ?`), key).
		Scan(&value, &expiresAt)
	if err != nil {
		return nil, false
	}
	if !s.now().Before(expiresAt) {
		_, _ = s.db.ExecContext(ctx, s.rebind(`DELETE FROM report_cache WHERE cache_key = ?`), key)
		return nil, false
	}
	return value, true
}

// Set upserts a cache entry. Write errors are dropped; the cache is best effort.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	_ = s.SetEntry(ctx, key, value, ttl)
}

// SetEntry upserts a cache entry and reports write errors
func (s *Store) SetEntry(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO report_cache (cache_key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`),
		key, value, s.now().Add(ttl).UTC())
	return eris.Wrapf(err, "store: cache set %s", key)
}

// PurgeExpired deletes expired cache rows and returns how many were removed
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM report_cache WHERE expires_at <= ?`), s.now().UTC())
	if err != nil {
		return 0, eris.Wrap(err, "store: purge cache")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "store: purge cache")
}
