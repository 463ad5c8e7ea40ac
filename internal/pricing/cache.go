package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is one wholesale view of tracked asset prices in USD. A nil entry
// means the upstream provider did not report a price for that symbol. The
// snapshot is immutable once stored; refreshes replace it as a whole.
type Snapshot struct {
	Prices    map[string]*decimal.Decimal `json:"prices"`
	FetchedAt time.Time                   `json:"fetched_at"`
}

// Price returns the USD price for symbol, or nil when unknown.
func (s Snapshot) Price(symbol string) *decimal.Decimal {
	return s.Prices[symbol]
}

// Cache stores snapshots under a key with a per-entry TTL. An entry is valid
// strictly before its set time plus TTL; at or after that instant it is a miss.
type Cache interface {
	Get(ctx context.Context, key string) (Snapshot, bool, error)
	Set(ctx context.Context, key string, snap Snapshot, ttl time.Duration) error
}

type memoryEntry struct {
	snap      Snapshot
	expiresAt time.Time
}

// MemoryCache is the in-process Cache backend.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// MemoryOption tunes MemoryCache construction.
type MemoryOption func(*MemoryCache)

// WithClock substitutes the time source, so tests can cross TTL boundaries
// without waiting on the wall clock.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) {
		c.now = now
	}
}

// NewMemoryCache constructs an empty in-process cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the stored snapshot, or a miss when absent or expired. Expired
// entries are discarded on read.
func (c *MemoryCache) Get(_ context.Context, key string) (Snapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return Snapshot{}, false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return Snapshot{}, false, nil
	}
	return entry.snap, true, nil
}

// Set stores a snapshot, replacing any previous entry for the key.
func (c *MemoryCache) Set(_ context.Context, key string, snap Snapshot, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry{snap: snap, expiresAt: c.now().Add(ttl)}
	return nil
}

var _ Cache = (*MemoryCache)(nil)
