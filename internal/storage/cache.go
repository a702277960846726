package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedStore fronts another Store with an expiring LRU of recent records.
// Saves write through; a failed save evicts the cached entry.
type CachedStore struct {
	next Store
	lru  *expirable.LRU[uuid.UUID, []byte]
}

// NewCachedStore wraps next with a cache of at most size records, each kept
// for ttl. size 0 means unbounded; ttl 0 means no expiry.
//
// Precondition: next must be non-nil.
func NewCachedStore(next Store, size int, ttl time.Duration) *CachedStore {
	return &CachedStore{
		next: next,
		lru:  expirable.NewLRU[uuid.UUID, []byte](size, nil, ttl),
	}
}

// Load serves from the cache, falling back to the wrapped store.
func (c *CachedStore) Load(ctx context.Context, playerID uuid.UUID) ([]byte, error) {
	if rec, ok := c.lru.Get(playerID); ok {
		return clone(rec), nil
	}
	rec, err := c.next.Load(ctx, playerID)
	if err != nil {
		return nil, err
	}
	c.lru.Add(playerID, clone(rec))
	return rec, nil
}

// Save writes through to the wrapped store and caches record on success.
func (c *CachedStore) Save(ctx context.Context, playerID uuid.UUID, record []byte) error {
	if err := c.next.Save(ctx, playerID, record); err != nil {
		c.lru.Remove(playerID)
		return err
	}
	c.lru.Add(playerID, clone(record))
	return nil
}

// Invalidate drops the cached record of playerID.
func (c *CachedStore) Invalidate(playerID uuid.UUID) {
	c.lru.Remove(playerID)
}

// Len returns the number of cached records.
func (c *CachedStore) Len() int { return c.lru.Len() }

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
