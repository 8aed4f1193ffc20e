package store

import (
	"context"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/voltgrid/shift-engine/reconcile"
)

// =============================================================================
// CACHED CATALOG - TTL cache in front of a JustificationCatalog
// =============================================================================

// CachedCatalog wraps a JustificationCatalog with a TTL cache. Justification
// types change rarely while a forced run over a month of dates looks the same
// handful of IDs up thousands of times.
type CachedCatalog struct {
	inner reconcile.JustificationCatalog
	cache *gocache.Cache
}

// NewCachedCatalog caches suppression lookups for ttl. A ttl of zero keeps
// entries for the life of the process.
func NewCachedCatalog(inner reconcile.JustificationCatalog, ttl time.Duration) *CachedCatalog {
	expiry := ttl
	if expiry == 0 {
		expiry = gocache.NoExpiration
	}
	return &CachedCatalog{
		inner: inner,
		cache: gocache.New(expiry, 10*time.Minute),
	}
}

func (c *CachedCatalog) SuppressesAbsence(ctx context.Context, justificationTypeID int) (bool, error) {
	key := strconv.Itoa(justificationTypeID)
	if v, ok := c.cache.Get(key); ok {
		return v.(bool), nil
	}
	suppresses, err := c.inner.SuppressesAbsence(ctx, justificationTypeID)
	if err != nil {
		return false, err
	}
	c.cache.SetDefault(key, suppresses)
	return suppresses, nil
}
