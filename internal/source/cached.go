package source

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/kunju1991/NSExchangefilings/internal/domain"
	"github.com/kunju1991/NSExchangefilings/internal/ports"
)

// Cached memoizes successful fetches per symbol so that one upstream
// request serves every user watching that symbol within a cycle. Failures
// are never cached.
type Cached struct {
	inner ports.FilingSource
	cache *gocache.Cache
}

var _ ports.FilingSource = (*Cached)(nil)

// NewCached wraps a source with a TTL cache. The TTL should stay below the
// polling interval so consecutive cycles always hit the upstream.
func NewCached(inner ports.FilingSource, ttl time.Duration) *Cached {
	return &Cached{
		inner: inner,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Fetch returns the cached result for the symbol when present, otherwise
// delegates and stores the outcome.
func (c *Cached) Fetch(ctx context.Context, symbol string) ([]domain.Filing, error) {
	if hit, found := c.cache.Get(symbol); found {
		return hit.([]domain.Filing), nil
	}

	filings, err := c.inner.Fetch(ctx, symbol)
	if err != nil {
		return nil, err
	}

	c.cache.Set(symbol, filings, gocache.DefaultExpiration)
	return filings, nil
}
