package pricing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrRateUnavailable is returned when no fresh exchange rate can be
// served: the upstream fetch failed and no sample within the freshness
// window exists. A stale sample is never served silently.
var ErrRateUnavailable = errors.New("exchange rate unavailable")

// RateSource fetches the current USD exchange rate for the settlement
// currency from an external source
type RateSource interface {
	FetchRate(ctx context.Context) (float64, error)
}

// RateCache holds the single live exchange-rate sample. Samples are
// overwritten, never accumulated. Two callers racing past a stale sample
// may both fetch; the overwrite is idempotent and last-write-wins.
type RateCache struct {
	source RateSource
	ttl    time.Duration
	now    func() time.Time

	mu        sync.Mutex
	rate      float64
	fetchedAt time.Time
}

// NewRateCache creates a cache over the given source with a freshness
// window of ttl
func NewRateCache(source RateSource, ttl time.Duration) *RateCache {
	return NewRateCacheWithClock(source, ttl, time.Now)
}

// NewRateCacheWithClock is NewRateCache with an injectable clock, for tests
func NewRateCacheWithClock(source RateSource, ttl time.Duration, now func() time.Time) *RateCache {
	return &RateCache{
		source: source,
		ttl:    ttl,
		now:    now,
	}
}

// Rate returns the cached rate if it is younger than the freshness
// window, otherwise fetches a fresh sample and overwrites the cache.
// Fetch failures propagate even when a stale sample exists.
func (c *RateCache) Rate(ctx context.Context) (float64, error) {
	c.mu.Lock()
	if !c.fetchedAt.IsZero() && c.now().Sub(c.fetchedAt) < c.ttl {
		rate := c.rate
		c.mu.Unlock()
		return rate, nil
	}
	c.mu.Unlock()

	// Fetch outside the lock; a concurrent caller may fetch too, which
	// costs at most one redundant upstream read
	rate, err := c.source.FetchRate(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}

	c.mu.Lock()
	c.rate = rate
	c.fetchedAt = c.now()
	c.mu.Unlock()

	return rate, nil
}
