package pricing_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewhitmore/gpubill/internal/pricing"
)

// fakeRateSource counts fetches and can be told to fail or change value
type fakeRateSource struct {
	mu      sync.Mutex
	rate    float64
	err     error
	fetches int32
}

func (f *fakeRateSource) FetchRate(_ context.Context) (float64, error) {
	atomic.AddInt32(&f.fetches, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return f.rate, nil
}

func (f *fakeRateSource) set(rate float64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rate = rate
	f.err = err
}

func (f *fakeRateSource) fetchCount() int32 {
	return atomic.LoadInt32(&f.fetches)
}

// fakeClock is a settable clock for the cache
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newCacheUnderTest(rate float64) (*pricing.RateCache, *fakeRateSource, *fakeClock) {
	source := &fakeRateSource{rate: rate}
	clock := &fakeClock{now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
	cache := pricing.NewRateCacheWithClock(source, 60*time.Second, clock.Now)
	return cache, source, clock
}

func TestRateCache_ServesFreshSampleWithoutFetch(t *testing.T) {
	cache, source, clock := newCacheUnderTest(610.0)
	ctx := context.Background()

	first, err := cache.Rate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 610.0, first)
	assert.EqualValues(t, 1, source.fetchCount())

	// The upstream value moves, but the cached sample is still fresh
	source.set(700.0, nil)
	clock.advance(59 * time.Second)

	second, err := cache.Rate(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, source.fetchCount())
}

func TestRateCache_RefetchesAfterWindow(t *testing.T) {
	cache, source, clock := newCacheUnderTest(610.0)
	ctx := context.Background()

	_, err := cache.Rate(ctx)
	require.NoError(t, err)

	source.set(700.0, nil)
	clock.advance(60 * time.Second)

	rate, err := cache.Rate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 700.0, rate)
	assert.EqualValues(t, 2, source.fetchCount())
}

func TestRateCache_FailsWithoutAnySample(t *testing.T) {
	cache, source, _ := newCacheUnderTest(0)
	source.set(0, errors.New("upstream down"))

	_, err := cache.Rate(context.Background())
	assert.ErrorIs(t, err, pricing.ErrRateUnavailable)
}

func TestRateCache_FailsClosedOnStaleSample(t *testing.T) {
	// A stale sample is never served silently; a failed refresh
	// propagates the error
	cache, source, clock := newCacheUnderTest(610.0)
	ctx := context.Background()

	_, err := cache.Rate(ctx)
	require.NoError(t, err)

	source.set(0, errors.New("upstream down"))
	clock.advance(2 * time.Minute)

	_, err = cache.Rate(ctx)
	assert.ErrorIs(t, err, pricing.ErrRateUnavailable)
}

func TestRateCache_ConcurrentReaders(t *testing.T) {
	cache, _, _ := newCacheUnderTest(610.0)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rate, err := cache.Rate(ctx)
			assert.NoError(t, err)
			assert.Equal(t, 610.0, rate)
		}()
	}
	wg.Wait()
}
