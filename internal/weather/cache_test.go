package weather

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chrissnell/pvyield/pkg/geo"
)

// syntheticYear returns a week of 15-minute samples starting on June 1 of year.
func syntheticYear(cell geo.Location, year int, ghi float64) []Sample {
	start := time.Date(year, time.June, 1, 0, 0, 0, 0, time.UTC)
	samples := make([]Sample, 0, 24*IntervalsPerHour*7)
	for i := 0; i < cap(samples); i++ {
		samples = append(samples, Sample{
			Location:    cell,
			Timestamp:   start.Add(time.Duration(i) * 15 * time.Minute),
			Temperature: 20,
			GHI:         ghi,
		})
	}
	return samples
}

type countingProvider struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (c *countingProvider) FetchSamples(ctx context.Context, cell geo.Location, year int) ([]Sample, error) {
	c.calls.Add(1)
	time.Sleep(c.delay)
	if c.err != nil {
		return nil, c.err
	}
	return syntheticYear(cell, year, 100), nil
}

func TestCachingProviderHitsStore(t *testing.T) {
	backend := &countingProvider{}
	p := NewCachingProvider(backend, NewMemoryStore(4), zap.NewNop().Sugar())
	ctx := context.Background()

	first, err := p.FetchSamples(ctx, testCell, 2017)
	require.NoError(t, err)
	second, err := p.FetchSamples(ctx, testCell, 2017)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), backend.calls.Load())

	_, err = p.FetchSamples(ctx, testCell, 2018)
	require.NoError(t, err)
	assert.Equal(t, int32(2), backend.calls.Load())
}

func TestCachingProviderCoalescesMisses(t *testing.T) {
	backend := &countingProvider{delay: 50 * time.Millisecond}
	p := NewCachingProvider(backend, NewMemoryStore(4), zap.NewNop().Sugar())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.FetchSamples(context.Background(), testCell, 2017)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), backend.calls.Load())
}

func TestCachingProviderDoesNotCacheErrors(t *testing.T) {
	backend := &countingProvider{err: ErrDataUnavailable}
	store := NewMemoryStore(4)
	p := NewCachingProvider(backend, store, zap.NewNop().Sugar())

	for i := 0; i < 2; i++ {
		_, err := p.FetchSamples(context.Background(), testCell, 2017)
		assert.ErrorIs(t, err, ErrDataUnavailable)
	}
	assert.Equal(t, int32(2), backend.calls.Load())
	assert.Equal(t, 0, store.Len())
}

// gatedProvider blocks every fetch until release is closed or the fetch's own
// context ends.
type gatedProvider struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func newGatedProvider() *gatedProvider {
	return &gatedProvider{entered: make(chan struct{}, 16), release: make(chan struct{})}
}

func (g *gatedProvider) FetchSamples(ctx context.Context, cell geo.Location, year int) ([]Sample, error) {
	g.calls.Add(1)
	g.entered <- struct{}{}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-g.release:
		return syntheticYear(cell, year, 100), nil
	}
}

func TestCachingProviderFirstCallerCancelDoesNotFailOthers(t *testing.T) {
	backend := newGatedProvider()
	store := NewMemoryStore(4)
	p := NewCachingProvider(backend, store, zap.NewNop().Sugar())

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := p.FetchSamples(ctxA, testCell, 2017)
		errA <- err
	}()
	<-backend.entered

	type result struct {
		samples []Sample
		err     error
	}
	resB := make(chan result, 1)
	go func() {
		samples, err := p.FetchSamples(context.Background(), testCell, 2017)
		resB <- result{samples, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(backend.release)
	b := <-resB
	require.NoError(t, b.err)
	assert.NotEmpty(t, b.samples)
	assert.Equal(t, int32(1), backend.calls.Load())
	assert.Equal(t, 1, store.Len())
}

func TestCachingProviderCallerCancelStillFillsCache(t *testing.T) {
	backend := newGatedProvider()
	store := NewMemoryStore(4)
	p := NewCachingProvider(backend, store, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.FetchSamples(ctx, testCell, 2017)
		done <- err
	}()
	<-backend.entered

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(backend.release)
	assert.Eventually(t, func() bool { return store.Len() == 1 }, time.Second, 5*time.Millisecond)
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]Sample, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (brokenStore) Set(context.Context, string, []Sample) error {
	return errors.New("connection refused")
}

func TestCachingProviderSurvivesStoreFailure(t *testing.T) {
	backend := &countingProvider{}
	p := NewCachingProvider(backend, brokenStore{}, zap.NewNop().Sugar())

	samples, err := p.FetchSamples(context.Background(), testCell, 2017)
	require.NoError(t, err)
	assert.NotEmpty(t, samples)
}

func TestMemoryStoreEvictsOldest(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2)

	require.NoError(t, store.Set(ctx, "a", nil))
	require.NoError(t, store.Set(ctx, "b", nil))
	require.NoError(t, store.Set(ctx, "a", []Sample{{GHI: 1}}))
	require.NoError(t, store.Set(ctx, "c", nil))

	_, ok, _ := store.Get(ctx, "a")
	assert.False(t, ok)
	_, ok, _ = store.Get(ctx, "b")
	assert.True(t, ok)
	_, ok, _ = store.Get(ctx, "c")
	assert.True(t, ok)
	assert.Equal(t, 2, store.Len())
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "pvyield:weather:8.5 49.25:2017", CacheKey(testCell, 2017))
}
