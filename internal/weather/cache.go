package weather

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/chrissnell/pvyield/pkg/geo"
)

// Store holds cached series. Get reports false on a miss.
type Store interface {
	Get(ctx context.Context, key string) ([]Sample, bool, error)
	Set(ctx context.Context, key string, samples []Sample) error
}

// CachingProvider wraps a Provider with a Store. Concurrent misses for the
// same series are coalesced into one backend fetch. Cached slices are shared
// between callers and must not be modified.
type CachingProvider struct {
	next   Provider
	store  Store
	group  singleflight.Group
	logger *zap.SugaredLogger
}

// NewCachingProvider returns a Provider that consults store before next.
func NewCachingProvider(next Provider, store Store, logger *zap.SugaredLogger) *CachingProvider {
	return &CachingProvider{next: next, store: store, logger: logger}
}

// CacheKey identifies one cell-year series.
func CacheKey(cell geo.Location, year int) string {
	return "pvyield:weather:" + cell.Key() + ":" + strconv.Itoa(year)
}

// FetchSamples implements Provider.
func (c *CachingProvider) FetchSamples(ctx context.Context, cell geo.Location, year int) ([]Sample, error) {
	key := CacheKey(cell, year)

	samples, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warnf("weather cache read for %s failed: %v", key, err)
	} else if ok {
		return samples, nil
	}

	// The shared fetch outlives any single caller; each caller only waits as
	// long as its own context allows.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		samples, err := c.next.FetchSamples(fetchCtx, cell, year)
		if err != nil {
			return nil, err
		}
		if err := c.store.Set(fetchCtx, key, samples); err != nil {
			c.logger.Warnf("weather cache write for %s failed: %v", key, err)
		}
		return samples, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Sample), nil
	}
}

// MemoryStore keeps up to a fixed number of series in process memory and
// evicts the oldest entry first.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string][]Sample
	order   []string
	limit   int
}

// NewMemoryStore holds at most limit series. limit < 1 is treated as 1.
func NewMemoryStore(limit int) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string][]Sample),
		limit:   max(limit, 1),
	}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key string) ([]Sample, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	samples, ok := m.entries[key]
	return samples, ok, nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, key string, samples []Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[key]; !ok {
		for len(m.order) >= m.limit {
			delete(m.entries, m.order[0])
			m.order = m.order[1:]
		}
		m.order = append(m.order, key)
	}
	m.entries[key] = samples
	return nil
}

// Len reports the number of cached series.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// RedisStore keeps msgpack-encoded series in Redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to the Redis server at addr. A zero ttl keeps
// entries until they are evicted by the server.
func NewRedisStore(ctx context.Context, addr string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, key string) ([]Sample, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var samples []Sample
	if err := msgpack.Unmarshal(data, &samples); err != nil {
		return nil, false, fmt.Errorf("decoding cached series %s: %w", key, err)
	}
	return samples, true, nil
}

// Set implements Store.
func (r *RedisStore) Set(ctx context.Context, key string, samples []Sample) error {
	data, err := msgpack.Marshal(samples)
	if err != nil {
		return fmt.Errorf("encoding series %s: %w", key, err)
	}
	return r.client.Set(ctx, key, data, r.ttl).Err()
}

// Close closes the Redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
