package marketdata

import (
	"context"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Cache is the injected price-cache service. Entries carry a TTL; expired
// entries behave as absent. Invalidate drops a key ahead of its TTL. Remote
// adapters honor ctx cancellation.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration)
	Invalidate(ctx context.Context, key string)
}

type memoryCache struct {
	mu sync.Mutex
	m  map[string]memoryEntry
}

type memoryEntry struct {
	b   []byte
	exp time.Time
}

// NewMemoryCache returns an in-process cache.
func NewMemoryCache() Cache { return &memoryCache{m: make(map[string]memoryEntry)} }

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok || (!e.exp.IsZero() && time.Now().After(e.exp)) {
		delete(c.m, key)
		return nil, false
	}
	return e.b, true
}

func (c *memoryCache) Set(_ context.Context, key string, val []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := memoryEntry{b: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	c.m[key] = e
}

func (c *memoryCache) Invalidate(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
}

type redisCache struct{ r *redis.Client }

// NewRedisCache returns a cache backed by a shared Redis instance, for runs
// that want price lookups cached across processes.
func NewRedisCache(addr string) Cache {
	return &redisCache{r: redis.NewClient(&redis.Options{Addr: addr})}
}

// redisTimeout bounds a single cache round trip; a slow Redis must never
// stall a price lookup longer than this, even under an open-ended ctx.
const redisTimeout = 500 * time.Millisecond

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	v, err := c.r.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return v, true
}

func (c *redisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	_ = c.r.Set(ctx, key, val, ttl).Err()
}

func (c *redisCache) Invalidate(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	_ = c.r.Del(ctx, key).Err()
}

// NewCache picks the Redis adapter when an address is configured, otherwise
// the in-process cache.
func NewCache(redisAddr string) Cache {
	if redisAddr != "" {
		return NewRedisCache(redisAddr)
	}
	return NewMemoryCache()
}
