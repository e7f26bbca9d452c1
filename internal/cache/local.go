package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bluele/gcache"
)

// LocalCache implements Cache in process memory on top of a gcache LRU.
type LocalCache struct {
	lru        gcache.Cache
	defaultTTL time.Duration

	// counterMu serializes IncrWithExpiry read-modify-write cycles.
	counterMu sync.Mutex
}

type counter struct {
	n       int64
	expires time.Time
}

// NewLocalCache creates an LRU cache holding at most size entries. Entries set
// with a zero ttl expire after defaultTTL.
func NewLocalCache(size int, defaultTTL time.Duration) *LocalCache {
	b := gcache.New(size).LRU()
	if defaultTTL > 0 {
		b = b.Expiration(defaultTTL)
	}
	return &LocalCache{lru: b.Build(), defaultTTL: defaultTTL}
}

func (c *LocalCache) Ping(context.Context) error { return nil }

func (c *LocalCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	v := append([]byte(nil), value...)
	if ttl <= 0 {
		return c.lru.Set(key, v)
	}
	return c.lru.SetWithExpire(key, v, ttl)
}

func (c *LocalCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, err := c.lru.Get(key)
	if errors.Is(err, gcache.KeyNotFoundError) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), b...), true, nil
}

func (c *LocalCache) Delete(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

func (c *LocalCache) IncrWithExpiry(_ context.Context, key string, expiry time.Duration) (int64, error) {
	c.counterMu.Lock()
	defer c.counterMu.Unlock()

	now := time.Now()
	cur := counter{expires: now.Add(expiry)}
	if v, err := c.lru.Get(key); err == nil {
		if existing, ok := v.(counter); ok && now.Before(existing.expires) {
			cur = existing
		}
	}
	cur.n++

	if err := c.lru.SetWithExpire(key, cur, cur.expires.Sub(now)); err != nil {
		return 0, err
	}
	return cur.n, nil
}

var _ Cache = (*LocalCache)(nil)
