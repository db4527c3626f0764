package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Cache stores loaded principals between requests
type Cache interface {
	// Get returns the cached principal, or nil on a miss
	Get(ctx context.Context, tenantID, userID int64) (*Principal, error)
	Set(ctx context.Context, p *Principal) error
	Invalidate(ctx context.Context, tenantID, userID int64) error
}

func cacheKey(tenantID, userID int64) string {
	return fmt.Sprintf("principal:%d:%d", tenantID, userID)
}

// MemoryCache is a per-process LRU cache with TTL
type MemoryCache struct {
	cache *lru.LRU[string, *Principal]
}

// NewMemoryCache creates an LRU cache holding up to size principals for ttl
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size < 1 {
		size = 1
	}
	return &MemoryCache{cache: lru.NewLRU[string, *Principal](size, nil, ttl)}
}

// Get implements Cache
func (c *MemoryCache) Get(_ context.Context, tenantID, userID int64) (*Principal, error) {
	p, ok := c.cache.Get(cacheKey(tenantID, userID))
	if !ok {
		return nil, nil
	}
	return p, nil
}

// Set implements Cache
func (c *MemoryCache) Set(_ context.Context, p *Principal) error {
	c.cache.Add(cacheKey(p.TenantID, p.UserID), p)
	return nil
}

// Invalidate implements Cache
func (c *MemoryCache) Invalidate(_ context.Context, tenantID, userID int64) error {
	c.cache.Remove(cacheKey(tenantID, userID))
	return nil
}

// RedisCache shares principals between replicas
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed cache
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) key(tenantID, userID int64) string {
	return c.prefix + cacheKey(tenantID, userID)
}

// Get implements Cache
func (c *RedisCache) Get(ctx context.Context, tenantID, userID int64) (*Principal, error) {
	key := c.key(tenantID, userID)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var p Principal
	if err := json.Unmarshal(data, &p); err != nil {
		// If unmarshal fails, delete corrupt data
		c.client.Del(ctx, key)
		return nil, fmt.Errorf("failed to unmarshal principal: %w", err)
	}
	return &p, nil
}

// Set implements Cache
func (c *RedisCache) Set(ctx context.Context, p *Principal) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal principal: %w", err)
	}
	return c.client.Set(ctx, c.key(p.TenantID, p.UserID), data, c.ttl).Err()
}

// Invalidate implements Cache
func (c *RedisCache) Invalidate(ctx context.Context, tenantID, userID int64) error {
	return c.client.Del(ctx, c.key(tenantID, userID)).Err()
}

// CachedLoader serves principals from a cache, loading misses once even
// under concurrent requests for the same user.
type CachedLoader struct {
	next   Loader
	cache  Cache
	group  singleflight.Group
	logger logrus.FieldLogger
}

// NewCachedLoader wraps next with cache
func NewCachedLoader(next Loader, cache Cache, logger logrus.FieldLogger) *CachedLoader {
	return &CachedLoader{next: next, cache: cache, logger: logger}
}

// LoadPrincipal implements Loader. Cache failures degrade to a direct load.
func (l *CachedLoader) LoadPrincipal(ctx context.Context, tenantID, userID int64) (*Principal, error) {
	cached, err := l.cache.Get(ctx, tenantID, userID)
	if err != nil {
		l.logger.WithError(err).WithField("user_id", userID).Warn("principal cache read failed")
	} else if cached != nil {
		return cached, nil
	}

	// Shared by every waiter; it must not end with the caller that started it
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := l.group.Do(cacheKey(tenantID, userID), func() (interface{}, error) {
		p, err := l.next.LoadPrincipal(loadCtx, tenantID, userID)
		if err != nil {
			return nil, err
		}
		if err := l.cache.Set(loadCtx, p); err != nil {
			l.logger.WithError(err).WithField("user_id", userID).Warn("principal cache write failed")
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Principal), nil
}

// Invalidate drops a cached principal after its roles or assignments change
func (l *CachedLoader) Invalidate(ctx context.Context, tenantID, userID int64) error {
	return l.cache.Invalidate(ctx, tenantID, userID)
}

// Resolver turns a user id into an Oracle for the request
type Resolver struct {
	loader Loader
	opts   Options
}

// NewResolver creates a Resolver
func NewResolver(loader Loader, opts Options) *Resolver {
	return &Resolver{loader: loader, opts: opts}
}

// Resolve loads the principal and builds its Oracle
func (r *Resolver) Resolve(ctx context.Context, tenantID, userID int64) (*Oracle, error) {
	p, err := r.loader.LoadPrincipal(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	return NewOracle(p, r.opts), nil
}
