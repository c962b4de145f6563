package config

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	feemodels "cairn/internal/fee/models"
	id "cairn/pkg/domain"
)

// RedisCache is a read-through cache in front of another Lookup.
// Configuration-missing errors are never cached: provisioning the
// missing table must take effect immediately.
type RedisCache struct {
	inner  Lookup
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(inner Lookup, client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{inner: inner, client: client, ttl: ttl}
}

func (c *RedisCache) NationalConfig(ctx context.Context, year int) (*feemodels.NationalConfig, error) {
	key := fmt.Sprintf("cairn:feecfg:national:%d", year)
	var cfg feemodels.NationalConfig
	if c.get(ctx, key, &cfg) {
		return &cfg, nil
	}
	resolved, err := c.inner.NationalConfig(ctx, year)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, resolved)
	return resolved, nil
}

func (c *RedisCache) SectionConfig(ctx context.Context, groupID id.GroupID, year int) (*feemodels.SectionConfig, error) {
	key := fmt.Sprintf("cairn:feecfg:section:%s:%d", groupID.String(), year)
	var cfg feemodels.SectionConfig
	if c.get(ctx, key, &cfg) {
		return &cfg, nil
	}
	resolved, err := c.inner.SectionConfig(ctx, groupID, year)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, resolved)
	return resolved, nil
}

// get returns true on a usable cache hit. Redis or decode failures
// degrade to a miss; the cache never makes a lookup fail.
func (c *RedisCache) get(ctx context.Context, key string, out any) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func (c *RedisCache) set(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, key, raw, c.ttl).Err()
}
