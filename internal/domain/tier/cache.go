package tier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const cacheKey = "loyalty:tiers:active"

// Cache keeps the active tier list in Redis. The tier table is
// read-mostly, so public listings and balance displays hit the cache;
// everything running inside a ledger transaction reads the table
// directly. A nil client disables caching.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) Get(ctx context.Context) ([]*Tier, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Msg("tier cache read failed")
		}
		return nil, false
	}

	var tiers []*Tier
	if err := json.Unmarshal(data, &tiers); err != nil {
		log.Warn().Err(err).Msg("tier cache payload corrupt")
		return nil, false
	}
	return tiers, true
}

func (c *Cache) Set(ctx context.Context, tiers []*Tier) {
	if c == nil || c.client == nil {
		return
	}

	data, err := json.Marshal(tiers)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey, data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("tier cache write failed")
	}
}

func (c *Cache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, cacheKey).Err(); err != nil {
		log.Warn().Err(err).Msg("tier cache invalidation failed")
	}
}
