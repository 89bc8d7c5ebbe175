// Package cache holds the resolve cache in front of the Link Store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wadjakorntonsri/trimrr/pkg/core/domain"
)

const (
	DefaultTTL   = time.Hour
	TombstoneTTL = time.Minute // Outlives any in-flight resolve
	keyPrefix    = "link:"
	tombstone    = "-"
)

// RedisClient is the subset of go-redis the cache needs.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisCache stores links by identifier. Misses are never cached, so a link
// created after a miss is visible on the next read. Deleted identifiers hold
// a tombstone for TombstoneTTL.
type RedisCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewRedisCache(client RedisClient, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return client, nil
}

func (c *RedisCache) Get(ctx context.Context, identifier string) (*domain.Link, error) {
	data, err := c.client.Get(ctx, keyPrefix+identifier).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get %s: %w", identifier, err)
	}
	if string(data) == tombstone {
		return nil, domain.ErrNotFound
	}

	var link domain.Link
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, fmt.Errorf("redis: decode %s: %w", identifier, err)
	}
	return &link, nil
}

// Set overwrites whatever the key holds, tombstone included.
func (c *RedisCache) Set(ctx context.Context, link *domain.Link) error {
	data, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("redis: encode %s: %w", link.Identifier(), err)
	}

	if err := c.client.Set(ctx, keyPrefix+link.Identifier(), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", link.Identifier(), err)
	}
	return nil
}

// Fill is SET NX: it loses to a newer write and to a tombstone.
func (c *RedisCache) Fill(ctx context.Context, link *domain.Link) error {
	data, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("redis: encode %s: %w", link.Identifier(), err)
	}

	if err := c.client.SetNX(ctx, keyPrefix+link.Identifier(), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis: fill %s: %w", link.Identifier(), err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, identifier string) error {
	if err := c.client.Set(ctx, keyPrefix+identifier, tombstone, TombstoneTTL).Err(); err != nil {
		return fmt.Errorf("redis: invalidate %s: %w", identifier, err)
	}
	return nil
}
