package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache JSON values under "<prefix>:cache:<key>" with a TTL
// ⭐ SSOT: 캐시 헬퍼는 여기서만
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a new cache helper
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

// Enabled reports whether the backing client is connected
func (c *Cache) Enabled() bool {
	return c != nil && c.client.Enabled()
}

func (c *Cache) fullKey(key string) string {
	return fmt.Sprintf("%s:cache:%s", c.prefix, key)
}

// Get retrieves a cached value; a missing key is (false, nil)
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}

	data, err := c.client.rdb.Get(ctx, c.fullKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get failed: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}

	return true, nil
}

// Set stores a value in cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	return c.client.rdb.Set(ctx, c.fullKey(key), data, ttl).Err()
}

// Delete removes a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.rdb.Del(ctx, c.fullKey(key)).Err()
}

// Clear removes every key under this cache's prefix, returning the count
func (c *Cache) Clear(ctx context.Context) (int, error) {
	if !c.Enabled() {
		return 0, nil
	}

	rdb := c.client.rdb
	iter := rdb.Scan(ctx, 0, c.fullKey("*"), 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("cache scan failed: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	deleted, err := rdb.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("cache clear failed: %w", err)
	}
	return int(deleted), nil
}

// ResultKey key for a cached composite estimation result
func ResultKey(fingerprint string) string {
	return fmt.Sprintf("estimate:%s", fingerprint)
}
