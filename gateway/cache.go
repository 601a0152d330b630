package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// Cache keeps Select results of selected tables in Redis. Every write to a
// cached table evicts all of its entries.
type Cache struct {
	redis  *redis.Client
	ttl    time.Duration
	tables map[string]bool
}

// NewCache creates a cache for the given tables using the provided Redis client and TTL.
func NewCache(client *redis.Client, ttl time.Duration, tables ...string) *Cache {
	if ttl < 0 {
		ttl = 0
	}
	c := &Cache{redis: client, ttl: ttl, tables: map[string]bool{}}
	for _, t := range tables {
		c.tables[t] = true
	}
	return c
}

// Covers reports whether results of table are cached.
func (c *Cache) Covers(table string) bool {
	return c != nil && c.redis != nil && c.tables[table]
}

func (c *Cache) Load(ctx context.Context, table string, q Query) ([]json.RawMessage, bool) {
	if !c.Covers(table) {
		return nil, false
	}
	key := selectCacheKey(table, q)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing store without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return nil, false
	}
	var rows []json.RawMessage
	if err := sonic.Unmarshal(data, &rows); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return nil, false
	}
	return rows, true
}

func (c *Cache) Store(ctx context.Context, table string, q Query, rows []json.RawMessage) {
	if !c.Covers(table) || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(rows)
	if err != nil {
		return
	}
	key := selectCacheKey(table, q)
	pipe := c.redis.TxPipeline()
	pipe.Set(ctx, key, data, c.ttl)
	pipe.SAdd(ctx, tableIndexKey(table), key)
	pipe.Expire(ctx, tableIndexKey(table), c.ttl)
	_, _ = pipe.Exec(ctx)
}

// Evict drops every cached result of table.
func (c *Cache) Evict(ctx context.Context, table string) {
	if !c.Covers(table) {
		return
	}
	keys, err := c.redis.SMembers(ctx, tableIndexKey(table)).Result()
	if err != nil {
		return
	}
	keys = append(keys, tableIndexKey(table))
	_, _ = c.redis.Del(ctx, keys...).Result()
}

func selectCacheKey(table string, q Query) string {
	return "select:" + table + ":" + q.String()
}

func tableIndexKey(table string) string {
	return "select-index:" + table
}
