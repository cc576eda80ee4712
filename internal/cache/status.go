package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"venuehours/internal/hours"
)

const keyPrefix = "hours:status"

// StatusCache keeps computed statuses in Redis keyed by location and
// venue-local minute. A nil *StatusCache, a nil client or a zero TTL
// disables caching.
type StatusCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewStatusCache(client *redis.Client, ttl time.Duration) *StatusCache {
	return &StatusCache{redis: client, ttl: ttl}
}

func (c *StatusCache) enabled() bool {
	return c != nil && c.redis != nil && c.ttl > 0
}

func statusKey(locationID int64, at time.Time) string {
	return fmt.Sprintf("%s:%d:%s", keyPrefix, locationID, at.Format("200601021504"))
}

// Get returns the cached status for the minute containing at.
func (c *StatusCache) Get(ctx context.Context, locationID int64, at time.Time) (hours.OpenStatus, bool) {
	var st hours.OpenStatus
	if !c.enabled() {
		return st, false
	}
	val, err := c.redis.Get(ctx, statusKey(locationID, at)).Result()
	if err != nil {
		return st, false
	}
	if err := json.Unmarshal([]byte(val), &st); err != nil {
		return hours.OpenStatus{}, false
	}
	return st, true
}

// Set stores st for the minute containing at.
func (c *StatusCache) Set(ctx context.Context, locationID int64, at time.Time, st hours.OpenStatus) error {
	if !c.enabled() {
		return nil
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, statusKey(locationID, at), data, c.ttl).Err()
}

// InvalidateLocation drops every cached status of a location and returns
// the number of keys removed.
func (c *StatusCache) InvalidateLocation(ctx context.Context, locationID int64) (int, error) {
	return c.deleteMatching(ctx, fmt.Sprintf("%s:%d:*", keyPrefix, locationID))
}

// InvalidateAll drops every cached status.
func (c *StatusCache) InvalidateAll(ctx context.Context) (int, error) {
	return c.deleteMatching(ctx, keyPrefix+":*")
}

func (c *StatusCache) deleteMatching(ctx context.Context, pattern string) (int, error) {
	if !c.enabled() {
		return 0, nil
	}

	removed := 0
	iter := c.redis.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, iter.Err()
}

// Ping reports whether Redis is reachable. A disabled cache is always ready.
func (c *StatusCache) Ping(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	return c.redis.Ping(ctx).Err()
}
