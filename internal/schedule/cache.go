package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wellfront/scheduling-engine/pkg/logging"
)

// RedisSlotCache caches resolved slots for a short TTL. Keys embed a
// per-provider version counter; any schedule or booking write bumps the
// version, orphaning all cached entries for that provider at once instead
// of enumerating them. Every failure degrades to a miss.
type RedisSlotCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewRedisSlotCache wraps a Redis client as a SlotCache.
func NewRedisSlotCache(client *redis.Client, ttl time.Duration, logger *logging.Logger) *RedisSlotCache {
	if client == nil {
		panic("schedule: redis client required")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisSlotCache{client: client, ttl: ttl, logger: logger.Component("slotcache")}
}

// Get returns cached slots for the query, if present.
func (c *RedisSlotCache) Get(ctx context.Context, q SlotQuery) ([]Slot, bool) {
	key, err := c.key(ctx, q)
	if err != nil {
		return nil, false
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Error("slot cache get failed", "error", err, "key", key)
		return nil, false
	}
	var slots []Slot
	if err := json.Unmarshal(payload, &slots); err != nil {
		c.logger.Error("slot cache decode failed", "error", err, "key", key)
		return nil, false
	}
	return slots, true
}

// Set stores resolved slots under the provider's current version.
func (c *RedisSlotCache) Set(ctx context.Context, q SlotQuery, slots []Slot) {
	key, err := c.key(ctx, q)
	if err != nil {
		return
	}
	payload, err := json.Marshal(slots)
	if err != nil {
		c.logger.Error("slot cache encode failed", "error", err, "key", key)
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Error("slot cache set failed", "error", err, "key", key)
	}
}

// Invalidate bumps the provider's version counter so existing entries stop
// resolving. Stale payloads expire via TTL.
func (c *RedisSlotCache) Invalidate(ctx context.Context, providerID uuid.UUID) {
	if err := c.client.Incr(ctx, versionKey(providerID)).Err(); err != nil {
		c.logger.Error("slot cache invalidate failed", "error", err, "provider_id", providerID)
	}
}

func (c *RedisSlotCache) key(ctx context.Context, q SlotQuery) (string, error) {
	version, err := c.client.Get(ctx, versionKey(q.ProviderID)).Int64()
	if err == redis.Nil {
		version = 0
	} else if err != nil {
		c.logger.Error("slot cache version read failed", "error", err, "provider_id", q.ProviderID)
		return "", err
	}
	return fmt.Sprintf("slots:%s:v%d:%d:%d:%d:%d:%d",
		q.ProviderID, version,
		q.RangeStart.UnixNano(), q.RangeEnd.UnixNano(),
		q.SlotDurationMinutes, q.BufferMinutes, q.MinLeadMinutes), nil
}

func versionKey(providerID uuid.UUID) string {
	return "slots:ver:" + providerID.String()
}
