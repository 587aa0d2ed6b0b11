package payments

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cardlinkhq/cardlink/internal/pkg/cache"
)

// DefaultEntitlementTTL bounds how stale a cached resolution may be. Plan
// writes invalidate eagerly; the TTL only covers writes from other processes.
const DefaultEntitlementTTL = 30 * time.Second

// EntitlementCache caches resolved entitlements per user. Implementations
// must be safe to skip entirely: a miss or a backend failure just means the
// resolver recomputes.
type EntitlementCache interface {
	Get(userID uint) (*Entitlement, bool)
	Set(userID uint, ent Entitlement)
	Invalidate(userID uint)
}

type redisEntitlementCache struct {
	ttl time.Duration
}

// NewRedisEntitlementCache creates a cache over the shared Redis client.
func NewRedisEntitlementCache(ttl time.Duration) EntitlementCache {
	if ttl <= 0 {
		ttl = DefaultEntitlementTTL
	}
	return &redisEntitlementCache{ttl: ttl}
}

func entitlementKey(userID uint) string {
	return fmt.Sprintf("entitlement:%d", userID)
}

func (c *redisEntitlementCache) Get(userID uint) (*Entitlement, bool) {
	raw, err := cache.Get(entitlementKey(userID))
	if err != nil {
		return nil, false
	}
	var ent Entitlement
	if err := json.Unmarshal([]byte(raw), &ent); err != nil {
		return nil, false
	}
	return &ent, true
}

func (c *redisEntitlementCache) Set(userID uint, ent Entitlement) {
	raw, err := json.Marshal(ent)
	if err != nil {
		return
	}
	_ = cache.Set(entitlementKey(userID), raw, c.ttl)
}

func (c *redisEntitlementCache) Invalidate(userID uint) {
	_ = cache.Delete(entitlementKey(userID))
}
