// Package quota implements the soft QuotaGuard port (repository.QuotaGuard)
// the AI planner worker checks before spending tokens on an endpoint
// analysis. Backed by Redis: a per-tenant daily counter, check-then-incr.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "cronicorn:ai_tokens:"

// RedisQuotaGuard enforces a soft daily token budget per tenant. Each
// tenant gets its own key, namespaced under keyPrefix, so one tenant's
// burn never shows up in another's count.
type RedisQuotaGuard struct {
	client      *redis.Client
	dailyBudget int
	ttl         time.Duration
}

func NewRedisQuotaGuard(addr string, db, dailyBudget int) *RedisQuotaGuard {
	return &RedisQuotaGuard{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   db,
		}),
		dailyBudget: dailyBudget,
		ttl:         24 * time.Hour,
	}
}

// CanProceed reports whether tenantID is still under its daily budget.
// Check-then-record, not atomic with RecordUsage; a burst of concurrent
// analyses can overshoot slightly.
func (g *RedisQuotaGuard) CanProceed(ctx context.Context, tenantID string) (bool, error) {
	if g.dailyBudget <= 0 {
		return true, nil
	}
	used, err := g.client.Get(ctx, key(tenantID)).Int()
	if err != nil && err != redis.Nil {
		return false, fmt.Errorf("read quota: %w", err)
	}
	return used < g.dailyBudget, nil
}

// RecordUsage adds tokens to tenantID's total for the current UTC day,
// refreshing the key's TTL so a finished day's counter expires.
func (g *RedisQuotaGuard) RecordUsage(ctx context.Context, tenantID string, tokens int) error {
	pipe := g.client.TxPipeline()
	pipe.IncrBy(ctx, key(tenantID), int64(tokens))
	pipe.Expire(ctx, key(tenantID), g.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record quota usage: %w", err)
	}
	return nil
}

// key names tenantID's counter for the current UTC day, so each day
// starts from zero.
func key(tenantID string) string {
	return keyPrefix + tenantID + ":" + time.Now().UTC().Format("2006-01-02")
}
