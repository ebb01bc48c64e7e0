package repository

import "context"

// QuotaGuard is the soft quota port the AI planner checks before spending
// tokens on an endpoint analysis. CanProceed may allow bursts
// (check-then-record); do not add locking to make it strict.
type QuotaGuard interface {
	CanProceed(ctx context.Context, tenantID string) (bool, error)
	RecordUsage(ctx context.Context, tenantID string, tokens int) error
}
