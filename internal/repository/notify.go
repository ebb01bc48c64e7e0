package repository

import "context"

// Notifier warns a tenant that one of its endpoints is degrading.
type Notifier interface {
	NotifyDegraded(ctx context.Context, tenantID, endpointName string, failureCount int) error
}
