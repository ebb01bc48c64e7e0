// Package notify implements the endpoint-degradation Notifier (repository.Notifier):
// when an endpoint's failure streak crosses a configured threshold, the
// scheduler loop asks this package to warn the tenant.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cronicorn/scheduler/internal/repository"
	"github.com/resend/resend-go/v2"
)

// UserContactResolver resolves a tenant ID to a user's email through the
// existing auth UserRepository — tenants and users share an identity in
// this module's scope, so tenantID is a user ID.
type UserContactResolver struct {
	users repository.UserRepository
}

func NewUserContactResolver(users repository.UserRepository) *UserContactResolver {
	return &UserContactResolver{users: users}
}

func (r *UserContactResolver) ResolveContact(ctx context.Context, tenantID string) (string, error) {
	user, err := r.users.FindByID(ctx, tenantID)
	if err != nil {
		return "", err
	}
	return user.Email, nil
}

// ContactResolver maps a tenant ID to the email address that should
// receive degradation alerts. A thin seam over the excluded user/tenant
// CRUD layer — production wires it to UserRepository.FindByID.
type ContactResolver interface {
	ResolveContact(ctx context.Context, tenantID string) (string, error)
}

// LogNotifier logs the alert instead of sending it — used in ENV=local,
// mirroring email.LogSender.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "notify")}
}

func (n *LogNotifier) NotifyDegraded(_ context.Context, tenantID, endpointName string, failureCount int) error {
	n.logger.Info("endpoint degraded (local dev)",
		"tenant_id", tenantID, "endpoint_name", endpointName, "failure_count", failureCount)
	return nil
}

// ResendNotifier sends degradation alerts via the Resend API.
type ResendNotifier struct {
	client   *resend.Client
	from     string
	contacts ContactResolver
	logger   *slog.Logger
}

func NewResendNotifier(apiKey, from string, contacts ContactResolver, logger *slog.Logger) *ResendNotifier {
	return &ResendNotifier{
		client:   resend.NewClient(apiKey),
		from:     from,
		contacts: contacts,
		logger:   logger.With("component", "notify"),
	}
}

func (n *ResendNotifier) NotifyDegraded(ctx context.Context, tenantID, endpointName string, failureCount int) error {
	to, err := n.contacts.ResolveContact(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("resolve contact: %w", err)
	}
	if to == "" {
		n.logger.WarnContext(ctx, "no contact for tenant, skipping degradation alert", "tenant_id", tenantID)
		return nil
	}

	subject := fmt.Sprintf("Endpoint %q is failing", endpointName)
	body := fmt.Sprintf(
		`<p>Your scheduled endpoint <strong>%s</strong> has failed %d times in a row.</p>
		 <p>Cronicorn will keep retrying on its configured cadence. Check the endpoint's
		 recent runs for details, or pause it until the underlying issue is fixed.</p>`,
		endpointName, failureCount,
	)

	params := &resend.SendEmailRequest{
		From:    n.from,
		To:      []string{to},
		Subject: subject,
		Html:    body,
	}
	if _, err := n.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("send degradation email: %w", err)
	}
	return nil
}

// New returns a LogNotifier for ENV=local, ResendNotifier otherwise.
func New(env, apiKey, from string, contacts ContactResolver, logger *slog.Logger) repository.Notifier {
	if env == "local" {
		return NewLogNotifier(logger)
	}
	return NewResendNotifier(apiKey, from, contacts, logger)
}
