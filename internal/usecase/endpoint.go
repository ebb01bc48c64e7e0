package usecase

import (
	"context"
	"fmt"

	"github.com/cronicorn/scheduler/internal/domain"
	"github.com/cronicorn/scheduler/internal/repository"
)

// EndpointUsecase backs the operator surface: manual test-fires and
// archiving. The scheduling loop never goes through here — it owns its
// own claim/dispatch cycle.
type EndpointUsecase struct {
	endpoints  repository.EndpointRepository
	runs       repository.RunRepository
	dispatcher repository.Dispatcher
}

func NewEndpointUsecase(endpoints repository.EndpointRepository, runs repository.RunRepository, dispatcher repository.Dispatcher) *EndpointUsecase {
	return &EndpointUsecase{
		endpoints:  endpoints,
		runs:       runs,
		dispatcher: dispatcher,
	}
}

// TestFireResult is what a manual test-fire reports back to the operator.
type TestFireResult struct {
	RunID        string
	Status       domain.Status
	StatusCode   *int
	DurationMs   int64
	ResponseBody string
	ErrorMessage *string
}

// TestFire executes one endpoint immediately with source "manual-test",
// recording the run through the same Dispatcher+RunRepository path the
// scheduler loop uses. It deliberately leaves lastRunAt, nextRunAt, and
// failureCount untouched — a manual probe must not disturb the cadence.
func (u *EndpointUsecase) TestFire(ctx context.Context, endpointID, userID string) (*TestFireResult, error) {
	ep, err := u.endpoints.GetEndpoint(ctx, endpointID)
	if err != nil {
		return nil, err
	}
	if ep.TenantID != userID {
		return nil, domain.ErrEndpointNotFound
	}
	if ep.ArchivedAt != nil {
		return nil, domain.ErrEndpointArchived
	}

	runID, err := u.runs.Create(ctx, repository.CreateRunInput{
		EndpointID: ep.ID,
		Attempt:    ep.FailureCount + 1,
		Source:     domain.SourceManualTest,
	})
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	result := u.dispatcher.Execute(ctx, ep)

	if err := u.runs.Finish(ctx, runID, repository.FinishRunInput{
		Status:            result.Status,
		DurationMs:        result.DurationMs,
		StatusCode:        result.StatusCode,
		ResponseBody:      result.ResponseBody,
		MaxResponseSizeKb: ep.MaxResponseSizeKb,
		ErrorMessage:      result.ErrorMessage,
	}); err != nil {
		return nil, fmt.Errorf("finish run: %w", err)
	}

	return &TestFireResult{
		RunID:        runID,
		Status:       result.Status,
		StatusCode:   result.StatusCode,
		DurationMs:   result.DurationMs,
		ResponseBody: result.ResponseBody,
		ErrorMessage: result.ErrorMessage,
	}, nil
}

// ListRuns returns the most recent runs for an endpoint the caller owns.
func (u *EndpointUsecase) ListRuns(ctx context.Context, endpointID, userID string, limit int) ([]*domain.Run, error) {
	ep, err := u.endpoints.GetEndpoint(ctx, endpointID)
	if err != nil {
		return nil, err
	}
	if ep.TenantID != userID {
		return nil, domain.ErrEndpointNotFound
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return u.runs.ListByEndpointID(ctx, endpointID, limit)
}

// Archive soft-deletes an endpoint the caller owns; subsequent scheduler
// claims exclude it.
func (u *EndpointUsecase) Archive(ctx context.Context, endpointID, userID string) error {
	ep, err := u.endpoints.GetEndpoint(ctx, endpointID)
	if err != nil {
		return err
	}
	if ep.TenantID != userID {
		return domain.ErrEndpointNotFound
	}
	return u.endpoints.Archive(ctx, endpointID)
}
