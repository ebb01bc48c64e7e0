package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cronicorn/scheduler/internal/domain"
	"github.com/cronicorn/scheduler/internal/usecase"
	"github.com/gin-gonic/gin"
)

type EndpointHandler struct {
	endpointUsecase *usecase.EndpointUsecase
	logger          *slog.Logger
}

func NewEndpointHandler(endpointUsecase *usecase.EndpointUsecase, logger *slog.Logger) *EndpointHandler {
	return &EndpointHandler{
		endpointUsecase: endpointUsecase,
		logger:          logger.With("component", "endpoint_handler"),
	}
}

type testFireResponse struct {
	RunID        string        `json:"run_id"`
	Status       domain.Status `json:"status"`
	StatusCode   *int          `json:"status_code,omitempty"`
	DurationMS   int64         `json:"duration_ms"`
	ResponseBody string        `json:"response_body,omitempty"`
	Error        *string       `json:"error,omitempty"`
}

type runResponse struct {
	ID         string        `json:"id"`
	EndpointID string        `json:"endpoint_id"`
	Status     domain.Status `json:"status"`
	Attempt    int           `json:"attempt"`
	Source     domain.Source `json:"source"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	DurationMS *int64        `json:"duration_ms,omitempty"`
	StatusCode *int          `json:"status_code,omitempty"`
	Error      *string       `json:"error,omitempty"`
}

// POST /endpoints/:id/test-fire
// Runs the endpoint once, immediately, with source "manual-test". The
// run is recorded like any other but the cadence is left untouched.
func (h *EndpointHandler) TestFire(ctx *gin.Context) {
	endpointID := ctx.Param("id")

	result, err := h.endpointUsecase.TestFire(ctx.Request.Context(), endpointID, ctx.GetString("userID"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEndpointNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": errEndpointNotFound})
		case errors.Is(err, domain.ErrEndpointArchived):
			ctx.JSON(http.StatusConflict, gin.H{"error": errEndpointArchived})
		default:
			h.logger.ErrorContext(ctx.Request.Context(), "test fire", "endpoint_id", endpointID, "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	ctx.JSON(http.StatusOK, testFireResponse{
		RunID:        result.RunID,
		Status:       result.Status,
		StatusCode:   result.StatusCode,
		DurationMS:   result.DurationMs,
		ResponseBody: result.ResponseBody,
		Error:        result.ErrorMessage,
	})
}

// GET /endpoints/:id/runs?limit=20
func (h *EndpointHandler) ListRuns(ctx *gin.Context) {
	endpointID := ctx.Param("id")
	limit, _ := strconv.Atoi(ctx.Query("limit"))

	runs, err := h.endpointUsecase.ListRuns(ctx.Request.Context(), endpointID, ctx.GetString("userID"), limit)
	if err != nil {
		if errors.Is(err, domain.ErrEndpointNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errEndpointNotFound})
			return
		}
		h.logger.ErrorContext(ctx.Request.Context(), "list runs", "endpoint_id", endpointID, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	resp := make([]runResponse, len(runs))
	for i, r := range runs {
		resp[i] = runResponse{
			ID:         r.ID,
			EndpointID: r.EndpointID,
			Status:     r.Status,
			Attempt:    r.Attempt,
			Source:     r.Source,
			StartedAt:  r.StartedAt,
			FinishedAt: r.FinishedAt,
			DurationMS: r.DurationMs,
			StatusCode: r.StatusCode,
			Error:      r.ErrorMessage,
		}
	}
	ctx.JSON(http.StatusOK, resp)
}

// DELETE /endpoints/:id
// Soft delete: the endpoint is archived and excluded from future claims.
func (h *EndpointHandler) Archive(ctx *gin.Context) {
	endpointID := ctx.Param("id")

	if err := h.endpointUsecase.Archive(ctx.Request.Context(), endpointID, ctx.GetString("userID")); err != nil {
		if errors.Is(err, domain.ErrEndpointNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errEndpointNotFound})
			return
		}
		h.logger.ErrorContext(ctx.Request.Context(), "archive endpoint", "endpoint_id", endpointID, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.Status(http.StatusNoContent)
}
