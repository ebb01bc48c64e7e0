package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cronicorn/scheduler/internal/domain"
	"github.com/cronicorn/scheduler/internal/usecase"
	"github.com/gin-gonic/gin"
)

type SigningKeyHandler struct {
	keyUsecase *usecase.SigningKeyUsecase
	logger     *slog.Logger
}

func NewSigningKeyHandler(keyUsecase *usecase.SigningKeyUsecase, logger *slog.Logger) *SigningKeyHandler {
	return &SigningKeyHandler{
		keyUsecase: keyUsecase,
		logger:     logger.With("component", "signing_key_handler"),
	}
}

// createKeyResponse carries the raw key. This is the only time it is ever
// returned — afterwards only the prefix is visible.
type createKeyResponse struct {
	Key       string    `json:"key"`
	KeyPrefix string    `json:"key_prefix"`
	CreatedAt time.Time `json:"created_at"`
}

// POST /signing-keys
func (h *SigningKeyHandler) Create(ctx *gin.Context) {
	created, err := h.keyUsecase.Create(ctx.Request.Context(), ctx.GetString("userID"))
	if err != nil {
		if errors.Is(err, domain.ErrSigningKeyExists) {
			ctx.JSON(http.StatusConflict, gin.H{"error": errSigningKeyExists})
			return
		}
		h.logger.ErrorContext(ctx.Request.Context(), "create signing key", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusCreated, createKeyResponse{
		Key:       created.RawKey,
		KeyPrefix: created.KeyPrefix,
		CreatedAt: created.Key.CreatedAt,
	})
}

// POST /signing-keys/rotate
func (h *SigningKeyHandler) Rotate(ctx *gin.Context) {
	created, err := h.keyUsecase.Rotate(ctx.Request.Context(), ctx.GetString("userID"))
	if err != nil {
		if errors.Is(err, domain.ErrSigningKeyNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errSigningKeyNotFound})
			return
		}
		h.logger.ErrorContext(ctx.Request.Context(), "rotate signing key", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusOK, createKeyResponse{
		Key:       created.RawKey,
		KeyPrefix: created.KeyPrefix,
		CreatedAt: created.Key.CreatedAt,
	})
}
