package httptransport

import (
	"log/slog"

	"github.com/cronicorn/scheduler/internal/transport/http/handler"
	"github.com/cronicorn/scheduler/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

// NewRouter assembles the operator surface: magic-link auth, manual
// test-fires, run history, archiving, and signing-key management. The
// broader CRUD/MCP surface lives outside this service.
func NewRouter(
	logger *slog.Logger,
	authHandler *handler.AuthHandler,
	endpointHandler *handler.EndpointHandler,
	keyHandler *handler.SigningKeyHandler,
	jwtKey []byte,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	// Public auth routes
	r.POST("/auth/magic-link", authHandler.RequestMagicLink)
	r.GET("/auth/verify", authHandler.Verify)

	authMW := middleware.Auth(jwtKey)

	// Protected endpoint routes
	endpoints := r.Group("/endpoints", authMW)
	endpoints.POST("/:id/test-fire", endpointHandler.TestFire)
	endpoints.GET("/:id/runs", endpointHandler.ListRuns)
	endpoints.DELETE("/:id", endpointHandler.Archive)

	// Protected signing-key routes
	keys := r.Group("/signing-keys", authMW)
	keys.POST("", keyHandler.Create)
	keys.POST("/rotate", keyHandler.Rotate)

	return r
}
