package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cronicorn/scheduler/config"
	"github.com/cronicorn/scheduler/internal/email"
	"github.com/cronicorn/scheduler/internal/health"
	"github.com/cronicorn/scheduler/internal/infrastructure/postgres"
	ctxlog "github.com/cronicorn/scheduler/internal/log"
	"github.com/cronicorn/scheduler/internal/metrics"
	"github.com/cronicorn/scheduler/internal/scheduler"
	"github.com/cronicorn/scheduler/internal/signing"
	httptransport "github.com/cronicorn/scheduler/internal/transport/http"
	"github.com/cronicorn/scheduler/internal/transport/http/handler"
	"github.com/cronicorn/scheduler/internal/usecase"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	// Auth
	users := postgres.NewUserRepository(pool)
	emailSender := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)
	authUsecase := usecase.NewAuthUsecase(users, emailSender, []byte(cfg.JWTSecret), cfg.MagicLinkBase)
	authHandler := handler.NewAuthHandler(authUsecase, logger)

	// Endpoints: manual test-fires share the scheduler's dispatcher path.
	endpoints := postgres.NewEndpointRepository(pool)
	runs := postgres.NewRunRepository(pool)
	signingKeys := postgres.NewSigningKeyRepository(pool)
	keyProvider := signing.NewKeyProvider(signingKeys, cfg.SigningMasterKey())
	dispatcher := scheduler.NewHTTPDispatcher(keyProvider, logger, cfg.AllowPrivateNet, cfg.SigningRequired)
	endpointUsecase := usecase.NewEndpointUsecase(endpoints, runs, dispatcher)
	endpointHandler := handler.NewEndpointHandler(endpointUsecase, logger)

	// Signing keys
	keyUsecase := usecase.NewSigningKeyUsecase(signingKeys, cfg.SigningMasterKey())
	keyHandler := handler.NewSigningKeyHandler(keyUsecase, logger)

	metrics.Register()
	checker := health.NewChecker(pool, logger, prometheus.DefaultRegisterer)

	srv := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httptransport.NewRouter(logger, authHandler, endpointHandler, keyHandler, []byte(cfg.JWTSecret)),
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
