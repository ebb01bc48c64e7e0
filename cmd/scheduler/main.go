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
	"github.com/cronicorn/scheduler/internal/aiplanner"
	"github.com/cronicorn/scheduler/internal/clockx"
	"github.com/cronicorn/scheduler/internal/cronx"
	"github.com/cronicorn/scheduler/internal/domain"
	"github.com/cronicorn/scheduler/internal/health"
	"github.com/cronicorn/scheduler/internal/infrastructure/postgres"
	ctxlog "github.com/cronicorn/scheduler/internal/log"
	"github.com/cronicorn/scheduler/internal/metrics"
	"github.com/cronicorn/scheduler/internal/notify"
	"github.com/cronicorn/scheduler/internal/quota"
	"github.com/cronicorn/scheduler/internal/scheduler"
	"github.com/cronicorn/scheduler/internal/signing"
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

	logger.Info("db connected")

	metrics.Register()
	metrics.WorkerStartTime.SetToCurrentTime()
	checker := health.NewChecker(pool, logger, prometheus.DefaultRegisterer)

	endpoints := postgres.NewEndpointRepository(pool)
	runs := postgres.NewRunRepository(pool)
	users := postgres.NewUserRepository(pool)
	signingKeys := postgres.NewSigningKeyRepository(pool)

	keyProvider := signing.NewKeyProvider(signingKeys, cfg.SigningMasterKey())
	dispatcher := scheduler.NewHTTPDispatcher(keyProvider, logger, cfg.AllowPrivateNet, cfg.SigningRequired)
	notifier := notify.New(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, notify.NewUserContactResolver(users), logger)
	cron := cronx.New()

	loop := scheduler.NewLoop(endpoints, runs, dispatcher, notifier, cron, clockx.Real(), logger, scheduler.Config{
		BatchSize:      cfg.BatchSize,
		LockTTL:        cfg.LockTTL(),
		TickInterval:   cfg.TickInterval(),
		MaxConcurrency: cfg.MaxConcurrency,
	})
	go loop.Start(ctx)

	reaper := scheduler.NewReaper(runs, logger, cfg.ReaperInterval(), cfg.ZombieThreshold())
	go reaper.Start(ctx)

	if cfg.AnthropicAPIKey != "" {
		aiClient := aiplanner.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		quotaGuard := quota.NewRedisQuotaGuard(cfg.RedisAddr, cfg.RedisDB, cfg.QuotaTokensPerDay)
		planner := aiplanner.NewWorker(endpoints, runs, quotaGuard, aiClient, logger, aiplanner.Config{
			Interval:         cfg.AIPlannerInterval(),
			MinFailureStreak: cfg.AIPlannerMinStreak,
		})
		go planner.Start(ctx, func(ctx context.Context) ([]*domain.Endpoint, error) {
			return endpoints.ListNeedingAnalysis(ctx, cfg.AIPlannerMinStreak)
		})
	} else {
		logger.Info("ANTHROPIC_API_KEY not set, AI planner worker disabled")
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	metrics.WorkerShutdownsTotal.Inc()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("scheduler shut down")
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
