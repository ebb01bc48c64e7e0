package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config is loaded once at process start via Load() and passed down to
// every component.
type Config struct {
	Env  string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port string `env:"PORT" envDefault:"8080" validate:"required"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	// Scheduler loop.
	TickIntervalMs    int64 `env:"TICK_INTERVAL_MS" envDefault:"1000" validate:"min=100"`
	BatchSize         int   `env:"BATCH_SIZE" envDefault:"50" validate:"min=1,max=1000"`
	LockTTLMs         int64 `env:"LOCK_TTL_MS" envDefault:"60000" validate:"min=1000"`
	MaxConcurrency    int   `env:"MAX_CONCURRENCY" envDefault:"10" validate:"min=1,max=256"`
	ZombieThresholdMs int64 `env:"ZOMBIE_THRESHOLD_MS" envDefault:"300000" validate:"min=1000"`
	ReaperIntervalMs  int64 `env:"REAPER_INTERVAL_MS" envDefault:"30000" validate:"min=1000"`

	// Dispatcher.
	DefaultTimeoutMs  int64 `env:"DEFAULT_TIMEOUT_MS" envDefault:"30000" validate:"min=100"`
	MaxResponseSizeKb int64 `env:"MAX_RESPONSE_SIZE_KB" envDefault:"100" validate:"min=1"`
	SigningRequired   bool  `env:"SIGNING_REQUIRED" envDefault:"false"`
	AllowPrivateNet   bool  `env:"ALLOW_PRIVATE_NET" envDefault:"false"`

	// AI planner worker.
	AIPlannerIntervalMs int64  `env:"AI_PLANNER_INTERVAL_MS" envDefault:"60000" validate:"min=1000"`
	AIPlannerMinStreak  int    `env:"AI_PLANNER_MIN_FAILURE_STREAK" envDefault:"2" validate:"min=0"`
	AnthropicAPIKey     string `env:"ANTHROPIC_API_KEY"`
	AnthropicModel      string `env:"ANTHROPIC_MODEL" envDefault:"claude-3-5-haiku-latest"`

	// Quota (Redis-backed QuotaGuard).
	RedisAddr         string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB           int    `env:"REDIS_DB" envDefault:"0"`
	QuotaTokensPerDay int    `env:"QUOTA_TOKENS_PER_DAY" envDefault:"200000" validate:"min=0"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"required,oneof=debug info warn error"`

	JWTSecret     string `env:"JWT_SECRET"`
	// SigningKeyEncryptionKey is the master key used to envelope-encrypt
	// per-tenant HMAC signing keys at rest: 64 hex chars are decoded as 32
	// raw bytes, any other string is stretched via SHA-256 (SigningMasterKey).
	SigningKeyEncryptionKey string `env:"SIGNING_KEY_ENCRYPTION_KEY" validate:"required_if=Env production,required_if=Env staging"`
	ResendAPIKey  string `env:"RESEND_API_KEY"         validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom    string `env:"RESEND_FROM"            validate:"required_if=Env production,required_if=Env staging"`
	MagicLinkBase string `env:"MAGIC_LINK_BASE_URL"    envDefault:"http://localhost:8080"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SlogLevel converts the LOG_LEVEL string to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) TickInterval() time.Duration    { return time.Duration(c.TickIntervalMs) * time.Millisecond }
func (c *Config) LockTTL() time.Duration         { return time.Duration(c.LockTTLMs) * time.Millisecond }
func (c *Config) ZombieThreshold() time.Duration { return time.Duration(c.ZombieThresholdMs) * time.Millisecond }
func (c *Config) ReaperInterval() time.Duration  { return time.Duration(c.ReaperIntervalMs) * time.Millisecond }
func (c *Config) AIPlannerInterval() time.Duration {
	return time.Duration(c.AIPlannerIntervalMs) * time.Millisecond
}

// SigningMasterKey derives a 32-byte AES-256 key from
// SigningKeyEncryptionKey: hex-decodes it directly when it's already 64
// hex chars, else stretches an arbitrary passphrase via SHA-256 so local
// dev can set any string.
func (c *Config) SigningMasterKey() [32]byte {
	if raw, err := hex.DecodeString(c.SigningKeyEncryptionKey); err == nil && len(raw) == 32 {
		var key [32]byte
		copy(key[:], raw)
		return key
	}
	return sha256.Sum256([]byte(c.SigningKeyEncryptionKey))
}
