package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName  string `envconfig:"APP_NAME" default:"MarketplacePay"`
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	Port     string `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL"`
	RedisURL    string `envconfig:"REDIS_URL"`

	ShutdownPeriod time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`

	// When GatewayShopID is empty the application falls back to the static
	// stub gateway, which is only acceptable in development.
	GatewayBaseURL   string        `envconfig:"GATEWAY_BASE_URL" default:"https://api.yookassa.ru/v3"`
	GatewayShopID    string        `envconfig:"GATEWAY_SHOP_ID"`
	GatewaySecretKey string        `envconfig:"GATEWAY_SECRET_KEY"`
	GatewayTimeout   time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"15s"`
	ReturnURL        string        `envconfig:"PAYMENT_RETURN_URL" default:"https://market.example/payment/return"`

	// Payment intents older than OrphanThreshold are re-queried against the
	// gateway on every sweep tick.
	OrphanThreshold time.Duration `envconfig:"INTENT_ORPHAN_THRESHOLD" default:"30m"`
	SweepSchedule   string        `envconfig:"INTENT_SWEEP_SCHEDULE" default:"@every 5m"`

	// CommissionPercent is the platform fee withheld from sellers on each
	// product sale, in whole percent.
	CommissionPercent int64 `envconfig:"COMMISSION_PERCENT" default:"5"`
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process env config: %w", err)
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if !isDev(cfg.AppEnv) {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}

	if cfg.CommissionPercent < 0 || cfg.CommissionPercent > 100 {
		return Config{}, fmt.Errorf("COMMISSION_PERCENT must be between 0 and 100, got %d", cfg.CommissionPercent)
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the application runs in a development environment.
func (c Config) IsDev() bool {
	return isDev(c.AppEnv)
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}
