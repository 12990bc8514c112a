package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Gateway   GatewayConfig
	Scheduler SchedulerConfig
	Logger    LoggerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"SERVER_PORT" envDefault:"8080"`
	MetricsPort     int           `env:"METRICS_PORT" envDefault:"9090"`
	RequestTimeout  time.Duration `env:"SERVER_REQUEST_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD"`
	Database string `env:"DB_NAME" envDefault:"subscription_service"`
	SSLMode  string `env:"DB_SSL_MODE" envDefault:"disable"`
	MaxConns int32  `env:"DB_MAX_CONNS" envDefault:"25"`
	MinConns int32  `env:"DB_MIN_CONNS" envDefault:"5"`
}

// GatewayConfig holds payment gateway configuration.
// Credentials are injected here once at startup; the gateway client is
// constructed with them explicitly instead of reading process-wide state.
type GatewayConfig struct {
	BaseURL   string        `env:"GATEWAY_BASE_URL" envDefault:"https://api.yookassa.ru/v3"`
	ShopID    string        `env:"GATEWAY_SHOP_ID"`
	SecretKey string        `env:"GATEWAY_SECRET_KEY"`
	Currency  string        `env:"GATEWAY_CURRENCY" envDefault:"RUB"`
	Timeout   time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"30s"`
}

// SchedulerConfig holds deferred task worker configuration
type SchedulerConfig struct {
	PollInterval time.Duration `env:"SCHEDULER_POLL_INTERVAL" envDefault:"5s"`
	LockTimeout  time.Duration `env:"SCHEDULER_LOCK_TIMEOUT" envDefault:"5m"`
	Concurrency  int           `env:"SCHEDULER_CONCURRENCY" envDefault:"4"`
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string `env:"LOG_LEVEL" envDefault:"info"`
	Development bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`
}

// Load reads configuration from the environment, honoring a local .env file
// when present.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	if cfg.Gateway.ShopID == "" {
		return nil, fmt.Errorf("GATEWAY_SHOP_ID is required")
	}
	if cfg.Gateway.SecretKey == "" {
		return nil, fmt.Errorf("GATEWAY_SECRET_KEY is required")
	}

	return cfg, nil
}

// ConnectionString returns the PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
