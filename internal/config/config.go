// Package config loads process configuration from environment variables
// (with optional .env override), following the same load-then-validate
// shape the rest of this codebase's ambient stack uses throughout.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment represents the application environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
	Testing     Environment = "testing"
)

// DBDialect is the warehouse SQL dialect. Every component that emits
// dialect-specific SQL (the upsert writer, the dynamic table builder)
// branches on this value rather than on the driver name directly.
type DBDialect string

const (
	DialectPostgres DBDialect = "postgresql"
	DialectMySQL    DBDialect = "mysql"
)

// Config holds all configuration for the sync engine process.
type Config struct {
	Server        ServerConfig        `json:"server" yaml:"server"`
	Database      DatabaseConfig      `json:"database" yaml:"database"`
	Bitrix        BitrixConfig        `json:"bitrix" yaml:"bitrix"`
	Sync          SyncConfig          `json:"sync" yaml:"sync"`
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
	Environment   Environment         `json:"environment" yaml:"environment"`
}

// ServerConfig holds the admin HTTP server's configuration.
type ServerConfig struct {
	Port          int           `json:"port" yaml:"port"`
	Host          string        `json:"host" yaml:"host"`
	ReadTimeout   time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout  time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout   time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
	ShutdownGrace time.Duration `json:"shutdown_grace" yaml:"shutdown_grace"`
}

// DatabaseConfig holds warehouse connection configuration. DATABASE_URL
// is the primary source of truth (it already encodes dialect, host,
// credentials); the discrete fields exist for components that need to
// branch on a single value without re-parsing the DSN.
type DatabaseConfig struct {
	URL     string    `json:"url" yaml:"-"`
	Dialect DBDialect `json:"dialect" yaml:"dialect"`

	// Connection pool settings (spec.md §4.K: size 5, max overflow 10,
	// pre-ping on, one-hour recycle).
	PoolSize        int           `json:"pool_size" yaml:"pool_size"`
	MaxOverflow     int           `json:"max_overflow" yaml:"max_overflow"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	PrePing         bool          `json:"pre_ping" yaml:"pre_ping"`
}

// MaxOpenConns returns the database/sql pool-size equivalent of
// PoolSize+MaxOverflow (SQLAlchemy's pool_size is the steady-state
// count; max_overflow is the burst allowance on top of it).
func (d DatabaseConfig) MaxOpenConns() int {
	return d.PoolSize + d.MaxOverflow
}

// BitrixConfig holds the Bitrix24 webhook client's configuration.
type BitrixConfig struct {
	WebhookURL string        `json:"webhook_url" yaml:"-"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout"`

	// HandlerURL is this process's own publicly reachable callback URL,
	// bound to the 12 known CRM events by POST /webhooks/register
	// (spec.md §6.3).
	HandlerURL string `json:"handler_url" yaml:"-"`
}

// SyncConfig holds engine-wide sync defaults (per-entity overrides live
// in the sync_config administrative table, not here).
type SyncConfig struct {
	BatchSize              int `json:"batch_size" yaml:"batch_size"`
	DefaultIntervalMinutes int `json:"default_interval_minutes" yaml:"default_interval_minutes"`
	WebhookConcurrency     int `json:"webhook_concurrency" yaml:"webhook_concurrency"`
	MisfireGraceSeconds    int `json:"misfire_grace_seconds" yaml:"misfire_grace_seconds"`
}

// ObservabilityConfig holds logging configuration.
type ObservabilityConfig struct {
	LogLevel        string `json:"log_level" yaml:"log_level"`
	LogFormat       string `json:"log_format" yaml:"log_format"`
	HealthCheckPath string `json:"health_check_path" yaml:"health_check_path"`
}

// Load loads configuration from environment variables, applying a
// .env file first if one is present in the working directory.
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Environment:   getEnvironment(),
		Server:        getServerConfig(),
		Database:      getDatabaseConfig(),
		Bitrix:        getBitrixConfig(),
		Sync:          getSyncConfig(),
		Observability: getObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadEnvFile loads environment variables from a .env file if present.
// It overloads rather than merely loads, so a re-read triggered by
// WatchEnvFile actually reflects edits instead of leaving the first
// value in place.
func loadEnvFile() {
	_ = godotenv.Overload(".env")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	switch c.Database.Dialect {
	case DialectPostgres, DialectMySQL:
	default:
		return fmt.Errorf("invalid DB_DIALECT: %q (expected postgresql or mysql)", c.Database.Dialect)
	}

	if c.Bitrix.WebhookURL == "" {
		return fmt.Errorf("BITRIX_WEBHOOK_URL is required")
	}

	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("SYNC_BATCH_SIZE must be positive")
	}

	if c.Sync.DefaultIntervalMinutes < 5 || c.Sync.DefaultIntervalMinutes > 1440 {
		return fmt.Errorf("SYNC_DEFAULT_INTERVAL_MINUTES must be between 5 and 1440")
	}

	return nil
}

func getEnvironment() Environment {
	env := os.Getenv("ENV")
	switch strings.ToLower(env) {
	case "production", "prod":
		return Production
	case "staging", "stage":
		return Staging
	case "testing", "test":
		return Testing
	default:
		return Development
	}
}

func getServerConfig() ServerConfig {
	return ServerConfig{
		Port:          getEnvAsInt("PORT", 8080),
		Host:          getEnvAsString("HOST", "0.0.0.0"),
		ReadTimeout:   getEnvAsDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:  getEnvAsDuration("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:   getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
		ShutdownGrace: getEnvAsDuration("SHUTDOWN_GRACE", 30*time.Second),
	}
}

func getDatabaseConfig() DatabaseConfig {
	dialect := DBDialect(getEnvAsString("DB_DIALECT", string(DialectPostgres)))
	return DatabaseConfig{
		URL:             getEnvAsString("DATABASE_URL", ""),
		Dialect:         dialect,
		PoolSize:        getEnvAsInt("DB_POOL_SIZE", 5),
		MaxOverflow:     getEnvAsInt("DB_MAX_OVERFLOW", 10),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 1*time.Hour),
		PrePing:         getEnvAsBool("DB_PRE_PING", true),
	}
}

func getBitrixConfig() BitrixConfig {
	return BitrixConfig{
		WebhookURL: getEnvAsString("BITRIX_WEBHOOK_URL", ""),
		Timeout:    getEnvAsDuration("BITRIX_TIMEOUT", 30*time.Second),
		HandlerURL: getEnvAsString("WEBHOOK_HANDLER_URL", ""),
	}
}

func getSyncConfig() SyncConfig {
	return SyncConfig{
		BatchSize:              getEnvAsInt("SYNC_BATCH_SIZE", 50),
		DefaultIntervalMinutes: getEnvAsInt("SYNC_DEFAULT_INTERVAL_MINUTES", 30),
		WebhookConcurrency:     getEnvAsInt("SYNC_WEBHOOK_CONCURRENCY", 3),
		MisfireGraceSeconds:    getEnvAsInt("SYNC_MISFIRE_GRACE_SECONDS", 60),
	}
}

func getObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:        getEnvAsString("LOG_LEVEL", "info"),
		LogFormat:       getEnvAsString("LOG_FORMAT", "json"),
		HealthCheckPath: getEnvAsString("HEALTH_CHECK_PATH", "/health"),
	}
}

// Helper functions for environment variable parsing.

func getEnvAsString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
