// Package config provides centralized configuration management for the cleaner.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Pipeline PipelineConfig
	Lookup   LookupConfig
	Database DatabaseConfig
	Server   ServerConfig
	Run      RunConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// PipelineConfig holds the column names and rules of a cleaning run.
type PipelineConfig struct {
	// InputPath is the CSV read by the command-line cleaner
	InputPath string `env:"INPUT_PATH" default:"data/fuelPurchaseData.csv"`

	// OutputDir receives cleaned_fuel_data.csv and dataAnomalies.csv
	OutputDir string `env:"OUTPUT_DIR" default:"data"`

	IDColumn       string `env:"ID_COLUMN" default:"Transaction Number"`
	PriceColumn    string `env:"PRICE_COLUMN" default:"Gross Price"`
	CategoryColumn string `env:"CATEGORY_COLUMN" default:"Fuel Type"`
	AddressColumn  string `env:"ADDRESS_COLUMN" default:"Full Address"`

	// FuelTypes overrides the allow-list; matched literally
	FuelTypes []string `env:"FUEL_TYPES"`

	// RulesFile is an optional YAML file with fuel_types and states overrides
	RulesFile string `env:"PIPELINE_RULES_FILE"`

	// AnomalyWorkbook also writes dataAnomalies.xlsx (default: true)
	AnomalyWorkbook bool `env:"ANOMALY_WORKBOOK" default:"true"`
}

// LookupConfig holds zip code lookup service settings.
type LookupConfig struct {
	URL string `env:"ZIP_API_URL" default:"https://app.zipcodebase.com/api/v1/code/city"`

	// APIKey is sent in the apikey header
	APIKey string `env:"ZIP_API_KEY" envAlt:"ZIPCODEBASE_API_KEY"`

	// Timeout bounds each attempt (default: 5s)
	Timeout time.Duration `env:"ZIP_TIMEOUT" default:"5s"`

	// MaxAttempts per address (default: 3)
	MaxAttempts int `env:"ZIP_MAX_ATTEMPTS" default:"3"`

	// RateLimit in requests per second, 0 for none
	RateLimit float64 `env:"ZIP_RATE_LIMIT" default:"0"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Runs are stored only when set.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0, runs can be slow)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-run requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// RunConfig holds settings for pipeline runs started over HTTP.
type RunConfig struct {
	// MaxFileSize is the maximum allowed upload in bytes (default: 100MB)
	MaxFileSize int64 `env:"RUN_MAX_FILE_SIZE" default:"104857600"`

	// MaxConcurrent is the maximum number of runs in progress (default: 2)
	MaxConcurrent int `env:"RUN_MAX_CONCURRENT" default:"2"`

	// MaxWaitTime is how long to wait for a run slot (default: 30s)
	MaxWaitTime time.Duration `env:"RUN_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds one run, lookups included (default: 30m)
	Timeout time.Duration `env:"RUN_TIMEOUT" default:"30m"`

	// Retain is how many finished runs the server keeps in memory (default: 20)
	Retain int `env:"RUN_RETAIN" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey enables X-API-Key authentication on /api routes
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
