// Package config provides configuration management for the ETF dashboard.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultInstruments is the fund list charted when INSTRUMENTS is not set
var DefaultInstruments = []string{"VTI", "VXUS", "BND", "VNQ", "XIU.TO", "XEF.TO"}

// Ledger backends
const (
	LedgerBackendMemory   = "memory"
	LedgerBackendRedis    = "redis"
	LedgerBackendPostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Market    MarketConfig
	Ledger    LedgerConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Host            string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
	MigrationsPath string
}

// URL returns the connection URL shared by the ledger pool and migrations.
// Credentials are escaped, so passwords may contain URL delimiters.
func (c PostgresConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// MarketConfig holds market data provider configuration
type MarketConfig struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxAttempts       int
	Instruments       []string // Fixed, ordered list of charted instruments
}

// LedgerConfig holds holdings ledger configuration
type LedgerConfig struct {
	Backend    string // memory, redis or postgres
	SessionKey string
}

// CacheConfig holds series cache configuration
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// RateLimitConfig holds API rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "etf_dashboard"),
				User:           getEnv("POSTGRES_USER", "dashboard"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 10),
				MigrationsPath: getEnv("POSTGRES_MIGRATIONS_PATH", "migrations/postgres"),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 10),
			},
		},
		Market: MarketConfig{
			BaseURL:           getEnv("MARKET_BASE_URL", "https://query1.finance.yahoo.com"),
			Timeout:           getEnvAsDuration("MARKET_TIMEOUT", 10*time.Second),
			RequestsPerSecond: getEnvAsFloat("MARKET_REQUESTS_PER_SECOND", 5),
			MaxAttempts:       getEnvAsInt("MARKET_MAX_ATTEMPTS", 3),
			Instruments:       getEnvAsList("INSTRUMENTS", DefaultInstruments),
		},
		Ledger: LedgerConfig{
			Backend:    strings.ToLower(getEnv("LEDGER_BACKEND", LedgerBackendMemory)),
			SessionKey: getEnv("LEDGER_SESSION_KEY", "portfolio:default"),
		},
		Cache: CacheConfig{
			Enabled: getEnvAsBool("SERIES_CACHE_ENABLED", true),
			TTL:     getEnvAsDuration("SERIES_CACHE_TTL", 15*time.Minute),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsInt("RATE_LIMIT_RPS", 10),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks values that have no safe fallback
func (c *Config) Validate() error {
	switch c.Ledger.Backend {
	case LedgerBackendMemory, LedgerBackendRedis, LedgerBackendPostgres:
	default:
		return fmt.Errorf("unknown ledger backend %q", c.Ledger.Backend)
	}

	if len(c.Market.Instruments) == 0 {
		return fmt.Errorf("at least one instrument must be configured")
	}

	seen := make(map[string]bool, len(c.Market.Instruments))
	for _, inst := range c.Market.Instruments {
		if strings.EqualFold(inst, "CASH") {
			return fmt.Errorf("instrument list must not contain CASH")
		}
		if seen[inst] {
			return fmt.Errorf("duplicate instrument %q", inst)
		}
		seen[inst] = true
	}

	if c.Ledger.SessionKey == "" {
		return fmt.Errorf("ledger session key must not be empty")
	}

	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a bool with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList gets a comma separated environment variable, trimming blanks
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		out := make([]string, len(defaultValue))
		copy(out, defaultValue)
		return out
	}

	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
