// Package config reads the process configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Data backends.
const (
	BackendSheets = "sheets"
	BackendXLSX   = "xlsx"
	BackendMemory = "memory"
)

// Disabled turns off an optional store when used as its path or URL.
const Disabled = "off"

type Config struct {
	// HTTP server
	Port string
	Host string

	// Logging
	LogLevel  string
	LogFormat string

	// Data source
	DataBackend        string
	SpreadsheetID      string
	SheetRange         string
	ServiceAccountJSON string
	ServiceAccountFile string
	XLSXPath           string
	XLSXSheet          string
	SeedCSVPath        string

	// Snapshot and response caching
	CacheTTL          time.Duration
	FetchTimeout      time.Duration
	ResponseCacheSize int
	TopStudentsCount  int
	RefreshRateLimit  int // POST /api/refresh per client per minute

	// Persistence
	SQLiteDBPath string
	RedisURL     string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker
	RefreshInterval   time.Duration
	WorkerMetricsAddr string // empty disables the worker's /metrics listener

	Timezone string
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8080"),
		Host: getEnv("HOST", "0.0.0.0"),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "json")),

		DataBackend:        strings.ToLower(getEnv("DATA_BACKEND", BackendMemory)),
		SpreadsheetID:      getEnv("SAMPLE_SPREADSHEET_ID", getEnv("GOOGLE_SPREADSHEET_ID", "")),
		SheetRange:         getEnv("SHEET_RANGE", "Daten!A1:H"),
		ServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		ServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		XLSXPath:           getEnv("XLSX_PATH", ""),
		XLSXSheet:          getEnv("XLSX_SHEET", "Daten"),
		SeedCSVPath:        getEnv("SEED_CSV_PATH", ""),

		CacheTTL:          getEnvDuration("CACHE_TTL", 10*time.Second),
		FetchTimeout:      getEnvDuration("FETCH_TIMEOUT", 7*time.Second),
		ResponseCacheSize: getEnvInt("RESPONSE_CACHE_SIZE", 256),
		TopStudentsCount:  getEnvInt("TOP_STUDENTS_COUNT", 10),
		RefreshRateLimit:  getEnvInt("REFRESH_RATE_LIMIT", 6),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/tutordash.db"),
		RedisURL:     getEnv("REDIS_URL", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "tutordash"),
		AMQPQueue:    getEnv("AMQP_QUEUE", ""),

		RefreshInterval:   getEnvDuration("REFRESH_INTERVAL", time.Minute),
		WorkerMetricsAddr: getEnv("WORKER_METRICS_ADDR", ""),

		Timezone: getEnv("TIMEZONE", "Local"),
	}
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// SQLiteEnabled reports whether the SQLite snapshot store should be opened.
func (c *Config) SQLiteEnabled() bool {
	return c.SQLiteDBPath != "" && c.SQLiteDBPath != Disabled
}

func (c *Config) RedisEnabled() bool {
	return c.RedisURL != "" && c.RedisURL != Disabled
}

func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != "" && c.AMQPURL != Disabled
}

// Location resolves Timezone. Call Validate first.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Validate validates the configuration and returns an error listing every problem.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.LogLevel) {
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, fmt.Sprintf("invalid log format '%s': must be json or text", c.LogFormat))
	}

	validBackends := []string{BackendSheets, BackendXLSX, BackendMemory}
	if !slices.Contains(validBackends, c.DataBackend) {
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendSheets:
		if c.SpreadsheetID == "" {
			errs = append(errs, "SAMPLE_SPREADSHEET_ID is required when using sheets backend")
		}
		if c.SheetRange == "" {
			errs = append(errs, "SHEET_RANGE cannot be empty when using sheets backend")
		}
		if c.ServiceAccountFile != "" {
			if _, err := os.Stat(c.ServiceAccountFile); os.IsNotExist(err) {
				errs = append(errs, fmt.Sprintf("service account file does not exist: %s", c.ServiceAccountFile))
			}
		}
	case BackendXLSX:
		if c.XLSXPath == "" {
			errs = append(errs, "XLSX_PATH is required when using xlsx backend")
		} else if _, err := os.Stat(c.XLSXPath); os.IsNotExist(err) {
			errs = append(errs, fmt.Sprintf("workbook does not exist: %s", c.XLSXPath))
		}
	case BackendMemory:
		if c.SeedCSVPath != "" {
			if _, err := os.Stat(c.SeedCSVPath); os.IsNotExist(err) {
				errs = append(errs, fmt.Sprintf("seed file does not exist: %s", c.SeedCSVPath))
			}
		}
	}

	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Sprintf("invalid cache TTL %v: must be positive", c.CacheTTL))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("invalid fetch timeout %v: must be positive", c.FetchTimeout))
	}
	if c.ResponseCacheSize < 0 {
		errs = append(errs, fmt.Sprintf("invalid response cache size %d: must not be negative", c.ResponseCacheSize))
	}
	if c.TopStudentsCount < 1 || c.TopStudentsCount > 100 {
		errs = append(errs, fmt.Sprintf("invalid top students count %d: must be between 1 and 100", c.TopStudentsCount))
	}
	if c.RefreshRateLimit < 1 {
		errs = append(errs, fmt.Sprintf("invalid refresh rate limit %d: must be at least 1", c.RefreshRateLimit))
	}

	if c.RedisEnabled() {
		if u, err := url.Parse(c.RedisURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid Redis URL '%s': %v", c.RedisURL, err))
		} else if u.Scheme != "redis" && u.Scheme != "rediss" {
			errs = append(errs, fmt.Sprintf("invalid Redis URL scheme '%s': must be 'redis' or 'rediss'", u.Scheme))
		}
	}

	if c.AMQPEnabled() {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RefreshInterval < time.Second {
		errs = append(errs, fmt.Sprintf("invalid refresh interval %v: must be at least 1 second", c.RefreshInterval))
	} else if c.RefreshInterval > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid refresh interval %v: must be at most 24 hours", c.RefreshInterval))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return defaultValue
}
