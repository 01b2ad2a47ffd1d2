// Package config provides configuration loading for projectd.
//
// Configuration is loaded from environment variables with defaults, or from
// a YAML file layered under the environment (see LoadWithFile).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage engine names accepted in StorageConfig.Engine.
const (
	EnginePebble = "pebble"
	EngineMemory = "memory"
)

// Config holds the complete projectd configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Storage       StorageConfig       `koanf:"storage"`
	Projects      ProjectsConfig      `koanf:"projects"`
	Schedule      ScheduleConfig      `koanf:"schedule"`
	Events        EventsConfig        `koanf:"events"`
	RateLimit     RateLimitConfig     `koanf:"ratelimit"`
	Logging       LoggingConfig       `koanf:"logging"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"http_host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// StorageConfig selects the key-value engine.
type StorageConfig struct {
	Engine string `koanf:"engine"`
	Path   string `koanf:"path"`
}

// ProjectsConfig holds listing limits and the update retry bound.
type ProjectsConfig struct {
	PageSize        int `koanf:"page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
	SearchLimit     int `koanf:"search_limit"`
	LeaderboardSize int `koanf:"leaderboard_size"`
	MaxRetries      int `koanf:"max_retries"`
}

// ScheduleConfig controls the periodic download-count reset.
type ScheduleConfig struct {
	Enabled        bool     `koanf:"enabled"`
	ResetDownloads string   `koanf:"reset_downloads"` // cron expression or descriptor
	Timezone       string   `koanf:"timezone"`
	Timeout        Duration `koanf:"timeout"`
}

// EventsConfig configures lifecycle event publishing. An empty URL disables it.
type EventsConfig struct {
	URL           string   `koanf:"url"`
	SubjectPrefix string   `koanf:"subject_prefix"`
	Token         Secret   `koanf:"token"`
	MaxReconnects int      `koanf:"max_reconnects"`
	ReconnectWait Duration `koanf:"reconnect_wait"`
}

// RateLimitConfig bounds project creation per client IP.
type RateLimitConfig struct {
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`
}

// LoggingConfig holds the logging settings exposed to operators.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	OTEL   bool   `koanf:"otel"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool    `koanf:"enable_telemetry"`
	ServiceName     string  `koanf:"service_name"`
	Endpoint        string  `koanf:"endpoint"`
	Protocol        string  `koanf:"protocol"` // grpc or http
	Insecure        bool    `koanf:"insecure"`
	SamplingRate    float64 `koanf:"sampling_rate"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Storage: StorageConfig{
			Engine: EnginePebble,
			Path:   "./data/projectd",
		},
		Projects: ProjectsConfig{
			PageSize:        20,
			MaxPageSize:     100,
			SearchLimit:     25,
			LeaderboardSize: 10,
			MaxRetries:      1000,
		},
		Schedule: ScheduleConfig{
			Enabled:        true,
			ResetDownloads: "@weekly",
			Timezone:       "UTC",
			Timeout:        Duration(5 * time.Minute),
		},
		Events: EventsConfig{
			SubjectPrefix: "projects",
			MaxReconnects: 5,
			ReconnectWait: Duration(time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 1,
			Burst:             10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Observability: ObservabilityConfig{
			EnableTelemetry: false,
			ServiceName:     "projectd",
			Endpoint:        "localhost:4317",
			Protocol:        "grpc",
			Insecure:        true,
			SamplingRate:    1.0,
		},
	}
}

// Load loads configuration from environment variables with defaults.
//
// Environment variables:
//   - SERVER_HTTP_HOST, SERVER_HTTP_PORT (default: 8000), SERVER_SHUTDOWN_TIMEOUT (default: 10s)
//   - STORAGE_ENGINE (pebble|memory, default: pebble), STORAGE_PATH (default: ./data/projectd)
//   - PROJECTS_PAGE_SIZE, PROJECTS_MAX_PAGE_SIZE, PROJECTS_SEARCH_LIMIT,
//     PROJECTS_LEADERBOARD_SIZE, PROJECTS_MAX_RETRIES
//   - SCHEDULE_ENABLED, SCHEDULE_RESET_DOWNLOADS (default: @weekly), SCHEDULE_TIMEZONE, SCHEDULE_TIMEOUT
//   - EVENTS_URL (empty disables events), EVENTS_SUBJECT_PREFIX, EVENTS_TOKEN
//   - RATELIMIT_REQUESTS_PER_SECOND, RATELIMIT_BURST
//   - LOGGING_LEVEL, LOGGING_FORMAT, LOGGING_OTEL
//   - OBSERVABILITY_ENABLE_TELEMETRY, OBSERVABILITY_SERVICE_NAME, OBSERVABILITY_ENDPOINT,
//     OBSERVABILITY_PROTOCOL, OBSERVABILITY_INSECURE, OBSERVABILITY_SAMPLING_RATE
//
// Malformed values fall back to the default.
func Load() *Config {
	d := Default()
	return &Config{
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HTTP_HOST", d.Server.Host),
			Port:            getEnvInt("SERVER_HTTP_PORT", d.Server.Port),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", d.Server.ShutdownTimeout),
		},
		Storage: StorageConfig{
			Engine: getEnvString("STORAGE_ENGINE", d.Storage.Engine),
			Path:   getEnvString("STORAGE_PATH", d.Storage.Path),
		},
		Projects: ProjectsConfig{
			PageSize:        getEnvInt("PROJECTS_PAGE_SIZE", d.Projects.PageSize),
			MaxPageSize:     getEnvInt("PROJECTS_MAX_PAGE_SIZE", d.Projects.MaxPageSize),
			SearchLimit:     getEnvInt("PROJECTS_SEARCH_LIMIT", d.Projects.SearchLimit),
			LeaderboardSize: getEnvInt("PROJECTS_LEADERBOARD_SIZE", d.Projects.LeaderboardSize),
			MaxRetries:      getEnvInt("PROJECTS_MAX_RETRIES", d.Projects.MaxRetries),
		},
		Schedule: ScheduleConfig{
			Enabled:        getEnvBool("SCHEDULE_ENABLED", d.Schedule.Enabled),
			ResetDownloads: getEnvString("SCHEDULE_RESET_DOWNLOADS", d.Schedule.ResetDownloads),
			Timezone:       getEnvString("SCHEDULE_TIMEZONE", d.Schedule.Timezone),
			Timeout:        getEnvDuration("SCHEDULE_TIMEOUT", d.Schedule.Timeout),
		},
		Events: EventsConfig{
			URL:           getEnvString("EVENTS_URL", d.Events.URL),
			SubjectPrefix: getEnvString("EVENTS_SUBJECT_PREFIX", d.Events.SubjectPrefix),
			Token:         Secret(getEnvString("EVENTS_TOKEN", "")),
			MaxReconnects: getEnvInt("EVENTS_MAX_RECONNECTS", d.Events.MaxReconnects),
			ReconnectWait: getEnvDuration("EVENTS_RECONNECT_WAIT", d.Events.ReconnectWait),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvFloat("RATELIMIT_REQUESTS_PER_SECOND", d.RateLimit.RequestsPerSecond),
			Burst:             getEnvInt("RATELIMIT_BURST", d.RateLimit.Burst),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOGGING_LEVEL", d.Logging.Level),
			Format: getEnvString("LOGGING_FORMAT", d.Logging.Format),
			OTEL:   getEnvBool("LOGGING_OTEL", d.Logging.OTEL),
		},
		Observability: ObservabilityConfig{
			EnableTelemetry: getEnvBool("OBSERVABILITY_ENABLE_TELEMETRY", d.Observability.EnableTelemetry),
			ServiceName:     getEnvString("OBSERVABILITY_SERVICE_NAME", d.Observability.ServiceName),
			Endpoint:        getEnvString("OBSERVABILITY_ENDPOINT", d.Observability.Endpoint),
			Protocol:        getEnvString("OBSERVABILITY_PROTOCOL", d.Observability.Protocol),
			Insecure:        getEnvBool("OBSERVABILITY_INSECURE", d.Observability.Insecure),
			SamplingRate:    getEnvFloat("OBSERVABILITY_SAMPLING_RATE", d.Observability.SamplingRate),
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	switch c.Storage.Engine {
	case EnginePebble:
		if c.Storage.Path == "" {
			return errors.New("storage path required for the pebble engine")
		}
	case EngineMemory:
	default:
		return fmt.Errorf("unknown storage engine %q (must be %s or %s)", c.Storage.Engine, EnginePebble, EngineMemory)
	}

	p := c.Projects
	if p.PageSize < 1 || p.MaxPageSize < 1 || p.SearchLimit < 1 || p.LeaderboardSize < 1 || p.MaxRetries < 1 {
		return errors.New("project limits must be positive")
	}
	if p.PageSize > p.MaxPageSize {
		return fmt.Errorf("page size %d exceeds max page size %d", p.PageSize, p.MaxPageSize)
	}

	if c.Schedule.Enabled {
		if strings.TrimSpace(c.Schedule.ResetDownloads) == "" {
			return errors.New("reset schedule required when the schedule is enabled")
		}
		if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
			return fmt.Errorf("invalid schedule timezone %q: %w", c.Schedule.Timezone, err)
		}
		if c.Schedule.Timeout.Duration() <= 0 {
			return errors.New("schedule timeout must be positive")
		}
	}

	if c.Events.URL != "" && c.Events.SubjectPrefix == "" {
		return errors.New("events subject prefix required when events are enabled")
	}

	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst < 1 {
		return errors.New("rate limit must be positive")
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	if c.Observability.EnableTelemetry {
		if c.Observability.ServiceName == "" {
			return errors.New("service name required when telemetry is enabled")
		}
		if c.Observability.Protocol != "grpc" && c.Observability.Protocol != "http" {
			return fmt.Errorf("telemetry protocol must be 'grpc' or 'http', got %q", c.Observability.Protocol)
		}
	}

	return nil
}

// Helper functions for environment variable parsing

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue Duration) Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
