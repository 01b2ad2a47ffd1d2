package logging

import (
	"fmt"
	"regexp"

	"go.uber.org/zap/zapcore"
)

// maxPatternLen rejects redaction patterns long enough to be a ReDoS risk.
const maxPatternLen = 200

// Config holds logging configuration. The service fills it from
// config.LoggingConfig on top of NewDefaultConfig.
type Config struct {
	Level  zapcore.Level
	Format string
	Output OutputConfig

	// Sampling caps repeated messages per level each second. Nil disables
	// sampling. Error and above are never sampled.
	Sampling map[zapcore.Level]LevelSamplingConfig

	// StacktraceLevel is the lowest level that records a stacktrace.
	StacktraceLevel zapcore.Level

	Fields    map[string]string
	Redaction RedactionConfig
}

// OutputConfig controls where logs are written.
type OutputConfig struct {
	Stdout bool
	OTEL   bool
}

// LevelSamplingConfig keeps the first Initial entries with the same message
// per second, then every Thereafter-th. Thereafter 0 drops the rest.
type LevelSamplingConfig struct {
	Initial    int
	Thereafter int
}

// RedactionConfig hides sensitive field names and values matching Patterns.
type RedactionConfig struct {
	Enabled  bool
	Fields   []string
	Patterns []string
}

// DefaultRedactedFields are the field names hidden from log output.
var DefaultRedactedFields = []string{
	"contact_email", "email", "token", "password", "authorization",
}

// DefaultRedactedPatterns catch credentials that end up inside free-text
// values: bearer tokens from API clients and user:password pairs embedded in
// NATS server URLs.
var DefaultRedactedPatterns = []string{
	`(?i)bearer\s+\S+`,
	`[a-z][a-z0-9+.-]*://[^/\s:@]+:[^/\s@]+@`,
}

// NewDefaultConfig returns config with production defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Level:           zapcore.InfoLevel,
		Format:          "json",
		Output:          OutputConfig{Stdout: true},
		Sampling:        DefaultLevelSamplingConfig(),
		StacktraceLevel: zapcore.ErrorLevel,
		Fields: map[string]string{
			"service": "projectd",
		},
		Redaction: RedactionConfig{
			Enabled:  true,
			Fields:   append([]string(nil), DefaultRedactedFields...),
			Patterns: append([]string(nil), DefaultRedactedPatterns...),
		},
	}
}

// DefaultLevelSamplingConfig returns default sampling config by level. Info
// is capped so a hot listing endpoint cannot flood the access log.
func DefaultLevelSamplingConfig() map[zapcore.Level]LevelSamplingConfig {
	return map[zapcore.Level]LevelSamplingConfig{
		TraceLevel:         {Initial: 1, Thereafter: 0},
		zapcore.DebugLevel: {Initial: 10, Thereafter: 0},
		zapcore.InfoLevel:  {Initial: 100, Thereafter: 10},
	}
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	}
	if !c.Output.Stdout && !c.Output.OTEL {
		return fmt.Errorf("at least one output must be enabled (stdout or otel)")
	}
	for lvl, s := range c.Sampling {
		if lvl >= zapcore.ErrorLevel {
			return fmt.Errorf("level %s cannot be sampled", LevelName(lvl))
		}
		if s.Initial < 0 || s.Thereafter < 0 {
			return fmt.Errorf("sampling for %s must be >= 0", LevelName(lvl))
		}
	}
	if c.Redaction.Enabled {
		for _, pattern := range c.Redaction.Patterns {
			if len(pattern) > maxPatternLen {
				return fmt.Errorf("redaction pattern too long (max %d chars): %q", maxPatternLen, pattern)
			}
			if _, err := regexp.Compile(pattern); err != nil {
				return fmt.Errorf("invalid redaction pattern %q: %w", pattern, err)
			}
		}
	}
	for k, v := range c.Fields {
		if k == "" {
			return fmt.Errorf("field key cannot be empty")
		}
		if v == "" {
			return fmt.Errorf("field %q has empty value", k)
		}
	}
	return nil
}
