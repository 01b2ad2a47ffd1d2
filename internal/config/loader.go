package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB
	appName           = "projectd"
)

// envSections are the top-level keys environment variables may set. Other
// variables in the process environment are ignored.
var envSections = []string{
	"server", "storage", "projects", "schedule", "events", "ratelimit", "logging", "observability",
}

// LoadWithFile loads configuration from a YAML file, then overrides it with
// environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (SERVER_HTTP_PORT, STORAGE_PATH, ...)
//  2. YAML config file (default ~/.config/projectd/config.yaml)
//  3. Defaults
//
// A missing file is not an error. An existing file must live under
// ~/.config/projectd/ or /etc/projectd/, have 0600 or 0400 permissions,
// and be at most 1MB.
//
// Environment variables split on the first underscore:
//
//	SERVER_HTTP_PORT -> server.http_port
//	RATELIMIT_REQUESTS_PER_SECOND -> ratelimit.requests_per_second
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", appName, "config.yaml")
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}
	if _, err := os.Stat(configPath); err == nil {
		// Validate through the open descriptor to avoid a TOCTOU race.
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if err := validateConfigFileProperties(info); err != nil {
			return nil, fmt.Errorf("config file validation failed: %w", err)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Unmarshal over the defaults so unset keys keep their default value,
	// including booleans that default to true.
	cfg := Default()
	for _, section := range envSections {
		if err := k.Unmarshal(section, sectionPtr(cfg, section)); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s config: %w", section, err)
		}
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// envValue drops empty variables so they behave like unset ones, matching
// Load.
func envValue(key, value string) (string, interface{}) {
	if value == "" {
		return "", nil
	}
	return envKey(key), value
}

// envKey maps SECTION_FIELD_NAME to section.field_name. Variables outside
// the known sections map to an empty key, which koanf skips.
func envKey(s string) string {
	lower := strings.ToLower(s)
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) != 2 {
		return ""
	}
	for _, section := range envSections {
		if parts[0] == section {
			return section + "." + parts[1]
		}
	}
	return ""
}

func sectionPtr(cfg *Config, section string) any {
	switch section {
	case "server":
		return &cfg.Server
	case "storage":
		return &cfg.Storage
	case "projects":
		return &cfg.Projects
	case "schedule":
		return &cfg.Schedule
	case "events":
		return &cfg.Events
	case "ratelimit":
		return &cfg.RateLimit
	case "logging":
		return &cfg.Logging
	default:
		return &cfg.Observability
	}
}

// EnsureConfigDir creates ~/.config/projectd with 0700 permissions.
func EnsureConfigDir() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(home, ".config", appName)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}
	return nil
}

// validateConfigPath checks that path is inside an allowed directory. It
// runs even if the file does not exist yet.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	// Follow symlinks so a link cannot escape the allowed directories.
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		resolvedPath = absPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	allowedDirs := []string{
		filepath.Join(home, ".config", appName),
		filepath.Join("/etc", appName),
	}
	for _, dir := range allowedDirs {
		// Also resolve the allowed dir itself; on some systems the temp or
		// home directory is behind a symlink.
		if resolvedDir, err := filepath.EvalSymlinks(dir); err == nil {
			if withinDir(resolvedPath, resolvedDir) {
				return nil
			}
		}
		if withinDir(resolvedPath, dir) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/%s/ or /etc/%s/", appName, appName)
}

func withinDir(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// validateConfigFileProperties checks file permissions and size.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}

// applyDefaults restores defaults for values explicitly set to zero where
// zero is never meaningful.
func applyDefaults(cfg *Config) {
	d := Default()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = d.Server.Port
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = d.Server.ShutdownTimeout
	}
	if cfg.Storage.Engine == "" {
		cfg.Storage.Engine = d.Storage.Engine
	}
	if cfg.Projects.PageSize == 0 {
		cfg.Projects.PageSize = d.Projects.PageSize
	}
	if cfg.Projects.MaxPageSize == 0 {
		cfg.Projects.MaxPageSize = d.Projects.MaxPageSize
	}
	if cfg.Projects.SearchLimit == 0 {
		cfg.Projects.SearchLimit = d.Projects.SearchLimit
	}
	if cfg.Projects.LeaderboardSize == 0 {
		cfg.Projects.LeaderboardSize = d.Projects.LeaderboardSize
	}
	if cfg.Projects.MaxRetries == 0 {
		cfg.Projects.MaxRetries = d.Projects.MaxRetries
	}
	if cfg.Schedule.Timezone == "" {
		cfg.Schedule.Timezone = d.Schedule.Timezone
	}
	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = d.Events.SubjectPrefix
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = d.Logging.Format
	}
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = d.Observability.ServiceName
	}
	if cfg.Observability.Protocol == "" {
		cfg.Observability.Protocol = d.Observability.Protocol
	}
}
