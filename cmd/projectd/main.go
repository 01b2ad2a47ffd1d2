// Projectd serves a directory of user-submitted projects over HTTP.
//
// Projects live in an embedded ordered key-value store (Pebble by default).
// The daemon also resets download counts on a cron schedule and can publish
// lifecycle events to NATS.
//
// Configuration is read from the environment, optionally layered over a
// YAML file (--config). See internal/config for the variables.
//
// Usage:
//
//	# Start the server with defaults (port 8000, ./data/projectd)
//	projectd
//
//	# Administrative commands run against the same store
//	projectd ban u-42
//	projectd reset-downloads
//	projectd purge --yes
//
//	# Query a running server
//	projectd status --server http://localhost:8000
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/projectd/internal/config"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// configPath is the optional YAML config file.
var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "projectd",
	Short: "Project directory service",
	Long: `projectd stores user-submitted projects and serves them over HTTP.

Running projectd without a subcommand starts the server.`,
	Version:      version,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "projectd by Fyrsmith Labs\n")
		fmt.Fprintf(out, "Version:    %s\n", version)
		fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
		fmt.Fprintf(out, "Build Date: %s\n", buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file under ~/.config/projectd or /etc/projectd (default: environment only)")
	rootCmd.AddCommand(serveCmd, versionCmd)
}

// loadConfig reads the environment, layered over the YAML file when
// --config is set.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		cfg, err := config.LoadWithFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return cfg, nil
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
