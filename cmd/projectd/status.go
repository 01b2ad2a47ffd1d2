package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	httpserver "github.com/fyrsmithlabs/projectd/internal/http"
)

var statusServer string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show status of a running server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		status, err := fetchStatus(ctx, statusServer)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Status:  %s\n", status.Status)
		fmt.Fprintf(out, "Version: %s\n", status.Version)
		fmt.Fprintf(out, "Projects:     %d\n", status.Counts.Projects)
		fmt.Fprintf(out, "Banned users: %d\n", status.Counts.BannedUsers)
		fmt.Fprintf(out, "Next ID:      %d\n", status.Counts.NextProjectID)
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusServer, "server", "http://localhost:8000", "server base URL")
	rootCmd.AddCommand(statusCmd)
}

func fetchStatus(ctx context.Context, server string) (*httpserver.StatusResponse, error) {
	url := strings.TrimRight(server, "/") + "/api/v1/status"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connecting to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var status httpserver.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decoding status: %w", err)
	}
	return &status, nil
}
