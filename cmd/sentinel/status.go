package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/potooio/sentinel/internal/api"
)

func statusCmd(root *rootOptions) *cobra.Command {
	var (
		server  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the dashboard snapshot of a running instance",
		Long: `Query a running sentinel's JSON API and print its stations, totals
and most recent events.

Examples:
  # Local instance
  sentinel status

  # Remote instance as YAML
  sentinel status --server http://store-12:8080 -o yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			snap, err := fetchSnapshot(ctx, http.DefaultClient, server)
			if err != nil {
				return err
			}
			return outputResult(cmd.OutOrStdout(), snap, root.outputFmt)
		},
	}

	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "Base URL of the sentinel API")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")
	return cmd
}

func fetchSnapshot(ctx context.Context, client *http.Client, server string) (api.Snapshot, error) {
	var snap api.Snapshot
	url := strings.TrimRight(server, "/") + "/api/v1/dashboard"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return snap, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return snap, fmt.Errorf("failed to reach %s: %w", server, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return snap, fmt.Errorf("unexpected status from %s: %s", url, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return snap, fmt.Errorf("failed to decode dashboard: %w", err)
	}
	return snap, nil
}

func versionCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return outputResult(cmd.OutOrStdout(), VersionResult{Version: version}, root.outputFmt)
		},
	}
}
