package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/PEED-Project/peed_backend/internal/httputil"
)

var healthURL string

var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check the /health endpoint of a running server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		client := httputil.NewClient(httputil.ClientConfig{BaseURL: healthURL, Timeout: 5 * time.Second})
		var body struct {
			Status   string `json:"status"`
			Database string `json:"database"`
		}
		if err := client.Get(cmd.Context(), "/health", &body); err != nil {
			return fmt.Errorf("health check: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", body.Status, body.Database)
		return nil
	},
}

func init() {
	healthcheckCmd.Flags().StringVar(&healthURL, "url", "http://127.0.0.1:5000", "base URL of the server")
}
