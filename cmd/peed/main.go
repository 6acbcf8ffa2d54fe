// Command peed runs the PEED training backend.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/PEED-Project/peed_backend/internal/config"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:           "peed",
	Short:         "PEED training backend",
	Long:          "PEED records pelvic-floor training sessions, tracks streaks and achievements and serves the web front-end.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: serve
		return runServe(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file to load before reading the environment (default .env when present)")
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd, healthcheckCmd)
}

func loadConfig() (*config.Config, error) {
	if envFile != "" {
		return config.LoadFile(envFile)
	}
	return config.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
