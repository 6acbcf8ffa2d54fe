package main

import (
	"github.com/spf13/cobra"

	"github.com/PEED-Project/peed_backend/internal/app/runtime"
	"github.com/PEED-Project/peed_backend/internal/platform/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := runtime.NewLogger(cfg)

		db, err := runtime.OpenDatabase(cmd.Context(), cfg.Database, log.Named("database"))
		if err != nil {
			return err
		}
		defer db.Close()

		version, dirty, err := migrations.Version(cmd.Context(), db.DB, cfg.Database.Driver())
		if err != nil {
			return err
		}
		log.WithField("version", version).
			WithField("dirty", dirty).
			WithField("database", cfg.Database.Kind()).
			Info("schema up to date")
		return nil
	},
}
