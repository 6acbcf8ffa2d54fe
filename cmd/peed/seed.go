package main

import (
	"github.com/spf13/cobra"

	"github.com/PEED-Project/peed_backend/internal/app/runtime"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the achievement catalog and demo accounts",
	Long:  "Seed inserts missing achievements and, when the database has no users, the demo accounts with a few days of training.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := runtime.NewLogger(cfg)
		ctx := cmd.Context()

		db, err := runtime.OpenDatabase(ctx, cfg.Database, log.Named("database"))
		if err != nil {
			return err
		}
		defer db.Close()

		core, redisCache, err := runtime.BuildCore(ctx, cfg, db, log)
		if err != nil {
			return err
		}
		if redisCache != nil {
			defer redisCache.Close()
		}

		created, err := core.Achievements.Seed(ctx)
		if err != nil {
			return err
		}
		seeded, err := core.Seeder.DemoUsers(ctx)
		if err != nil {
			return err
		}
		log.WithField("achievements_created", created).
			WithField("demo_users_seeded", seeded).
			Info("seed complete")
		return nil
	},
}
