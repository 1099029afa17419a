package main

import (
	"github.com/spf13/cobra"

	"github.com/slipverify/notifier/db/migrations"
	"github.com/slipverify/notifier/pkg/config"
	"github.com/slipverify/notifier/pkg/pg"
)

func migrateCmd() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply the embedded notification and template migrations.

Examples:
  notifier migrate
  notifier migrate --down`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, log, err := loadConfig()
			if err != nil {
				return err
			}
			var cfg pg.Config
			if err := config.Load(&cfg); err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := pg.Connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			if down {
				return pg.Rollback(ctx, pool, migrations.FS, cfg, log)
			}
			return pg.Migrate(ctx, pool, migrations.FS, cfg, log)
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back the most recent migration")
	return cmd
}
