package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slipverify/notifier/pkg/template"
)

func templatesCmd() *cobra.Command {
	var defaults bool

	cmd := &cobra.Command{
		Use:   "templates [file...]",
		Short: "Import notification templates from YAML files",
		Long: `Save templates from YAML seed files into the template store.

Each file holds a top-level "templates" list. Existing templates with the
same code, channel and language are replaced.

Examples:
  notifier templates --defaults
  notifier templates seeds/line.yaml seeds/email.yaml`,
		RunE: func(cmd *cobra.Command, files []string) error {
			if !defaults && len(files) == 0 {
				return fmt.Errorf("no template files given")
			}
			_, log, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := connectPostgres(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			store, err := template.NewPostgresStore(pool)
			if err != nil {
				return err
			}

			if defaults {
				builtin, err := template.Defaults()
				if err != nil {
					return err
				}
				n, err := template.Seed(ctx, store, builtin)
				if err != nil {
					return err
				}
				log.InfoContext(ctx, "built-in templates imported", "count", n)
			}
			for _, file := range files {
				n, err := template.SeedFile(ctx, store, file)
				if err != nil {
					return fmt.Errorf("%s: %w", file, err)
				}
				log.InfoContext(ctx, "templates imported", "file", file, "count", n)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&defaults, "defaults", false, "import the built-in templates")
	return cmd
}
