package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/config"
	"github.com/jubayer-ahmed-ratul/plateshare-server/migrations"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending Postgres migrations and exit.",
		Action: func(c *cli.Context) error {
			cfg := config.FromContext(c)
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("database url is required")
			}

			ctx, cancel := context.WithTimeout(c.Context, startupTimeout)
			defer cancel()

			pool, err := connectPostgres(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := migrations.Apply(ctx, pool)
			if err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
			if len(applied) == 0 {
				fmt.Fprintln(c.App.Writer, "schema is up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintf(c.App.Writer, "applied %s\n", name)
			}
			return nil
		},
	}
}
