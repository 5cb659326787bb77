package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fortune-letter/internal/config"
	"fortune-letter/internal/database"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the orders, payments and fortunes tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Store != config.StorePostgres {
				return errors.New("migrate requires STORE=postgres")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			db, err := database.NewPostgres(ctx, cfg.Database.DSN())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.Migrate(ctx, db.DB()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}
