package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"billsplit/config"
	_ "billsplit/migration" // registers the Go migrations

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/pressly/goose/v3"
)

const defaultMigrateDSN = "host=localhost user=postgres dbname=postgres port=5432 sslmode=disable TimeZone=America/Lima"

func migrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "migrate the settlement database",
		Long:  `This command migrates the Postgres settlement store with goose.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			up, _ := cmd.Flags().GetBool("up")
			down, _ := cmd.Flags().GetBool("down")
			if down {
				up = false
			}

			config.Load()
			connStr := config.GetEnv("DATABASE_URL", defaultMigrateDSN)

			if err := goose.SetDialect("postgres"); err != nil {
				return fmt.Errorf("failed to set goose dialect: %w", err)
			}

			db, err := sql.Open("postgres", connStr)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer pingCancel()
			if err := db.PingContext(pingCtx); err != nil {
				return fmt.Errorf("failed to ping database: %w", err)
			}
			slog.Info("connected to the database")

			ctx := context.Background()
			migrationsDir := "migration"
			switch {
			case up:
				slog.Info("running up migrations")
				if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
					return fmt.Errorf("goose up failed: %w", err)
				}
			case down:
				slog.Info("rolling back the last migration")
				if err := goose.DownContext(ctx, db, migrationsDir); err != nil {
					return fmt.Errorf("goose down failed: %w", err)
				}
			}

			return goose.StatusContext(ctx, db, migrationsDir)
		},
	}

	cmd.Flags().BoolP("up", "u", true, "up the version of db")
	cmd.Flags().BoolP("down", "d", false, "down the version of db")

	return cmd
}
