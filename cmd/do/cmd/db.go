package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/templui/magiclink/internal/config"
	"github.com/templui/magiclink/internal/db"
	"github.com/templui/magiclink/internal/logger"
	"github.com/templui/magiclink/internal/repository"
	"github.com/templui/magiclink/internal/service"
)

// openDB loads the config, sets up logging and connects to the database.
func openDB(ctx context.Context) (*config.Config, *sqlx.DB, error) {
	cfg := config.Load()
	logger.Init(cfg.IsDevelopment(), cfg.LogLevel, "")

	database, err := db.Init(ctx, cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return cfg, database, nil
}

func MigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, database, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close(database)
			return db.RunMigrations(cmd.Context(), database.DB, cfg.DBDriver)
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, database, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close(database)
			return db.MigrateDown(cmd.Context(), database.DB, cfg.DBDriver)
		},
	})

	return migrateCmd
}

func CleanupCmd() *cobra.Command {
	var olderThan time.Duration

	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete used or expired magic link tokens past the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}

			_, database, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close(database)

			cutoff := time.Now().UTC().Add(-olderThan)
			deleted, err := repository.NewLinkTokenRepository(database).CleanupExpired(cmd.Context(), cutoff)
			if err != nil {
				return err
			}

			slog.Info("link tokens cleaned up", "deleted", deleted, "cutoff", cutoff)
			return nil
		},
	}

	cleanupCmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "retention period for used or expired tokens")
	return cleanupCmd
}

func LinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link <email>",
		Short: "Issue a magic link and print it without sending email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, database, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close(database)

			issuer := service.NewTokenIssuer(
				database,
				repository.NewAccountRepository(database),
				repository.NewLinkTokenRepository(database),
				cfg.AppURL,
				cfg.TokenMagicLinkExpiry,
			)

			result, err := issuer.Issue(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), result.URL)
			return nil
		},
	}
}
