package main

import (
	"context"
	"fmt"

	"bank_ledger/internal/app/service"
	"bank_ledger/internal/domain/repository"
	"bank_ledger/internal/platform/config"
	"bank_ledger/internal/platform/database"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the schema and the bootstrap admin",
	Long:  `Create the users and accounts tables if needed and make sure the bootstrap admin exists, then exit.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openDatabase(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close() //nolint: errcheck

		users := repository.NewUserRepository(db.Dialect)
		ledger := service.NewLedgerService(db, users, repository.NewAccountRepository(db.Dialect), service.NewGate(users),
			service.LedgerOptions{TxTimeout: cfg.Ledger.TxTimeout})
		if _, err := ledger.Bootstrap(cmd.Context(), cfg.Bootstrap.AdminUsername, cfg.Bootstrap.AdminPassword); err != nil {
			return fmt.Errorf("failed to bootstrap admin: %w", err)
		}

		log.Info("Database migrations completed successfully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

// openDatabase connects to the configured database and applies the schema.
func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint: errcheck
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}
