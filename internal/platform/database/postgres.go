package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bank_ledger/internal/platform/config"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

func openPostgres(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	db, err := sql.Open("pgx", cfg.PostgresConnString())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	maxConns := cfg.MaxOpenConns
	if maxConns <= 0 {
		maxConns = 25
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection
	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint: errcheck
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	log.Info("Successfully connected to PostgreSQL database", "host", cfg.Host, "name", cfg.Name)
	return &DB{DB: db, Dialect: Postgres}, nil
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isPgForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
