package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"bank_ledger/internal/platform/config"

	"github.com/charmbracelet/log"
)

// Dialect names the SQL flavour behind a DB and papers over the few places
// where PostgreSQL and SQLite differ.
type Dialect string

const (
	Postgres Dialect = "pgx"
	SQLite   Dialect = "sqlite"
)

// DB is a pooled connection together with its dialect. It is safe for
// concurrent use; callers never share a cursor.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Connect opens the database selected by cfg.Driver and verifies it answers.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	switch Dialect(cfg.Driver) {
	case Postgres:
		return openPostgres(ctx, cfg)
	case SQLite:
		path := cfg.DSN
		if path == "" {
			path = cfg.Path
		}
		return OpenSQLite(ctx, path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func (db *DB) Close() error {
	if db == nil || db.DB == nil {
		return nil
	}
	err := db.DB.Close()
	log.Info("Database connection closed.")
	return err
}

// Rebind rewrites '?' placeholders into the dialect's positional form.
// Queries in this module never contain a literal '?'.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsUniqueViolation reports whether err was raised by a UNIQUE constraint.
func (d Dialect) IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	switch d {
	case Postgres:
		return isPgUniqueViolation(err)
	case SQLite:
		return isSQLiteUniqueViolation(err)
	}
	return false
}

// IsForeignKeyViolation reports whether err was raised by a FOREIGN KEY constraint.
func (d Dialect) IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	switch d {
	case Postgres:
		return isPgForeignKeyViolation(err)
	case SQLite:
		return isSQLiteForeignKeyViolation(err)
	}
	return false
}
