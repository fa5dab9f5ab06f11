package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

// migrationsFS holds one directory of goose migrations per dialect. Append new
// migrations to every directory with the same version number.
//
//go:embed migrations
var migrationsFS embed.FS

// Migrate applies all pending migrations for the database's dialect.
func Migrate(ctx context.Context, d *DB) error {
	dialect, err := gooseDialect(d.Dialect)
	if err != nil {
		return err
	}

	files, err := fs.Sub(migrationsFS, "migrations/"+string(d.Dialect))
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	provider, err := goose.NewProvider(dialect, d.DB, files)
	if err != nil {
		return fmt.Errorf("creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	for _, r := range results {
		slog.Info("migration applied", "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

func gooseDialect(d Dialect) (goose.Dialect, error) {
	switch d {
	case DialectSQLite:
		return goose.DialectSQLite3, nil
	case DialectPostgres:
		return goose.DialectPostgres, nil
	case DialectMySQL:
		return goose.DialectMySQL, nil
	default:
		return "", fmt.Errorf("unsupported dialect %q", d)
	}
}
