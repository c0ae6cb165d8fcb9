package library

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations
var migrationsFS embed.FS

func migrationProvider(db *sql.DB, driverName string) (*goose.Provider, error) {
	var (
		dialect goose.Dialect
		dir     string
	)
	switch driverName {
	case DriverSQLite:
		dialect, dir = goose.DialectSQLite3, "migrations/sqlite3"
	case DriverPgx, DriverPostgres:
		dialect, dir = goose.DialectPostgres, "migrations/postgres"
	default:
		return nil, fmt.Errorf("unsupported driver %q", driverName)
	}

	sub, err := fs.Sub(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("locate migrations: %w", err)
	}
	provider, err := goose.NewProvider(dialect, db, sub)
	if err != nil {
		return nil, fmt.Errorf("configure goose: %w", err)
	}
	return provider, nil
}

// migrate applies pending embedded migrations for the driver's dialect.
func migrate(ctx context.Context, db *sql.DB, driverName string, log *slog.Logger) error {
	provider, err := migrationProvider(db, driverName)
	if err != nil {
		return err
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", translate(err))
	}
	for _, r := range results {
		log.Info("migration applied", "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

// SchemaVersion returns the highest applied migration version.
func (d *Database) SchemaVersion(ctx context.Context) (int64, error) {
	provider, err := migrationProvider(d.db.DB, d.driver)
	if err != nil {
		return 0, err
	}
	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("schema version: %w", translate(err))
	}
	return version, nil
}
