package db

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/sitedesk/apiserver/config"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFiles embed.FS

// MigrateUp applies every pending migration. It is a no-op when the schema is
// already current.
func MigrateUp(conn *sqlx.DB, cfg config.DatabaseConfig) error {
	return runMigrations(conn, cfg, func(m *migrate.Migrate) error { return m.Up() })
}

// MigrateDown rolls back every applied migration.
func MigrateDown(conn *sqlx.DB, cfg config.DatabaseConfig) error {
	return runMigrations(conn, cfg, func(m *migrate.Migrate) error { return m.Down() })
}

// MigrationVersion reports the applied schema version.
func MigrationVersion(conn *sqlx.DB, cfg config.DatabaseConfig) (uint, bool, error) {
	var (
		version uint
		dirty   bool
	)
	err := runMigrations(conn, cfg, func(m *migrate.Migrate) error {
		var err error
		version, dirty, err = m.Version()
		return err
	})
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func runMigrations(conn *sqlx.DB, cfg config.DatabaseConfig, step func(*migrate.Migrate) error) error {
	sub, err := fs.Sub(migrationFiles, "migrations/"+cfg.Driver)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	var migrator *migrate.Migrate
	switch cfg.Driver {
	case DriverSQLite:
		// Reuse the live handle: an in-memory database only exists on it.
		// The migrator is deliberately never closed, that would close conn.
		driver, err := sqlite.WithInstance(conn.DB, &sqlite.Config{})
		if err != nil {
			return fmt.Errorf("init migrator failed: %w", err)
		}
		migrator, err = migrate.NewWithInstance("iofs", src, DriverSQLite, driver)
		if err != nil {
			return fmt.Errorf("init migrator failed: %w", err)
		}
	case DriverPostgres:
		migrator, err = migrate.NewWithSourceInstance("iofs", src, postgresURL(cfg))
		if err != nil {
			return fmt.Errorf("init migrator failed: %w", err)
		}
		defer func() {
			_, _ = migrator.Close()
		}()
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	if err := step(migrator); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate failed: %w", err)
	}
	return nil
}
