// Package migrations embeds the HR schema for every supported engine and
// applies it with golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/database/sqlserver"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/Skryldev/sql-connector/connstr"
)

//go:embed postgres/*.sql sqlserver/*.sql mysql/*.sql sqlite/*.sql
var files embed.FS

// Dir returns the embedded directory holding the engine's migrations.
func Dir(engine connstr.Engine) (string, error) {
	switch engine {
	case connstr.EnginePostgres:
		return "postgres", nil
	case connstr.EngineSQLServer:
		return "sqlserver", nil
	case connstr.EngineMySQL:
		return "mysql", nil
	case connstr.EngineSQLite:
		return "sqlite", nil
	}
	return "", fmt.Errorf("migrations: no migrations for engine %s", engine)
}

// Source opens the embedded migrations of engine as a golang-migrate source.
func Source(engine connstr.Engine) (source.Driver, error) {
	dir, err := Dir(engine)
	if err != nil {
		return nil, err
	}
	return iofs.New(files, dir)
}

// CheckSchema reports whether the embedded migrations create the tables
// where cfg expects them. The PostgreSQL and SQL Server scripts always use
// connstr.DefaultSchema; MySQL and SQLite tables are unqualified.
func CheckSchema(cfg connstr.Config) error {
	switch cfg.Engine {
	case connstr.EnginePostgres, connstr.EngineSQLServer:
		if cfg.Schema != connstr.DefaultSchema {
			return &connstr.ConfigError{Reason: fmt.Sprintf(
				"migrations create schema %q, SchemaName %q cannot be migrated", connstr.DefaultSchema, cfg.Schema)}
		}
	}
	return nil
}

// Up applies every pending migration for the engine of cfg.
//
// SQLite migrates through sqldb itself so in-memory databases see the
// schema. Server engines migrate over a short-lived connection of their own
// opened from cfg; golang-migrate's drivers would otherwise pin and finally
// close a connection of the caller's pool.
func Up(cfg connstr.Config, sqldb *sql.DB) error {
	if err := CheckSchema(cfg); err != nil {
		return err
	}
	src, err := Source(cfg.Engine)
	if err != nil {
		return err
	}

	var m *migrate.Migrate
	if cfg.Engine == connstr.EngineSQLite {
		drv, err := sqlite3.WithInstance(sqldb, &sqlite3.Config{})
		if err != nil {
			_ = src.Close()
			return fmt.Errorf("migrations: sqlite driver: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, "sqlite3", drv)
		if err != nil {
			_ = src.Close()
			return fmt.Errorf("migrations: init: %w", err)
		}
		// Closing m would close sqldb; release only the source.
		defer src.Close()
	} else {
		dbURL, err := cfg.MigrateURL()
		if err != nil {
			_ = src.Close()
			return err
		}
		m, err = migrate.NewWithSourceInstance("iofs", src, dbURL)
		if err != nil {
			_ = src.Close()
			return fmt.Errorf("migrations: init: %w", err)
		}
		defer m.Close()
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations: up: %w", err)
	}
	return nil
}
