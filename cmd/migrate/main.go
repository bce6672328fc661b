package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/database/sqlserver"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Skryldev/sql-connector/connstr"
	"github.com/Skryldev/sql-connector/migrations"
)

var log *zap.Logger

func main() {
	_ = godotenv.Load()

	var err error
	log, err = zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	connection := flag.String("connection", os.Getenv("CONNECTOR_CONNECTION"), "orchestrator configuration string")
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}
	if *connection == "" {
		fatalf("CONNECTOR_CONNECTION or -connection is required")
	}

	cfg, err := connstr.Parse(*connection)
	if err != nil {
		fatalf("%v", err)
	}
	dbURL, err := cfg.MigrateURL()
	if err != nil {
		fatalf("%v", err)
	}

	m, err := newMigrate(cfg.Engine, dbURL)
	if err != nil {
		fatalf("migration init failed: %v", err)
	}
	defer m.Close()

	m.Log = &migrateLogger{}

	command := args[0]
	switch command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			fatalf("up failed: %v", err)
		}
		log.Info("migrations: up completed", zap.Stringer("engine", cfg.Engine))

	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				fatalf("down: invalid steps argument %q", args[1])
			}
			steps = n
		}
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			fatalf("down failed: %v", err)
		}
		log.Info("migrations: down completed", zap.Int("steps", steps))

	case "version":
		v, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			fatalf("version failed: %v", err)
		}
		fmt.Printf("version: %d  dirty: %v\n", v, dirty)

	case "force":
		if len(args) < 2 {
			fatalf("force: version argument required")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			fatalf("force: invalid version %q", args[1])
		}
		if err := m.Force(v); err != nil {
			fatalf("force failed: %v", err)
		}
		log.Info("migrations: forced", zap.Int("version", v))

	case "drop":
		fmt.Fprintln(os.Stderr, "WARNING: drop will destroy all tables. Type 'yes' to confirm:")
		var confirm string
		_, _ = fmt.Scanln(&confirm)
		if confirm != "yes" {
			fmt.Println("aborted")
			os.Exit(0)
		}
		if err := m.Drop(); err != nil {
			fatalf("drop failed: %v", err)
		}
		log.Info("migrations: all tables dropped")

	default:
		usage()
		os.Exit(1)
	}
}

// newMigrate uses MIGRATIONS_PATH when set and the embedded migrations of
// the engine otherwise.
func newMigrate(engine connstr.Engine, dbURL string) (*migrate.Migrate, error) {
	if path := os.Getenv("MIGRATIONS_PATH"); path != "" {
		return migrate.New("file://"+path, dbURL)
	}
	src, err := migrations.Source(engine)
	if err != nil {
		return nil, err
	}
	return migrate.NewWithSourceInstance("iofs", src, dbURL)
}

// ─────────────────────────────────────────────────────────────────────────────

type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...any) {
	log.Info(fmt.Sprintf(format, v...))
}
func (l *migrateLogger) Verbose() bool { return false }

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: migrate [-connection <string>] <command> [args]

Commands:
  up           Apply all pending migrations
  down [N]     Rollback N migrations (default: 1)
  version      Print current migration version
  force <V>    Force set migration version (bypass dirty state)
  drop         Drop all tables (dev only)

Environment:
  CONNECTOR_CONNECTION  Orchestrator configuration string, e.g.
                        ConnectionString='Host=...;';Provider='PostgreSQL.9.5';
  MIGRATIONS_PATH       Directory of migrations to use instead of the
                        embedded ones for the detected engine`)
}

func fatalf(format string, args ...any) {
	log.Error(fmt.Sprintf(format, args...))
	_ = log.Sync()
	os.Exit(1)
}
