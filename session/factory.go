// Package session turns the orchestrator configuration string into a pool
// of connections and hands out one session per connector call.
package session

import (
	"context"
	"fmt"

	"github.com/Skryldev/sql-connector/connstr"
	"github.com/Skryldev/sql-connector/db"
	"github.com/Skryldev/sql-connector/repo"
)

// Factory owns the connection pool for the connector's lifetime.
type Factory struct {
	db      *db.DB
	dialect db.Dialect
	cfg     connstr.Config
}

// NewFactory parses configString, opens the engine's driver and verifies
// connectivity. Malformed configuration strings fail with an error matching
// connstr.ErrConfiguration before any connection is attempted.
func NewFactory(configString string, dbCfg db.Config) (*Factory, error) {
	cfg, err := connstr.Parse(configString)
	if err != nil {
		return nil, err
	}
	opts, err := cfg.DriverOptions()
	if err != nil {
		return nil, err
	}
	drv, err := db.LookupDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}

	database, err := db.OpenWithDriver(cfg.Driver, opts, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("session: open %s: %w", cfg.Engine, err)
	}
	return &Factory{db: database, dialect: drv.Dialect(cfg.Schema), cfg: cfg}, nil
}

// NewFactoryWithDB wraps an already opened database.
func NewFactoryWithDB(database *db.DB, dialect db.Dialect, cfg connstr.Config) *Factory {
	return &Factory{db: database, dialect: dialect, cfg: cfg}
}

// DB exposes the pool, e.g. for migrations.
func (f *Factory) DB() *db.DB { return f.db }

// Dialect returns the SQL dialect sessions speak.
func (f *Factory) Dialect() db.Dialect { return f.dialect }

// Config returns the parsed configuration string.
func (f *Factory) Config() connstr.Config { return f.cfg }

// Engine returns the engine parsed from the configuration string.
func (f *Factory) Engine() connstr.Engine { return f.cfg.Engine }

// Close closes the pool.
func (f *Factory) Close() error { return f.db.Close() }

// Open acquires a session. Callers must Close it.
func (f *Factory) Open(ctx context.Context) (*Session, error) {
	s, err := f.db.Session(ctx)
	if err != nil {
		return nil, err
	}
	return &Session{s: s, dialect: f.dialect}, nil
}

// Repositories bundles the repositories bound to one Querier.
type Repositories struct {
	Users       repo.UserRepository
	Passwords   repo.PasswordRepository
	Permissions repo.PermissionRepository
}

func newRepositories(q db.Querier, d db.Dialect) Repositories {
	return Repositories{
		Users:       repo.NewUserRepo(q, d),
		Passwords:   repo.NewPasswordRepo(q, d),
		Permissions: repo.NewPermissionRepo(q, d),
	}
}

// Session is one connection held for the duration of a connector call.
type Session struct {
	s       *db.Session
	dialect db.Dialect
}

// Repos returns repositories running outside any transaction.
func (s *Session) Repos() Repositories { return newRepositories(s.s, s.dialect) }

// InTx runs fn with repositories bound to a transaction: commit when fn
// returns nil, rollback on error or panic.
func (s *Session) InTx(ctx context.Context, fn func(Repositories) error) error {
	return s.s.ExecTx(ctx, func(tx *db.Tx) error {
		return fn(newRepositories(tx, s.dialect))
	})
}

// Close returns the connection to the pool.
func (s *Session) Close() error { return s.s.Close() }
