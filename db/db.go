// Package db is the SQL-first data access layer behind the connector.
// It is NOT an ORM: all SQL is explicit and written per dialect by the
// repositories. The package owns the connection pool, per-call sessions,
// scoped transactions, statement hooks and driver error mapping.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// pingTimeout bounds the connectivity check in Open.
const pingTimeout = 5 * time.Second

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// Config describes the pool. DSN and DriverName are filled in by
// OpenWithDriver when the connection comes from a configuration string.
type Config struct {
	DSN string
	// DriverName is the database/sql name: "postgres", "pgx", "sqlserver",
	// "mysql" or "sqlite3".
	DriverName string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// DefaultTimeout bounds Exec, ExecTx and session acquisition whenever
	// the caller's context carries no deadline. Zero disables it.
	DefaultTimeout time.Duration

	// Hooks see every statement. nil entries are skipped.
	Hooks []Hook
}

func (c Config) applyPool(sqldb *sql.DB) {
	if c.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.MaxIdleConns > 0 {
		sqldb.SetMaxIdleConns(c.MaxIdleConns)
	}
	if c.ConnMaxLifetime > 0 {
		sqldb.SetConnMaxLifetime(c.ConnMaxLifetime)
	}
	if c.ConnMaxIdleTime > 0 {
		sqldb.SetConnMaxIdleTime(c.ConnMaxIdleTime)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// DB: the pool
// ─────────────────────────────────────────────────────────────────────────────

// DB owns the *sql.DB for the connector's lifetime. It is safe for
// concurrent use. Statements run directly on DB take any pooled
// connection; use Session to pin one.
type DB struct {
	executor
	sqldb *sql.DB
	cfg   Config
}

// Open opens the database described by cfg and verifies connectivity.
// The caller owns the returned DB and must Close it.
func Open(cfg Config) (*DB, error) {
	switch {
	case cfg.DSN == "":
		return nil, fmt.Errorf("sqlconnector/db: DSN must not be empty")
	case cfg.DriverName == "":
		return nil, fmt.Errorf("sqlconnector/db: DriverName must not be empty")
	}

	sqldb, err := sql.Open(cfg.DriverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlconnector/db: open: %w", err)
	}
	d := New(sqldb, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("sqlconnector/db: ping: %w", d.mapErr(err))
	}
	return d, nil
}

// New wraps an already opened *sql.DB, applying the pool settings of cfg.
// DSN and DriverName are ignored.
func New(sqldb *sql.DB, cfg Config) *DB {
	cfg.applyPool(sqldb)
	return &DB{
		executor: executor{
			target:  sqldb,
			hooks:   newHookChain(cfg.Hooks),
			errMap:  DefaultErrorMapper(),
			timeout: cfg.DefaultTimeout,
		},
		sqldb: sqldb,
		cfg:   cfg,
	}
}

// Raw exposes the underlying pool, e.g. for golang-migrate.
func (d *DB) Raw() *sql.DB { return d.sqldb }

// SetErrorMapper replaces the mapper. Sessions opened afterwards use it.
func (d *DB) SetErrorMapper(m ErrorMapper) { d.errMap = m }

// Close closes every pooled connection.
func (d *DB) Close() error { return d.sqldb.Close() }

// Ping checks that the database answers.
func (d *DB) Ping(ctx context.Context) error {
	ctx, cancel := d.applyDefaultTimeout(ctx)
	defer cancel()
	return d.mapErr(d.sqldb.PingContext(ctx))
}

func (d *DB) applyDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return withDefaultTimeout(ctx, d.cfg.DefaultTimeout)
}

// ─────────────────────────────────────────────────────────────────────────────
// Batch helpers
// ─────────────────────────────────────────────────────────────────────────────

// BatchExec prepares query once on q and executes it for every item.
// Run it on a *Tx to get all-or-nothing semantics:
//
//	err := sess.ExecTx(ctx, func(tx *db.Tx) error {
//	    return db.BatchExec(ctx, tx, insertSQL, rows,
//	        func(r Row) []any { return []any{r.UserID, r.RoleID} })
//	})
func BatchExec[T any](ctx context.Context, q Querier, query string, items []T, argsFn func(T) []any) error {
	if len(items) == 0 {
		return nil
	}
	stmt, err := q.Prepare(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, item := range items {
		if _, err := stmt.Exec(ctx, argsFn(item)...); err != nil {
			return fmt.Errorf("sqlconnector/db: batch item %d: %w", i, err)
		}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// WithRetry: resilience helper
// ─────────────────────────────────────────────────────────────────────────────

// RetryConfig controls retrying of transient failures.
type RetryConfig struct {
	// MaxAttempts counts the first try; values below 1 mean a single try.
	MaxAttempts int
	Delay       time.Duration
	// RetryOn reports whether err is worth another attempt. The default
	// accepts deadlocks and timeouts.
	RetryOn func(error) bool
}

func (c RetryConfig) attempts() int {
	if c.MaxAttempts < 1 {
		return 1
	}
	return c.MaxAttempts
}

func (c RetryConfig) retryable(err error) bool {
	if c.RetryOn != nil {
		return c.RetryOn(err)
	}
	return IsDeadlock(err) || IsTimeout(err)
}

// WithRetry runs fn until it succeeds, fails with a non-retryable error or
// runs out of attempts. fn must be safe to repeat; a whole ExecTx call is,
// since a failed attempt rolls back.
func WithRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	attempts := cfg.attempts()

	err := fn()
	for attempt := 1; attempt < attempts && err != nil && cfg.retryable(err); attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.Delay):
		}
		err = fn()
	}
	if err == nil || attempts == 1 || !cfg.retryable(err) {
		return err
	}
	return fmt.Errorf("sqlconnector/db: all %d attempts failed, last error: %w", attempts, err)
}
