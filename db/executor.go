package db

import (
	"context"
	"database/sql"
	"time"
)

// sqlTarget is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type sqlTarget interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// executor runs statements against one target, dispatching hooks and
// mapping driver errors. DB, Session and Tx embed it, which gives all three
// the Querier method set.
type executor struct {
	target sqlTarget
	hooks  hookChain
	errMap ErrorMapper
	// timeout bounds Exec when the caller's context has no deadline.
	// Query and QueryRow are left alone: cancelling would cut off rows the
	// caller has not read yet.
	timeout time.Duration
}

// Exec executes a statement that returns no rows (INSERT, UPDATE, DELETE, DDL).
func (e *executor) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, cancel := withDefaultTimeout(ctx, e.timeout)
	defer cancel()

	done := e.observe(ctx, query, args)
	res, err := e.target.ExecContext(ctx, query, args...)
	err = e.mapErr(err)
	done(err)
	return res, err
}

// Query executes a query that returns rows.
// The caller MUST close the returned *sql.Rows.
func (e *executor) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	done := e.observe(ctx, query, args)
	rows, err := e.target.QueryContext(ctx, query, args...)
	err = e.mapErr(err)
	done(err)
	return rows, err
}

// QueryRow executes a query expected to return at most one row. Hooks see
// the outcome once Scan runs, so a missing row is reported as ErrNotFound.
func (e *executor) QueryRow(ctx context.Context, query string, args ...any) *Row {
	done := e.observe(ctx, query, args)
	return &Row{raw: e.target.QueryRowContext(ctx, query, args...), errMap: e.errMap, done: done}
}

// Prepare creates a prepared statement for repeated use.
// The caller is responsible for calling stmt.Close().
func (e *executor) Prepare(ctx context.Context, query string) (*Stmt, error) {
	st, err := e.target.PrepareContext(ctx, query)
	if err != nil {
		return nil, e.mapErr(err)
	}
	return &Stmt{stmt: st, query: query, hooks: e.hooks, errMap: e.errMap}, nil
}

// observe fires BeforeQuery and returns the matching AfterQuery call.
func (e *executor) observe(ctx context.Context, query string, args []any) func(error) {
	start := time.Now()
	e.hooks.Before(ctx, query, args)
	return func(err error) {
		e.hooks.After(ctx, query, args, time.Since(start), err)
	}
}

func (e *executor) mapErr(err error) error {
	if err == nil {
		return nil
	}
	return e.errMap.Map(err)
}

func withDefaultTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// ─────────────────────────────────────────────────────────────────────────────
// Row: wraps *sql.Row to translate errors uniformly
// ─────────────────────────────────────────────────────────────────────────────

// Row defers error mapping and the AfterQuery hook until Scan.
type Row struct {
	raw    *sql.Row
	errMap ErrorMapper
	done   func(error)
}

// Scan copies columns from the matched row into dest values.
// ErrNotFound is returned when no row was found.
func (r *Row) Scan(dest ...any) error {
	err := r.raw.Scan(dest...)
	if err != nil {
		err = r.errMap.Map(err)
	}
	if r.done != nil {
		r.done(err)
	}
	return err
}

// ─────────────────────────────────────────────────────────────────────────────
// Stmt: wraps *sql.Stmt
// ─────────────────────────────────────────────────────────────────────────────

// Stmt is a prepared statement with hook dispatch and error mapping.
type Stmt struct {
	stmt   *sql.Stmt
	query  string
	hooks  hookChain
	errMap ErrorMapper
}

// Exec runs the prepared statement once with args.
func (s *Stmt) Exec(ctx context.Context, args ...any) (sql.Result, error) {
	start := time.Now()
	s.hooks.Before(ctx, s.query, args)
	res, err := s.stmt.ExecContext(ctx, args...)
	if err != nil {
		err = s.errMap.Map(err)
	}
	s.hooks.After(ctx, s.query, args, time.Since(start), err)
	return res, err
}

// Close releases the prepared statement resources.
func (s *Stmt) Close() error { return s.stmt.Close() }
