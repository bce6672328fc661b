package db

import (
	"context"
	"database/sql"
)

// Session pins one pooled connection for the duration of a single
// connector call. Close returns the connection to the pool; it must be
// called on every path, typically with defer.
type Session struct {
	executor
	conn *sql.Conn
	db   *DB
}

// Session acquires a dedicated connection from the pool. The default
// timeout, if configured, bounds the wait for a free connection.
func (d *DB) Session(ctx context.Context) (*Session, error) {
	acquireCtx, cancel := d.applyDefaultTimeout(ctx)
	defer cancel()

	conn, err := d.sqldb.Conn(acquireCtx)
	if err != nil {
		return nil, d.mapErr(err)
	}
	return &Session{
		executor: executor{
			target:  conn,
			hooks:   d.hooks,
			errMap:  d.errMap,
			timeout: d.cfg.DefaultTimeout,
		},
		conn: conn,
		db:   d,
	}, nil
}

// ExecTx runs fn in a transaction on the session's connection.
// See DB.ExecTx for the commit/rollback contract.
func (s *Session) ExecTx(ctx context.Context, fn func(*Tx) error, opts ...TxOptions) error {
	ctx, cancel := s.db.applyDefaultTimeout(ctx)
	defer cancel()
	return runTx(ctx, s.conn, s.executor, fn, opts)
}

// Close releases the connection back to the pool.
func (s *Session) Close() error { return s.conn.Close() }
