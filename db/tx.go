package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Tx is a transaction in progress. It offers the same Querier surface as
// DB and Session so repositories run unchanged inside ExecTx.
type Tx struct {
	executor
}

// TxOptions selects the isolation level and read-only mode.
type TxOptions struct {
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

// txStarter is satisfied by *sql.DB and *sql.Conn.
type txStarter interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// ExecTx runs fn in a transaction on any pooled connection: commit when fn
// returns nil, rollback on error or panic.
//
//	err := db.ExecTx(ctx, func(tx *Tx) error {
//	    if _, err := tx.Exec(ctx, insertUser, login); err != nil {
//	        return err
//	    }
//	    _, err := tx.Exec(ctx, insertPassword, login, hash)
//	    return err
//	})
func (d *DB) ExecTx(ctx context.Context, fn func(*Tx) error, opts ...TxOptions) error {
	ctx, cancel := d.applyDefaultTimeout(ctx)
	defer cancel()
	return runTx(ctx, d.sqldb, d.executor, fn, opts)
}

// runTx is the single commit/rollback implementation behind DB.ExecTx and
// Session.ExecTx. parent supplies hooks and the error mapper.
func runTx(ctx context.Context, starter txStarter, parent executor, fn func(*Tx) error, opts []TxOptions) (err error) {
	var sqlOpts *sql.TxOptions
	if len(opts) > 0 {
		sqlOpts = &sql.TxOptions{Isolation: opts[0].Isolation, ReadOnly: opts[0].ReadOnly}
	}

	sqltx, err := starter.BeginTx(ctx, sqlOpts)
	if err != nil {
		return parent.mapErr(err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if p := recover(); p != nil {
			_ = sqltx.Rollback()
			panic(p)
		}
		if rbErr := sqltx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = fmt.Errorf("sqlconnector/db: rollback failed (%v) after original error: %w", rbErr, err)
		}
	}()

	// The transaction's own context already carries any deadline.
	tx := &Tx{executor{target: sqltx, hooks: parent.hooks, errMap: parent.errMap}}
	if err = fn(tx); err != nil {
		return parent.mapErr(err)
	}
	if err = sqltx.Commit(); err != nil {
		committed = true // Commit releases the transaction even when it fails.
		return parent.mapErr(err)
	}
	committed = true
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Querier: the shared interface accepted by repositories
// ─────────────────────────────────────────────────────────────────────────────

// Querier is the minimal interface shared by *DB, *Session and *Tx.
// Repository constructors accept Querier so they work inside transactions.
type Querier interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *Row
	Prepare(ctx context.Context, query string) (*Stmt, error)
}

var (
	_ Querier = (*DB)(nil)
	_ Querier = (*Session)(nil)
	_ Querier = (*Tx)(nil)
)
