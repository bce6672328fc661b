package db_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/sql-connector/db"
)

func newMockDB(t *testing.T) (*db.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqldb.Close() })
	return db.New(sqldb, db.Config{}), mock
}

func TestExecTx_CommitFailureIsMapped(t *testing.T) {
	d, mock := newMockDB(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO accounts").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(context.DeadlineExceeded)

	err := d.ExecTx(ctx, func(tx *db.Tx) error {
		_, err := tx.Exec(ctx, "INSERT INTO accounts (login) VALUES (?)", "alice")
		return err
	})
	assert.True(t, db.IsTimeout(err), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecTx_BeginFailure(t *testing.T) {
	d, mock := newMockDB(t)

	mock.ExpectBegin().WillReturnError(errors.New("no connection"))

	called := false
	err := d.ExecTx(context.Background(), func(*db.Tx) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecTx_RollsBackSecondStatementFailure(t *testing.T) {
	d, mock := newMockDB(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO accounts").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO passwords").WillReturnError(errors.New("UNIQUE constraint failed: passwords.login"))
	mock.ExpectRollback()

	err := d.ExecTx(ctx, func(tx *db.Tx) error {
		if _, err := tx.Exec(ctx, "INSERT INTO accounts (login) VALUES (?)", "alice"); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, "INSERT INTO passwords (login, hash) VALUES (?, ?)", "alice", "h")
		return err
	})
	assert.True(t, db.IsDuplicateKey(err), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecTx_RollbackFailureKeepsOriginalError(t *testing.T) {
	d, mock := newMockDB(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectRollback().WillReturnError(errors.New("connection reset"))

	original := errors.New("write failed")
	err := d.ExecTx(ctx, func(*db.Tx) error { return original })

	assert.ErrorIs(t, err, original)
	assert.Contains(t, err.Error(), "rollback failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSession_ExecTxUsesPinnedConnection(t *testing.T) {
	d, mock := newMockDB(t)
	ctx := context.Background()

	mock.ExpectExec("DELETE FROM accounts").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO accounts").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	s, err := d.Session(ctx)
	require.NoError(t, err)
	defer s.Close()

	res, err := s.Exec(ctx, "DELETE FROM accounts WHERE login = ?", "old")
	require.NoError(t, err)
	n, _ := res.RowsAffected()
	assert.EqualValues(t, 2, n)

	err = s.ExecTx(ctx, func(tx *db.Tx) error {
		_, err := tx.Exec(ctx, "INSERT INTO accounts (login) VALUES (?)", "new")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecTx_TimeoutKeepsDriverCause(t *testing.T) {
	d, mock := newMockDB(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE accounts").WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	err := d.ExecTx(ctx, func(tx *db.Tx) error {
		_, err := tx.Exec(ctx, "UPDATE accounts SET name = ? WHERE login = ?", "Ivan", "alice")
		return err
	})

	var dbe *db.DBError
	require.ErrorAs(t, err, &dbe)
	assert.Equal(t, db.ErrTimeout, dbe.Sentinel)
	assert.Equal(t, context.DeadlineExceeded, dbe.Cause)
	assert.NoError(t, mock.ExpectationsWereMet())
}
