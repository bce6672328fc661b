package db_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/sql-connector/db"
)

func TestDefaultErrorMapper(t *testing.T) {
	mapper := db.DefaultErrorMapper()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, db.ErrNotFound},
		{"deadline", context.DeadlineExceeded, db.ErrTimeout},
		{"canceled", fmt.Errorf("exec: %w", context.Canceled), db.ErrTimeout},

		{"pq unique", &pq.Error{Code: "23505"}, db.ErrDuplicateKey},
		{"pq foreign key", &pq.Error{Code: "23503"}, db.ErrForeignKeyViolation},
		{"pq check", &pq.Error{Code: "23514"}, db.ErrCheckViolation},
		{"pq deadlock", &pq.Error{Code: "40P01"}, db.ErrDeadlock},
		{"pgx unique", &pgconn.PgError{Code: "23505"}, db.ErrDuplicateKey},
		{"pgx statement timeout", &pgconn.PgError{Code: "57014"}, db.ErrTimeout},
		{"pq text fallback", errors.New(`pq: duplicate key value (SQLSTATE 23505)`), db.ErrDuplicateKey},

		{"mssql primary key", mssql.Error{Number: 2627}, db.ErrDuplicateKey},
		{"mssql unique index", mssql.Error{Number: 2601}, db.ErrDuplicateKey},
		{"mssql foreign key", mssql.Error{Number: 547, Message: "The INSERT statement conflicted with the FOREIGN KEY constraint"}, db.ErrForeignKeyViolation},
		{"mssql check", mssql.Error{Number: 547, Message: "The INSERT statement conflicted with the CHECK constraint"}, db.ErrCheckViolation},
		{"mssql deadlock", mssql.Error{Number: 1205}, db.ErrDeadlock},
		{"mssql login", mssql.Error{Number: 18456}, db.ErrConnectionFailed},

		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, db.ErrDuplicateKey},
		{"mysql foreign key", &mysql.MySQLError{Number: 1452}, db.ErrForeignKeyViolation},
		{"mysql check", &mysql.MySQLError{Number: 3819}, db.ErrCheckViolation},
		{"mysql deadlock", &mysql.MySQLError{Number: 1213}, db.ErrDeadlock},

		{"sqlite unique", errors.New("UNIQUE constraint failed: User.login"), db.ErrDuplicateKey},
		{"sqlite check", errors.New("CHECK constraint failed: length(password) <= 100"), db.ErrCheckViolation},
		{"sqlite locked", errors.New("database is locked"), db.ErrDeadlock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapper.Map(tt.err)
			assert.ErrorIs(t, got, tt.want)

			var dbErr *db.DBError
			require.ErrorAs(t, got, &dbErr)
			assert.Equal(t, tt.err, dbErr.Cause, "the driver error stays reachable")
		})
	}
}

func TestDefaultErrorMapper_PassThrough(t *testing.T) {
	mapper := db.DefaultErrorMapper()

	assert.NoError(t, mapper.Map(nil))

	plain := errors.New("something else")
	assert.Same(t, plain, mapper.Map(plain))

	mapped := mapper.Map(sql.ErrNoRows)
	assert.Same(t, mapped, mapper.Map(mapped), "already mapped errors are not wrapped twice")

	timeout := mapper.Map(context.DeadlineExceeded)
	assert.Same(t, timeout, mapper.Map(timeout))

	wrapped := fmt.Errorf("insert user: %w", timeout)
	assert.Same(t, wrapped, mapper.Map(wrapped))
}

func TestChainMapper_FirstMatchWins(t *testing.T) {
	custom := errors.New("custom")
	first := db.ErrorMapperFunc(func(err error) error {
		if errors.Is(err, sql.ErrNoRows) {
			return custom
		}
		return err
	})
	chain := db.ChainMapper(first, db.DefaultErrorMapper())

	assert.Same(t, custom, chain.Map(sql.ErrNoRows))
	assert.ErrorIs(t, chain.Map(&pq.Error{Code: "23505"}), db.ErrDuplicateKey)
	assert.NoError(t, chain.Map(nil))
}

func TestDBError_Message(t *testing.T) {
	cause := errors.New("boom")
	err := &db.DBError{Sentinel: db.ErrDeadlock, Cause: cause}

	require.ErrorIs(t, err, db.ErrDeadlock)
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "boom")
	assert.True(t, db.IsDeadlock(err))
	assert.False(t, db.IsNotFound(err))
}
