package session_test

import (
	"context"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/sql-connector/connstr"
	"github.com/Skryldev/sql-connector/db"
	"github.com/Skryldev/sql-connector/migrations"
	"github.com/Skryldev/sql-connector/models"
	"github.com/Skryldev/sql-connector/session"
)

const sqliteConfig = `ConnectionString=':memory:';Provider='Sqlite';`

func newFactory(t *testing.T) *session.Factory {
	t.Helper()
	f, err := session.NewFactory(sqliteConfig, db.Config{MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	require.NoError(t, migrations.Up(f.Config(), f.DB().Raw()))
	return f
}

func TestNewFactory_SQLite(t *testing.T) {
	f := newFactory(t)
	assert.Equal(t, connstr.EngineSQLite, f.Engine())
	assert.Equal(t, "sqlite", f.Dialect().Name())
	assert.Equal(t, ":memory:", f.Config().ConnectionString)
}

func TestNewFactory_MalformedConfig(t *testing.T) {
	_, err := session.NewFactory("Provider='Sqlite';", db.Config{})
	assert.ErrorIs(t, err, connstr.ErrConfiguration)
}

func TestSession_InTxCommits(t *testing.T) {
	f := newFactory(t)
	ctx := context.Background()

	s, err := f.Open(ctx)
	require.NoError(t, err)
	defer s.Close()

	err = s.InTx(ctx, func(r session.Repositories) error {
		if err := r.Users.Insert(ctx, models.CreateUserParams{Login: "ivanov"}); err != nil {
			return err
		}
		return r.Passwords.Insert(ctx, "ivanov", "hash")
	})
	require.NoError(t, err)

	ok, err := s.Repos().Users.Exists(ctx, "ivanov")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSession_InTxRollsBack(t *testing.T) {
	f := newFactory(t)
	ctx := context.Background()

	s, err := f.Open(ctx)
	require.NoError(t, err)
	defer s.Close()

	boom := errors.New("boom")
	err = s.InTx(ctx, func(r session.Repositories) error {
		if err := r.Users.Insert(ctx, models.CreateUserParams{Login: "petrov"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	ok, err := s.Repos().Users.Exists(ctx, "petrov")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewFactoryWithDB(t *testing.T) {
	database, err := db.Open(db.Config{DSN: ":memory:", DriverName: "sqlite3", MaxOpenConns: 1})
	require.NoError(t, err)

	f := session.NewFactoryWithDB(database, db.SQLiteDialect{}, connstr.Config{Engine: connstr.EngineSQLite})
	defer f.Close()
	require.NoError(t, migrations.Up(f.Config(), f.DB().Raw()))

	s, err := f.Open(context.Background())
	require.NoError(t, err)
	defer s.Close()

	roles, err := s.Repos().Permissions.ListITRoles(context.Background())
	require.NoError(t, err)
	assert.Empty(t, roles)
}
