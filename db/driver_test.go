package db_test

import (
	"database/sql"
	"errors"
	"net/url"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/sql-connector/db"
)

func TestLookupDriver(t *testing.T) {
	for _, name := range []string{"postgres", "pgx", "sqlserver", "mysql", "sqlite3"} {
		d, err := db.LookupDriver(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, d.Name())
	}

	_, err := db.LookupDriver("oracle")
	assert.Error(t, err)
}

func TestRegisterDriver_DuplicatePanics(t *testing.T) {
	assert.Panics(t, func() { db.RegisterDriver(db.SQLiteDriver{}) })
}

func TestPostgresDriver_DSN(t *testing.T) {
	dsn, err := db.PostgresDriver{}.DSN(db.DriverOptions{
		Host:     "127.0.0.1",
		User:     "hr",
		Password: "it's secret",
		Database: "testDb",
		Extra: map[string]string{
			"Timeout": "15",
			"Pooling": "true",
		},
	})
	require.NoError(t, err)
	assert.Equal(t,
		`host=127.0.0.1 port=5432 user=hr password='it\'s secret' dbname=testDb sslmode=disable connect_timeout=15`,
		dsn)

	_, err = db.PostgresDriver{}.DSN(db.DriverOptions{Host: "h"})
	assert.Error(t, err, "database is required")

	raw, err := db.PgxDriver{}.DSN(db.DriverOptions{Raw: "postgres://u:p@h/db"})
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@h/db", raw)
}

func TestSQLServerDriver_DSN(t *testing.T) {
	dsn, err := db.SQLServerDriver{}.DSN(db.DriverOptions{
		Host:     `db.local\SQLEXPRESS`,
		Port:     1433,
		User:     "sa",
		Password: "p@ss",
		Database: "testDb",
		Extra:    map[string]string{"TrustServerCertificate": "true"},
	})
	require.NoError(t, err)

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "sqlserver", u.Scheme)
	assert.Equal(t, "db.local:1433", u.Host)
	assert.Equal(t, "/SQLEXPRESS", u.Path)
	assert.Equal(t, "sa", u.User.Username())
	pass, _ := u.User.Password()
	assert.Equal(t, "p@ss", pass)
	assert.Equal(t, "testDb", u.Query().Get("database"))
	assert.Equal(t, "true", u.Query().Get("trustservercertificate"))
}

func TestMySQLDriver_DSN(t *testing.T) {
	dsn, err := db.MySQLDriver{}.DSN(db.DriverOptions{
		Host:     "127.0.0.1",
		User:     "root",
		Password: "secret",
		Database: "testDb",
	})
	require.NoError(t, err)

	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:3306", cfg.Addr)
	assert.Equal(t, "testDb", cfg.DBName)
	assert.True(t, cfg.ClientFoundRows)
	assert.True(t, cfg.ParseTime)
}

func TestSQLiteDriver_DSN(t *testing.T) {
	dsn, err := db.SQLiteDriver{}.DSN(db.DriverOptions{Database: "hr.db", Extra: map[string]string{"_fk": "1"}})
	require.NoError(t, err)
	assert.Equal(t, "hr.db?_fk=1", dsn)

	_, err = db.SQLiteDriver{}.DSN(db.DriverOptions{})
	assert.Error(t, err)
}

func TestOpenWithDriver_SQLite(t *testing.T) {
	d, err := db.OpenWithDriver("sqlite3", db.DriverOptions{Raw: ":memory:"}, db.Config{MaxOpenConns: 1})
	require.NoError(t, err)
	defer d.Close()

	_, err = d.Raw().Exec(`CREATE TABLE t (id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)
	_, err = d.Raw().Exec(`INSERT INTO t (id) VALUES (1)`)
	require.NoError(t, err)

	_, err = d.Exec(t.Context(), `INSERT INTO t (id) VALUES (1)`)
	assert.True(t, db.IsDuplicateKey(err), "got %v", err)
}

func TestDriverErrorMappers(t *testing.T) {
	tests := []struct {
		driver db.Driver
		native error
	}{
		{db.PostgresDriver{}, &pq.Error{Code: "23505"}},
		{db.PgxDriver{}, &pgconn.PgError{Code: "23505"}},
		{db.SQLServerDriver{}, mssql.Error{Number: 2627}},
		{db.MySQLDriver{}, &mysql.MySQLError{Number: 1062}},
		{db.SQLiteDriver{}, errors.New("UNIQUE constraint failed: User.login")},
	}
	for _, tt := range tests {
		t.Run(tt.driver.Name(), func(t *testing.T) {
			m := tt.driver.ErrorMapper()

			mapped := m.Map(tt.native)
			assert.True(t, db.IsDuplicateKey(mapped), "got %v", mapped)
			assert.Same(t, mapped, m.Map(mapped), "mapped errors pass through")

			// Errors the driver does not own are left to the next mapper.
			assert.Same(t, sql.ErrNoRows, m.Map(sql.ErrNoRows))
			assert.NoError(t, m.Map(nil))
		})
	}

	chain := db.ChainMapper(db.SQLiteDriver{}.ErrorMapper(), db.DefaultErrorMapper())
	assert.True(t, db.IsNotFound(chain.Map(sql.ErrNoRows)))
}
