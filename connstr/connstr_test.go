package connstr_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/sql-connector/connstr"
	"github.com/Skryldev/sql-connector/db"
)

const postgresConfig = `ConnectionString='Host=127.0.0.1;Port=5432;Database=testDb;Username=testUser;Password=secret;';Provider='PostgreSQL.9.5';SchemaName='AvanpostIntegrationTestTaskSchema';`

func TestParse_Postgres(t *testing.T) {
	cfg, err := connstr.Parse(postgresConfig)
	require.NoError(t, err)

	assert.Equal(t, connstr.EnginePostgres, cfg.Engine)
	assert.Equal(t, "Host=127.0.0.1;Port=5432;Database=testDb;Username=testUser;Password=secret;", cfg.ConnectionString)
	assert.Equal(t, "AvanpostIntegrationTestTaskSchema", cfg.Schema)
	assert.Equal(t, "postgres", cfg.Driver)
}

func TestParse_EngineMarkers(t *testing.T) {
	cases := []struct {
		provider string
		want     connstr.Engine
		driver   string
	}{
		{"SqlServer.2019", connstr.EngineSQLServer, "sqlserver"},
		{"sqlserver", connstr.EngineSQLServer, "sqlserver"},
		{"POSTGRESQL.9.5", connstr.EnginePostgres, "postgres"},
		{"MySql.8", connstr.EngineMySQL, "mysql"},
		{"Sqlite", connstr.EngineSQLite, "sqlite3"},
	}
	for _, tc := range cases {
		t.Run(tc.provider, func(t *testing.T) {
			cfg, err := connstr.Parse("ConnectionString='Server=h;Database=d;';Provider='" + tc.provider + "';")
			require.NoError(t, err)
			assert.Equal(t, tc.want, cfg.Engine)
			assert.Equal(t, tc.driver, cfg.Driver)
			assert.Equal(t, connstr.DefaultSchema, cfg.Schema)
		})
	}
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"empty":            "",
		"blank":            "   ",
		"no provider":      "ConnectionString='Host=h;Database=d;';",
		"unknown provider": "ConnectionString='Host=h;Database=d;';Provider='Oracle';",
		"no literal":       "Provider='PostgreSQL';",
		"unterminated":     "ConnectionString='Host=h;Database=d;Provider=PostgreSQL",
		"empty literal":    "ConnectionString='';Provider='PostgreSQL';",
		"wrong driver":     "ConnectionString='Host=h;';Provider='PostgreSQL';Driver='mysql';",
	}
	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := connstr.Parse(s)
			require.Error(t, err)
			assert.ErrorIs(t, err, connstr.ErrConfiguration)

			var cfgErr *connstr.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestParse_SchemaAndDriverOverride(t *testing.T) {
	cfg, err := connstr.Parse("ConnectionString='Host=h;Database=d;';Provider='PostgreSQL';SchemaName='hr';Driver='pgx'")
	require.NoError(t, err)
	assert.Equal(t, "hr", cfg.Schema)
	assert.Equal(t, "pgx", cfg.Driver)
}

func TestParse_EmptySchemaFallsBack(t *testing.T) {
	cfg, err := connstr.Parse("ConnectionString='Host=h;';Provider='PostgreSQL';SchemaName='';")
	require.NoError(t, err)
	assert.Equal(t, connstr.DefaultSchema, cfg.Schema)
}

func TestParseKeywords(t *testing.T) {
	opts, err := connstr.ParseKeywords("Server=tcp:db.local,1433; Initial Catalog=hr;User Id=sa;Pwd=p@ss;TrustServerCertificate=True;")
	require.NoError(t, err)
	assert.Equal(t, db.DriverOptions{
		Host:     "db.local",
		Port:     1433,
		User:     "sa",
		Password: "p@ss",
		Database: "hr",
		Extra:    map[string]string{"TrustServerCertificate": "True"},
	}, opts)
}

func TestParseKeywords_Rejects(t *testing.T) {
	for _, s := range []string{"Host", "Port=abc", "Server=h,xyz"} {
		_, err := connstr.ParseKeywords(s)
		assert.ErrorIs(t, err, connstr.ErrConfiguration, s)
	}
}

func TestDriverOptions_Passthrough(t *testing.T) {
	sqlite := connstr.Config{Engine: connstr.EngineSQLite, ConnectionString: "file:hr.db?_fk=1"}
	opts, err := sqlite.DriverOptions()
	require.NoError(t, err)
	assert.Equal(t, "file:hr.db?_fk=1", opts.Raw)

	pgURL := connstr.Config{Engine: connstr.EnginePostgres, ConnectionString: "postgres://u:p@h/d"}
	opts, err = pgURL.DriverOptions()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@h/d", opts.Raw)
}

func TestMigrateURL(t *testing.T) {
	cfg, err := connstr.Parse(postgresConfig)
	require.NoError(t, err)

	raw, err := cfg.MigrateURL()
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "127.0.0.1:5432", u.Host)
	assert.Equal(t, "/testDb", u.Path)
	assert.Equal(t, "testUser", u.User.Username())
	assert.Equal(t, "disable", u.Query().Get("sslmode"))

	sqlite := connstr.Config{Engine: connstr.EngineSQLite, ConnectionString: "hr.db"}
	raw, err = sqlite.MigrateURL()
	require.NoError(t, err)
	assert.Equal(t, "sqlite3://hr.db", raw)

	mysql := connstr.Config{Engine: connstr.EngineMySQL, ConnectionString: "Server=h;Database=d;Uid=u;Pwd=p;"}
	raw, err = mysql.MigrateURL()
	require.NoError(t, err)
	assert.Contains(t, raw, "mysql://u:p@tcp(h:3306)/d?")
	assert.Contains(t, raw, "multiStatements=true")
}

func TestEngine_String(t *testing.T) {
	assert.Equal(t, "sqlserver", connstr.EngineSQLServer.String())
	assert.Equal(t, "unknown", connstr.EngineUnknown.String())
	assert.Empty(t, connstr.EngineUnknown.DefaultDriver())
}
