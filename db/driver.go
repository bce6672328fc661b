// Pluggable driver adapters. Each adapter knows how to turn structured
// connection options into its native DSN, which dialect its SQL speaks and
// how to translate its errors.

package db

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-sql-driver/mysql"

	// database/sql drivers self-register on import.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/microsoft/go-mssqldb"
)

// ─────────────────────────────────────────────────────────────────────────────
// Driver interface
// ─────────────────────────────────────────────────────────────────────────────

// Driver encapsulates database-specific behaviour:
//   - building a DSN from structured options
//   - providing the SQL dialect for a schema
//   - providing a driver-specific ErrorMapper
type Driver interface {
	// Name returns the name passed to sql.Register, e.g. "pgx", "sqlserver".
	Name() string

	// DSN converts structured options into a driver DSN string.
	DSN(opts DriverOptions) (string, error)

	// Dialect returns the SQL dialect, qualifying tables with schema where
	// the engine supports it.
	Dialect(schema string) Dialect

	// ErrorMapper returns a mapper tuned to this driver's error types.
	ErrorMapper() ErrorMapper
}

// DriverOptions carries the most common connection parameters in a structured,
// driver-agnostic form. DSN() converts them to the driver's native format.
type DriverOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "disable", "require", "verify-full", etc.
	// Extra holds driver-specific key/value parameters.
	Extra map[string]string
	// Raw, when set, is used verbatim as the DSN (URLs, SQLite paths).
	Raw string
}

// ─────────────────────────────────────────────────────────────────────────────
// Driver registry
// ─────────────────────────────────────────────────────────────────────────────

var (
	driversMu sync.RWMutex
	drivers   = map[string]Driver{
		PostgresDriver{}.Name():  PostgresDriver{},
		PgxDriver{}.Name():       PgxDriver{},
		SQLServerDriver{}.Name(): SQLServerDriver{},
		MySQLDriver{}.Name():     MySQLDriver{},
		SQLiteDriver{}.Name():    SQLiteDriver{},
	}
)

// RegisterDriver adds a Driver to the global registry.
// Panics if a driver with the same name is already registered.
func RegisterDriver(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, ok := drivers[d.Name()]; ok {
		panic(fmt.Sprintf("sqlconnector/db: driver %q already registered", d.Name()))
	}
	drivers[d.Name()] = d
}

// LookupDriver returns the registered Driver by name or an error.
func LookupDriver(name string) (Driver, error) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("sqlconnector/db: driver %q not registered", name)
	}
	return d, nil
}

// OpenWithDriver opens a DB using a registered Driver and structured options.
//
//	database, err := db.OpenWithDriver("sqlserver", db.DriverOptions{
//	    Host: "127.0.0.1", Port: 1433,
//	    User: "sa", Password: "secret", Database: "testDb",
//	}, db.Config{MaxOpenConns: 10})
func OpenWithDriver(driverName string, driverOpts DriverOptions, cfg Config) (*DB, error) {
	drv, err := LookupDriver(driverName)
	if err != nil {
		return nil, err
	}

	dsn, err := drv.DSN(driverOpts)
	if err != nil {
		return nil, fmt.Errorf("sqlconnector/db: DSN construction failed: %w", err)
	}

	cfg.DriverName = drv.Name()
	cfg.DSN = dsn

	database, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	// Driver codes first; the default mapper covers no-rows and context errors.
	database.SetErrorMapper(ChainMapper(drv.ErrorMapper(), DefaultErrorMapper()))
	return database, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// PostgreSQL driver adapters (lib/pq, pgx)
// ─────────────────────────────────────────────────────────────────────────────

// PostgresDriver is the lib/pq adapter.
type PostgresDriver struct{}

func (PostgresDriver) Name() string { return "postgres" }

func (PostgresDriver) DSN(o DriverOptions) (string, error) {
	if o.Raw != "" {
		return o.Raw, nil
	}
	if o.Host == "" || o.Database == "" {
		return "", fmt.Errorf("postgres driver: Host and Database are required")
	}
	port := o.Port
	if port == 0 {
		port = 5432
	}
	sslMode := o.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	pairs := []string{
		"host=" + pgQuote(o.Host),
		"port=" + strconv.Itoa(port),
		"user=" + pgQuote(o.User),
		"password=" + pgQuote(o.Password),
		"dbname=" + pgQuote(o.Database),
		"sslmode=" + pgQuote(sslMode),
	}
	for _, k := range sortedKeys(o.Extra) {
		if param, ok := pgParam(k); ok {
			pairs = append(pairs, param+"="+pgQuote(o.Extra[k]))
		}
	}
	return strings.Join(pairs, " "), nil
}

// pgParam maps a keyword (libpq or Npgsql spelling) to the libpq parameter
// name. Unknown keywords are dropped: the server rejects runtime parameters
// it does not recognise, and Npgsql-only settings such as Pooling have no
// libpq counterpart.
func pgParam(k string) (string, bool) {
	switch strings.ToLower(strings.ReplaceAll(k, " ", "")) {
	case "connect_timeout", "timeout":
		return "connect_timeout", true
	case "application_name", "applicationname":
		return "application_name", true
	case "search_path", "searchpath":
		return "search_path", true
	case "sslcert", "sslkey", "sslrootcert", "timezone":
		return strings.ToLower(k), true
	}
	return "", false
}

func (PostgresDriver) Dialect(schema string) Dialect { return PostgresDialect{Schema: schema} }
func (PostgresDriver) ErrorMapper() ErrorMapper      { return driverMapper(mapSQLStateError) }

// PgxDriver is the jackc/pgx stdlib adapter. It accepts the same keyword
// DSN as lib/pq.
type PgxDriver struct{}

func (PgxDriver) Name() string                        { return "pgx" }
func (PgxDriver) DSN(o DriverOptions) (string, error) { return PostgresDriver{}.DSN(o) }
func (PgxDriver) Dialect(schema string) Dialect       { return PostgresDialect{Schema: schema} }
func (PgxDriver) ErrorMapper() ErrorMapper            { return driverMapper(mapSQLStateError) }

// pgQuote single-quotes a keyword/value DSN value when it needs it.
func pgQuote(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// ─────────────────────────────────────────────────────────────────────────────
// SQL Server driver adapter (go-mssqldb)
// ─────────────────────────────────────────────────────────────────────────────

// SQLServerDriver is the microsoft/go-mssqldb adapter.
type SQLServerDriver struct{}

func (SQLServerDriver) Name() string { return "sqlserver" }

func (SQLServerDriver) DSN(o DriverOptions) (string, error) {
	if o.Raw != "" {
		return o.Raw, nil
	}
	if o.Host == "" {
		return "", fmt.Errorf("sqlserver driver: Host is required")
	}
	host, instance, _ := strings.Cut(o.Host, `\`)
	if o.Port > 0 {
		host = net.JoinHostPort(host, strconv.Itoa(o.Port))
	}

	u := &url.URL{Scheme: "sqlserver", Host: host}
	if o.User != "" {
		u.User = url.UserPassword(o.User, o.Password)
	}
	if instance != "" {
		u.Path = "/" + instance
	}

	q := url.Values{}
	if o.Database != "" {
		q.Set("database", o.Database)
	}
	for _, k := range sortedKeys(o.Extra) {
		q.Set(strings.ToLower(k), o.Extra[k])
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (SQLServerDriver) Dialect(schema string) Dialect { return SQLServerDialect{Schema: schema} }
func (SQLServerDriver) ErrorMapper() ErrorMapper      { return driverMapper(mapMSSQLError) }

// ─────────────────────────────────────────────────────────────────────────────
// MySQL driver adapter
// ─────────────────────────────────────────────────────────────────────────────

// MySQLDriver is the go-sql-driver/mysql adapter.
type MySQLDriver struct{}

func (MySQLDriver) Name() string { return "mysql" }

func (MySQLDriver) DSN(o DriverOptions) (string, error) {
	if o.Raw != "" {
		return o.Raw, nil
	}
	if o.Host == "" || o.Database == "" {
		return "", fmt.Errorf("mysql driver: Host and Database are required")
	}
	port := o.Port
	if port == 0 {
		port = 3306
	}
	cfg := mysql.NewConfig()
	cfg.User = o.User
	cfg.Passwd = o.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(o.Host, strconv.Itoa(port))
	cfg.DBName = o.Database
	cfg.ParseTime = true
	// RowsAffected must count matched rows for partial updates.
	cfg.ClientFoundRows = true
	if len(o.Extra) > 0 {
		cfg.Params = make(map[string]string, len(o.Extra))
		for k, v := range o.Extra {
			cfg.Params[k] = v
		}
	}
	return cfg.FormatDSN(), nil
}

func (MySQLDriver) Dialect(string) Dialect   { return MySQLDialect{} }
func (MySQLDriver) ErrorMapper() ErrorMapper { return driverMapper(mapMySQLError) }

// ─────────────────────────────────────────────────────────────────────────────
// SQLite driver adapter
// ─────────────────────────────────────────────────────────────────────────────

// SQLiteDriver is the mattn/go-sqlite3 adapter, used for local runs and tests.
type SQLiteDriver struct{}

func (SQLiteDriver) Name() string { return "sqlite3" }

func (SQLiteDriver) DSN(o DriverOptions) (string, error) {
	if o.Raw != "" {
		return o.Raw, nil
	}
	if o.Database == "" {
		return "", fmt.Errorf("sqlite3 driver: Database (file path) is required")
	}
	if len(o.Extra) == 0 {
		return o.Database, nil
	}
	q := url.Values{}
	for k, v := range o.Extra {
		q.Set(k, v)
	}
	return o.Database + "?" + q.Encode(), nil
}

func (SQLiteDriver) Dialect(string) Dialect   { return SQLiteDialect{} }
func (SQLiteDriver) ErrorMapper() ErrorMapper { return driverMapper(mapSQLiteError) }

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
