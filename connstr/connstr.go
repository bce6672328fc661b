// Package connstr parses the configuration string the orchestrator hands to
// the connector at start-up:
//
//	ConnectionString='Host=127.0.0.1;Port=5432;Database=testDb;Username=u;Password=p;';Provider='PostgreSQL.9.5';SchemaName='AvanpostIntegrationTestTaskSchema';
//
// The string carries an engine marker somewhere in its text, the literal
// driver connection string between fixed delimiters, and optional
// SchemaName and Driver entries in the same quoted form.
package connstr

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/Skryldev/sql-connector/db"
)

// DefaultSchema is the schema the HR tables live in unless SchemaName says
// otherwise.
const DefaultSchema = "AvanpostIntegrationTestTaskSchema"

const (
	keyConnectionString = "ConnectionString"
	keySchemaName       = "SchemaName"
	keyDriver           = "Driver"

	valueOpen  = "='"
	valueClose = "';"
)

// ErrConfiguration is the sentinel behind every parse failure.
var ErrConfiguration = errors.New("connstr: invalid configuration string")

// ConfigError describes why a configuration string was rejected.
type ConfigError struct {
	Reason string
	Cause  error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", ErrConfiguration, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", ErrConfiguration, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }
func (e *ConfigError) Unwrap() error        { return e.Cause }

func configErr(format string, args ...any) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// ─────────────────────────────────────────────────────────────────────────────
// Engine
// ─────────────────────────────────────────────────────────────────────────────

// Engine identifies the database product behind the connection string.
type Engine int

const (
	EngineUnknown Engine = iota
	EngineSQLServer
	EnginePostgres
	EngineMySQL
	EngineSQLite
)

// engineMarkers are matched case-insensitively, in order, anywhere in the
// configuration string.
var engineMarkers = []struct {
	marker string
	engine Engine
}{
	{"SqlServer", EngineSQLServer},
	{"PostgreSql", EnginePostgres},
	{"MySql", EngineMySQL},
	{"Sqlite", EngineSQLite},
}

func (e Engine) String() string {
	switch e {
	case EngineSQLServer:
		return "sqlserver"
	case EnginePostgres:
		return "postgres"
	case EngineMySQL:
		return "mysql"
	case EngineSQLite:
		return "sqlite"
	}
	return "unknown"
}

// DefaultDriver is the database/sql driver used for the engine unless the
// configuration string names another.
func (e Engine) DefaultDriver() string {
	switch e {
	case EngineSQLServer:
		return "sqlserver"
	case EnginePostgres:
		return "postgres"
	case EngineMySQL:
		return "mysql"
	case EngineSQLite:
		return "sqlite3"
	}
	return ""
}

// DetectEngine finds the engine marker in s.
func DetectEngine(s string) Engine {
	lower := strings.ToLower(s)
	for _, m := range engineMarkers {
		if strings.Contains(lower, strings.ToLower(m.marker)) {
			return m.engine
		}
	}
	return EngineUnknown
}

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is a parsed configuration string.
type Config struct {
	Engine Engine
	// ConnectionString is the literal driver connection string.
	ConnectionString string
	Schema           string
	// Driver is the database/sql driver name to open the engine with.
	Driver string
}

// Parse validates s and splits it into its parts.
func Parse(s string) (Config, error) {
	if strings.TrimSpace(s) == "" {
		return Config{}, configErr("configuration string is empty")
	}

	engine := DetectEngine(s)
	if engine == EngineUnknown {
		return Config{}, configErr("unknown database provider")
	}

	literal, ok, err := extract(s, keyConnectionString, true)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Config{}, configErr("%s='...'; is missing", keyConnectionString)
	}
	if strings.TrimSpace(literal) == "" {
		return Config{}, configErr("%s is empty", keyConnectionString)
	}

	cfg := Config{
		Engine:           engine,
		ConnectionString: literal,
		Schema:           DefaultSchema,
		Driver:           engine.DefaultDriver(),
	}

	if schema, ok, err := extract(s, keySchemaName, false); err != nil {
		return Config{}, err
	} else if ok && schema != "" {
		cfg.Schema = schema
	}

	if driver, ok, err := extract(s, keyDriver, false); err != nil {
		return Config{}, err
	} else if ok {
		if !driverAllowed(engine, driver) {
			return Config{}, configErr("driver %q cannot serve %s", driver, engine)
		}
		cfg.Driver = driver
	}

	return cfg, nil
}

func driverAllowed(e Engine, driver string) bool {
	if e == EnginePostgres {
		return driver == "postgres" || driver == "pgx"
	}
	return driver == e.DefaultDriver()
}

// extract returns the value of key='value'; in s. The closing delimiter is
// the first "';" after the opening one; for optional keys a value closed by
// a bare quote at the very end of s is accepted as well.
func extract(s, key string, strict bool) (string, bool, error) {
	open := key + valueOpen
	start := strings.Index(s, open)
	if start < 0 {
		return "", false, nil
	}
	start += len(open)

	end := strings.Index(s[start:], valueClose)
	if end >= 0 {
		return s[start : start+end], true, nil
	}
	if !strict && strings.HasSuffix(s, "'") && len(s)-1 >= start {
		return s[start : len(s)-1], true, nil
	}
	return "", false, configErr("%s value is not terminated with %q", key, valueClose)
}

// ─────────────────────────────────────────────────────────────────────────────
// Keyword literals
// ─────────────────────────────────────────────────────────────────────────────

// DriverOptions converts the literal connection string into structured
// options. ADO.NET style "Key=Value;" lists are decoded; URLs and SQLite
// paths are passed through as Raw.
func (c Config) DriverOptions() (db.DriverOptions, error) {
	if c.Engine == EngineSQLite || strings.Contains(c.ConnectionString, "://") {
		return db.DriverOptions{Raw: c.ConnectionString}, nil
	}
	return ParseKeywords(c.ConnectionString)
}

// ParseKeywords decodes an ADO.NET style keyword list such as
// "Server=127.0.0.1,1433;Database=testDb;User Id=sa;Password=p;".
func ParseKeywords(literal string) (db.DriverOptions, error) {
	var opts db.DriverOptions
	for _, part := range strings.Split(literal, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		rawKey, value, ok := strings.Cut(part, "=")
		if !ok {
			return db.DriverOptions{}, configErr("connection string entry %q has no value", part)
		}
		rawKey = strings.TrimSpace(rawKey)
		value = strings.TrimSpace(value)

		switch normalizeKey(rawKey) {
		case "host", "server", "datasource", "address", "addr":
			host, port, err := splitHostPort(value)
			if err != nil {
				return db.DriverOptions{}, err
			}
			opts.Host = host
			if port > 0 {
				opts.Port = port
			}
		case "port":
			port, err := strconv.Atoi(value)
			if err != nil || port <= 0 {
				return db.DriverOptions{}, &ConfigError{Reason: fmt.Sprintf("invalid port %q", value), Cause: err}
			}
			opts.Port = port
		case "database", "initialcatalog", "dbname":
			opts.Database = value
		case "username", "userid", "user", "uid":
			opts.User = value
		case "password", "pwd":
			opts.Password = value
		case "sslmode":
			opts.SSLMode = strings.ToLower(value)
		default:
			if opts.Extra == nil {
				opts.Extra = make(map[string]string)
			}
			opts.Extra[rawKey] = value
		}
	}
	return opts, nil
}

func normalizeKey(k string) string {
	k = strings.ToLower(k)
	k = strings.ReplaceAll(k, " ", "")
	return strings.ReplaceAll(k, "_", "")
}

// splitHostPort understands "host", "tcp:host,1433" and "host,1433".
func splitHostPort(v string) (string, int, error) {
	v = strings.TrimPrefix(v, "tcp:")
	host, portStr, ok := strings.Cut(v, ",")
	if !ok {
		return host, 0, nil
	}
	port, err := strconv.Atoi(strings.TrimSpace(portStr))
	if err != nil {
		return "", 0, &ConfigError{Reason: fmt.Sprintf("invalid port in %q", v), Cause: err}
	}
	return strings.TrimSpace(host), port, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Migration URLs
// ─────────────────────────────────────────────────────────────────────────────

// MigrateURL renders the connection as a golang-migrate database URL.
func (c Config) MigrateURL() (string, error) {
	opts, err := c.DriverOptions()
	if err != nil {
		return "", err
	}

	switch c.Engine {
	case EngineSQLite:
		return "sqlite3://" + opts.Raw, nil
	case EnginePostgres:
		if opts.Raw != "" {
			return opts.Raw, nil
		}
		port := opts.Port
		if port == 0 {
			port = 5432
		}
		sslMode := opts.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		u := &url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(opts.User, opts.Password),
			Host:     net.JoinHostPort(opts.Host, strconv.Itoa(port)),
			Path:     "/" + opts.Database,
			RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
		}
		return u.String(), nil
	case EngineSQLServer:
		return db.SQLServerDriver{}.DSN(opts)
	case EngineMySQL:
		if opts.Raw != "" {
			return opts.Raw, nil
		}
		if opts.Extra == nil {
			opts.Extra = make(map[string]string)
		}
		opts.Extra["multiStatements"] = "true"
		dsn, err := db.MySQLDriver{}.DSN(opts)
		if err != nil {
			return "", err
		}
		return "mysql://" + dsn, nil
	}
	return "", configErr("unknown database provider")
}
