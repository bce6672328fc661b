package db

import (
	"strconv"
	"strings"
)

// Dialect captures the SQL differences the repositories care about:
// identifier quoting, schema qualification and bind-parameter syntax.
type Dialect interface {
	// Name is a short identifier such as "postgres" or "sqlserver".
	Name() string
	// Ident quotes a single identifier.
	Ident(name string) string
	// Table returns the schema-qualified, quoted table name.
	Table(name string) string
	// Placeholder returns the bind parameter for the n-th argument (1-based).
	Placeholder(n int) string
}

// Placeholders returns count comma-separated placeholders starting at from.
func Placeholders(d Dialect, from, count int) string {
	parts := make([]string, count)
	for i := range parts {
		parts[i] = d.Placeholder(from + i)
	}
	return strings.Join(parts, ", ")
}

// ─────────────────────────────────────────────────────────────────────────────
// PostgreSQL
// ─────────────────────────────────────────────────────────────────────────────

// PostgresDialect quotes with double quotes and binds with $n.
type PostgresDialect struct{ Schema string }

func (PostgresDialect) Name() string               { return "postgres" }
func (PostgresDialect) Ident(name string) string   { return quoteWith(name, `"`, `"`) }
func (PostgresDialect) Placeholder(n int) string   { return "$" + strconv.Itoa(n) }
func (d PostgresDialect) Table(name string) string { return qualify(d, d.Schema, name) }

// ─────────────────────────────────────────────────────────────────────────────
// SQL Server
// ─────────────────────────────────────────────────────────────────────────────

// SQLServerDialect quotes with brackets and binds with @pN, the positional
// naming go-mssqldb assigns to unnamed arguments.
type SQLServerDialect struct{ Schema string }

func (SQLServerDialect) Name() string               { return "sqlserver" }
func (SQLServerDialect) Ident(name string) string   { return quoteWith(name, "[", "]") }
func (SQLServerDialect) Placeholder(n int) string   { return "@p" + strconv.Itoa(n) }
func (d SQLServerDialect) Table(name string) string { return qualify(d, d.Schema, name) }

// ─────────────────────────────────────────────────────────────────────────────
// MySQL
// ─────────────────────────────────────────────────────────────────────────────

// MySQLDialect quotes with backticks and binds with ?. A MySQL schema is a
// database, so tables are left unqualified and resolve in the connected one.
type MySQLDialect struct{}

func (MySQLDialect) Name() string             { return "mysql" }
func (MySQLDialect) Ident(name string) string { return quoteWith(name, "`", "`") }
func (MySQLDialect) Placeholder(int) string   { return "?" }
func (d MySQLDialect) Table(name string) string {
	return d.Ident(name)
}

// ─────────────────────────────────────────────────────────────────────────────
// SQLite
// ─────────────────────────────────────────────────────────────────────────────

// SQLiteDialect has no schemas; tables are unqualified.
type SQLiteDialect struct{}

func (SQLiteDialect) Name() string             { return "sqlite" }
func (SQLiteDialect) Ident(name string) string { return quoteWith(name, `"`, `"`) }
func (SQLiteDialect) Placeholder(int) string   { return "?" }
func (d SQLiteDialect) Table(name string) string {
	return d.Ident(name)
}

func quoteWith(name, open, close string) string {
	return open + strings.ReplaceAll(name, close, close+close) + close
}

func qualify(d Dialect, schema, name string) string {
	if schema == "" {
		return d.Ident(name)
	}
	return d.Ident(schema) + "." + d.Ident(name)
}
