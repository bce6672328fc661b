package connector

import (
	"time"

	"github.com/Skryldev/sql-connector/db"
)

// Logger is the leveled text sink the connector writes to. Messages arrive
// fully formatted, prefixed with the call's trace id.
type Logger interface {
	Debug(message string)
	Warn(message string)
	Error(message string)
}

// OperationObserver is told about every finished business operation.
type OperationObserver interface {
	ObserveOperation(name string, d time.Duration, err error)
}

// Option configures a Connector.
type Option func(*Connector)

// WithDBConfig sets pool sizes, the default statement timeout and hooks.
func WithDBConfig(cfg db.Config) Option {
	return func(c *Connector) { c.dbCfg = cfg }
}

// WithRetry retries write transactions on transient errors. The default is
// a single attempt.
func WithRetry(cfg db.RetryConfig) Option {
	return func(c *Connector) { c.retry = cfg }
}

// WithObserver reports operation durations and outcomes to o.
func WithObserver(o OperationObserver) Option {
	return func(c *Connector) { c.observer = o }
}

// WithAutoMigrate applies the embedded schema migrations during StartUp.
func WithAutoMigrate() Option {
	return func(c *Connector) { c.autoMigrate = true }
}

// WithTraceIDs replaces the trace id generator. Tests use it to get
// predictable log lines.
func WithTraceIDs(next func() string) Option {
	return func(c *Connector) { c.newTraceID = next }
}
