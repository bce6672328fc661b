package logging

import (
	"go.uber.org/zap"
)

// ConnectorLogger writes the connector's pre-formatted messages to zap.
type ConnectorLogger struct {
	l *zap.Logger
}

// NewConnectorLogger names l after the connector and adapts it. A nil l
// discards everything.
func NewConnectorLogger(l *zap.Logger, name string) *ConnectorLogger {
	if l == nil {
		l = zap.NewNop()
	}
	if name != "" {
		l = l.Named(name)
	}
	// The adapter adds one frame between the connector and zap.
	return &ConnectorLogger{l: l.WithOptions(zap.AddCallerSkip(1))}
}

func (c *ConnectorLogger) Debug(message string) { c.l.Debug(message) }
func (c *ConnectorLogger) Warn(message string)  { c.l.Warn(message) }
func (c *ConnectorLogger) Error(message string) { c.l.Error(message) }

// Zap returns the wrapped logger.
func (c *ConnectorLogger) Zap() *zap.Logger { return c.l }

// Sync flushes buffered entries.
func (c *ConnectorLogger) Sync() error { return c.l.Sync() }
