package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileLogger appends one line per message to a flat file:
//
//	2026-01-02 15:04:05:DEBUG:connector:TraceId: ... . message
//
// There is no rotation. It exists for CLI runs and tests.
type FileLogger struct {
	*ConnectorLogger
	close func()
}

// NewFileLogger opens path for appending, creating it if needed.
func NewFileLogger(path, connectorName string) (*FileLogger, error) {
	sink, closeFn, err := zap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("logging: open %s: %w", path, err)
	}

	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		NameKey:          "logger",
		MessageKey:       "message",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeTime:       zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeName:       zapcore.FullNameEncoder,
		ConsoleSeparator: ":",
	})
	core := zapcore.NewCore(enc, sink, zapcore.DebugLevel)

	return &FileLogger{
		ConnectorLogger: NewConnectorLogger(zap.New(core), connectorName),
		close:           closeFn,
	}, nil
}

// Close flushes and closes the file.
func (f *FileLogger) Close() error {
	err := f.Sync()
	f.close()
	return err
}
