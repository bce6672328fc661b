package connector

import (
	"errors"
	"fmt"
)

// Sentinel errors. Match with errors.Is; the concrete error returned by the
// connector is a *ComponentError carrying the trace id and the cause.
var (
	ErrAlreadyRegistered   = errors.New("connector: user already registered")
	ErrNotRegistered       = errors.New("connector: user not registered")
	ErrTransaction         = errors.New("connector: transaction failed")
	ErrUpdate              = errors.New("connector: update failed")
	ErrInvalidPermissionID = errors.New("connector: invalid permission id")
	ErrUnknownCategory     = errors.New("connector: unknown permission category")
	ErrStorage             = errors.New("connector: storage unavailable")
	ErrLoggerRequired      = errors.New("connector: logger is required")
	ErrNotStarted          = errors.New("connector: StartUp has not been called")
)

// ComponentError is the error every business operation reports. Reason is
// meant for humans; Cause keeps the driver level error for diagnostics.
type ComponentError struct {
	Sentinel error
	Reason   string
	TraceID  string
	Cause    error
}

func (e *ComponentError) Error() string {
	msg := e.Sentinel.Error()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.TraceID != "" {
		msg += " (trace " + e.TraceID + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ComponentError) Is(target error) bool { return e.Sentinel == target }
func (e *ComponentError) Unwrap() error        { return e.Cause }

func newError(sentinel error, traceID string, cause error, format string, args ...any) *ComponentError {
	return &ComponentError{
		Sentinel: sentinel,
		Reason:   fmt.Sprintf(format, args...),
		TraceID:  traceID,
		Cause:    cause,
	}
}

// IsAlreadyRegistered reports whether err is an already-registered error.
func IsAlreadyRegistered(err error) bool { return errors.Is(err, ErrAlreadyRegistered) }

// IsNotRegistered reports whether err is a not-registered error.
func IsNotRegistered(err error) bool { return errors.Is(err, ErrNotRegistered) }
