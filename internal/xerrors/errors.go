// Package xerrors provides typed error handling for the chgo client.
//
// This package defines domain-specific error types that enable better error
// classification, exit-code mapping, and diagnostic messages. All errors
// support the standard errors.Is() and errors.As() functions for error
// inspection.
package xerrors

import (
	"errors"
	"fmt"
)

// Kind represents the category of a session error, matching the error
// taxonomy of the session protocol: environment-fatal, spawn-fatal,
// session-fatal and server-terminal conditions are each a distinct Kind so
// callers can decide how to report (or not report) them, and KindInternal
// marks defects in chgo itself. A server-issued exit directive is not an
// error and has no Kind.
type Kind int

const (
	// KindEnvironment indicates a bad path, insecure socket directory, loop
	// marker, or other environment-derived fatal condition.
	KindEnvironment Kind = iota
	// KindSpawn indicates a fork, exec, or server-startup failure.
	KindSpawn
	// KindSession indicates a connect timeout, unknown instruction, or
	// excessive redirection within one invocation.
	KindSession
	// KindServerExit indicates the server process itself exited; this is
	// not a diagnostic-worthy error, just a propagated exit code.
	KindServerExit
	// KindInternal indicates a defect in chgo itself.
	KindInternal
)

// String returns a human-readable name for the error kind.
func (k Kind) String() string {
	switch k {
	case KindEnvironment:
		return "environment error"
	case KindSpawn:
		return "spawn error"
	case KindSession:
		return "session error"
	case KindServerExit:
		return "server exit"
	case KindInternal:
		return "internal error"
	default:
		return "unknown error"
	}
}

// SessionError represents an error encountered while locating, spawning, or
// talking to the command server.
type SessionError struct {
	// Op is the operation that failed (e.g. "resolve socket", "spawn", "validate").
	Op string
	// Kind classifies the error for exit-code mapping.
	Kind Kind
	// Detail gives additional human-readable context.
	Detail string
	// Err is the underlying error, if any.
	Err error
	// ExitCode is set for KindServerExit: the code chgo should itself exit with.
	ExitCode int
}

// Error returns the error message.
func (e *SessionError) Error() string {
	if e == nil {
		return "<nil>"
	}

	var msg string
	if e.Op != "" {
		msg = fmt.Sprintf("%s: ", e.Op)
	}
	if e.Detail != "" {
		msg += e.Detail
	} else {
		msg += e.Kind.String()
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *SessionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether the error matches the target. It matches if the
// target is a *SessionError with the same Kind, or if the underlying error
// matches.
func (e *SessionError) Is(target error) bool {
	if e == nil {
		return target == nil
	}
	t, ok := target.(*SessionError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New creates a new SessionError with the given kind.
func New(kind Kind, op, detail string) *SessionError {
	return &SessionError{Op: op, Kind: kind, Detail: detail}
}

// Wrap wraps an error with operation context.
func Wrap(err error, kind Kind, op string) *SessionError {
	return &SessionError{Op: op, Err: err, Kind: kind}
}

// WrapWithDetail wraps an error with additional detail.
func WrapWithDetail(err error, kind Kind, op, detail string) *SessionError {
	return &SessionError{Op: op, Err: err, Kind: kind, Detail: detail}
}

// IsKind reports whether err is a *SessionError of the given kind.
func IsKind(err error, kind Kind) bool {
	var serr *SessionError
	if errors.As(err, &serr) {
		return serr.Kind == kind
	}
	return false
}

// GetKind returns the error kind if err is a *SessionError.
func GetKind(err error) (Kind, bool) {
	var serr *SessionError
	if errors.As(err, &serr) {
		return serr.Kind, true
	}
	return 0, false
}

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)
