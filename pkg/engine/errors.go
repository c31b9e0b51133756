package engine

import (
	"errors"
	"fmt"
)

// ErrorClass partitions engine-level faults by the remediation they need.
// Ordinary task failure is an Outcome, not an error, and has no class here.
type ErrorClass string

const (
	// ErrorClassConfig covers malformed descriptors, unsupported kinds, and
	// policy denials: detected before any spawn, never retried.
	ErrorClassConfig ErrorClass = "config"

	// ErrorClassState covers an unreadable state artifact. Fatal to the whole
	// run; the engine refuses to guess and requires an explicit reset.
	ErrorClassState ErrorClass = "state"

	// ErrorClassSpawn covers an executable that could not be started at all,
	// as opposed to a tool that ran and reported failure.
	ErrorClassSpawn ErrorClass = "spawn"

	// ErrorClassCanceled covers operator-initiated interrupts. The in-flight
	// child process is terminated before this propagates.
	ErrorClassCanceled ErrorClass = "canceled"

	// ErrorClassInternal covers engine faults such as an unopenable log sink.
	ErrorClassInternal ErrorClass = "internal"
)

// Error is a classified engine error with optional task context.
type Error struct {
	// Class drives the caller's remediation and the process exit code.
	Class ErrorClass `json:"class"`

	// Message is the human-readable description.
	Message string `json:"message"`

	// Code is an optional machine-readable code.
	Code string `json:"code,omitempty"`

	// Task is the task ID the error is scoped to, if any.
	Task string `json:"task,omitempty"`

	// Err is the underlying cause.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Task != "" {
		msg = fmt.Sprintf("[%s] %s (task=%s)", e.Class, e.Message, e.Task)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on class and code so callers can compare against sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" && e.Code != t.Code {
		return false
	}
	return e.Class == t.Class
}

// WithTask adds task context to the error.
func (e *Error) WithTask(id string) *Error {
	e.Task = id
	return e
}

// WithCode adds a machine-readable code to the error.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// NewConfigError creates a configuration-class error.
func NewConfigError(message string, err error) *Error {
	return &Error{Class: ErrorClassConfig, Message: message, Err: err}
}

// NewStateError creates a state-corruption-class error.
func NewStateError(message string, err error) *Error {
	return &Error{Class: ErrorClassState, Message: message, Err: err}
}

// NewSpawnError creates a spawn-failure-class error.
func NewSpawnError(message string, err error) *Error {
	return &Error{Class: ErrorClassSpawn, Message: message, Err: err}
}

// NewCanceledError creates a cancellation-class error.
func NewCanceledError(message string, err error) *Error {
	return &Error{Class: ErrorClassCanceled, Message: message, Err: err}
}

// NewInternalError creates an internal-class error.
func NewInternalError(message string, err error) *Error {
	return &Error{Class: ErrorClassInternal, Message: message, Err: err}
}

func hasClass(err error, class ErrorClass) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == class
	}
	return false
}

// IsConfig reports whether the error is configuration-class.
func IsConfig(err error) bool { return hasClass(err, ErrorClassConfig) }

// IsState reports whether the error is state-corruption-class.
func IsState(err error) bool { return hasClass(err, ErrorClassState) }

// IsSpawn reports whether the error is spawn-failure-class.
func IsSpawn(err error) bool { return hasClass(err, ErrorClassSpawn) }

// IsCanceled reports whether the error is cancellation-class.
func IsCanceled(err error) bool { return hasClass(err, ErrorClassCanceled) }

// Common error codes.
const (
	CodeInvalidDescriptor = "INVALID_DESCRIPTOR"
	CodeUnsupportedKind   = "UNSUPPORTED_KIND"
	CodeStateCorrupt      = "STATE_CORRUPT"
	CodePolicyDenied      = "POLICY_DENIED"
	CodeSpawnFailed       = "SPAWN_FAILED"
	CodeInterrupted       = "INTERRUPTED"
)
