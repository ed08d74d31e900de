// Package atomerr defines the typed error kinds shared across the
// scheduling core, so callers can distinguish failure categories with
// errors.Is/errors.As instead of matching on message strings.
package atomerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the categories the scheduler and
// its transports need to tell apart.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindAlreadyExists    Kind = "already_exists"
	KindInvalidState     Kind = "invalid_state"
	KindInvalidArgument  Kind = "invalid_argument"
	KindCyclicDependency Kind = "cyclic_dependency"
	KindQueueFull        Kind = "queue_full"
	KindBusyResource     Kind = "busy_resource"
	KindModelNotFound    Kind = "model_not_found"
	KindFactoryNotFound  Kind = "factory_not_found"
	KindTimeout          Kind = "timeout"
	KindCancelled        Kind = "cancelled"
	KindInternal         Kind = "internal"
	KindOutOfMemory      Kind = "out_of_memory"
	KindBackendError     Kind = "backend_error"
	KindDependencyFailed Kind = "dependency_failed"
	KindSchedulerStopped Kind = "scheduler_stopped"
	KindNotImplemented   Kind = "not_implemented"
)

// Error is a typed error carrying a Kind plus an underlying cause.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "scheduler.Submit"
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Op != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, target) report true when target is (or wraps) an
// *Error with the same Kind as e. To test an error against a bare Kind,
// use the package-level Is or KindOf below.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Kind == te.Kind
	}
	return false
}

// New constructs an *Error with the given kind, operation, and message.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap constructs an *Error that wraps an underlying cause.
func Wrap(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf extracts the Kind from err, returning KindInternal if err is not
// (or does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err's Kind matches kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
