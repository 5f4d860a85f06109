// Package tactuserr defines the closed error taxonomy primitives raise across
// the procedure boundary (spec §7). Every error crossing into the script
// layer carries a Kind so procedure scripts can catch and branch on it
// without string matching, mirroring the teacher's toolerrors.ToolError
// chain-preserving structured-error pattern.
package tactuserr

import (
	"errors"
	"fmt"
)

// Kind enumerates the taxonomy of errors a primitive can raise.
type Kind string

const (
	// KindValidation indicates inputs violated a declared schema or argument
	// constraint.
	KindValidation Kind = "ValidationError"
	// KindTool indicates a tool invocation failed.
	KindTool Kind = "ToolError"
	// KindProviderRetryable indicates a transient LLM provider failure that
	// should be retried within the configured budget.
	KindProviderRetryable Kind = "ProviderRetryable"
	// KindProviderFatal indicates a permanent LLM provider failure.
	KindProviderFatal Kind = "ProviderFatal"
	// KindTimeout indicates a wall-clock limit was hit.
	KindTimeout Kind = "Timeout"
	// KindCancelled indicates the invocation was cancelled externally or by
	// its parent.
	KindCancelled Kind = "Cancelled"
	// KindCheckpointConflict indicates a journalled value's shape disagrees
	// with the current code (a programmer error discovered on resume).
	KindCheckpointConflict Kind = "CheckpointConflict"
	// KindInternal indicates an invariant was violated; fatal to the
	// invocation.
	KindInternal Kind = "InternalError"
)

// Error is the concrete error type every primitive raises. It preserves a
// causal chain via Cause so errors.Is/As continues to work across retries
// and sub-procedure boundaries.
type Error struct {
	// Kind classifies the failure for script-visible type switches.
	Kind Kind
	// Message is the human-readable summary of the failure.
	Message string
	// Cause links to the underlying error, if any.
	Cause error
	// Retryable optionally carries a backoff hint for a ProviderRetryable
	// error. No constructor in this package sets it, and the provider
	// adapters leave it nil.
	Retryable *RetryHint
}

// RetryHint carries backoff guidance for a retryable provider failure.
type RetryHint struct {
	Attempt  int
	NextWait string
}

// New constructs an Error of the given kind with a plain message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, cause error, message string) *Error {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause to support errors.Is/As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is reports whether target shares the same Kind, so callers can compare
// with errors.Is(err, tactuserr.New(tactuserr.KindTimeout, "")) when they
// only care about the kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

// KindOf extracts the Kind from err, returning KindInternal for errors that
// are not a *Error (an invariant violation: every script-visible error must
// be constructed through this package).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Cancelled is a convenience constructor for the cooperative-cancellation
// error every suspension point raises once an invocation has been cancelled.
func Cancelled(scope string) *Error {
	return Newf(KindCancelled, "%s cancelled", scope)
}

// TimeoutErr is a convenience constructor for wall-clock timeouts.
func TimeoutErr(scope string) *Error {
	return Newf(KindTimeout, "%s timed out", scope)
}
