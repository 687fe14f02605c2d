// Package errors defines the failure taxonomy shared by every removal component.
//
// Only ExecutionFailure and PartialFailure are ever returned as errors.
// ResolutionFailure and ConfirmationDeclined exist so callers can classify log
// entries and summaries, but they surface as warnings, never as errors.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	KindResolutionFailure    Kind = "RESOLUTION_FAILURE"
	KindExecutionFailure     Kind = "EXECUTION_FAILURE"
	KindConfirmationDeclined Kind = "CONFIRMATION_DECLINED"
	KindPartialFailure       Kind = "PARTIAL_FAILURE"
)

// Error is the application error carried through the removal pipeline.
type Error struct {
	Kind    Kind
	Target  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	prefix := string(e.Kind)
	if e.Target != "" {
		prefix = fmt.Sprintf("%s [%s]", e.Kind, e.Target)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewExecutionFailure wraps the error raised by a gated operation.
func NewExecutionFailure(description string, err error) *Error {
	return &Error{
		Kind:    KindExecutionFailure,
		Message: description,
		Err:     err,
	}
}

// NewPartialFailure reports that failed of total units did not complete for target.
// err normally aggregates the individual failures.
func NewPartialFailure(target string, failed, total int, err error) *Error {
	return &Error{
		Kind:    KindPartialFailure,
		Target:  target,
		Message: fmt.Sprintf("%d of %d removal steps failed", failed, total),
		Err:     err,
	}
}

// NewResolutionFailure describes a target that resolved to nothing.
func NewResolutionFailure(target string) *Error {
	return &Error{
		Kind:    KindResolutionFailure,
		Target:  target,
		Message: "no match",
	}
}

// IsKind reports whether any error in err's chain is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var appErr *Error
	for err != nil {
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Kind == k {
			return true
		}
		err = appErr.Err
	}
	return false
}

// IsExecutionFailure checks if the error is an execution failure
func IsExecutionFailure(err error) bool {
	return IsKind(err, KindExecutionFailure)
}

// IsPartialFailure checks if the error is a partial failure
func IsPartialFailure(err error) bool {
	return IsKind(err, KindPartialFailure)
}
