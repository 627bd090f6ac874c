package lifecycle

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a rejected operation.
type Kind string

const (
	KindInvalidTransition   Kind = "invalid_transition"
	KindGateCriteriaNotMet  Kind = "gate_criteria_not_met"
	KindMissingPhaseData    Kind = "missing_phase_data"
	KindMissingPhaseNotes   Kind = "missing_phase_notes"
	KindPathAlreadyAssigned Kind = "path_already_assigned"
	KindInvalidInput        Kind = "invalid_input"
	KindNotFound            Kind = "not_found"
	KindConcurrentUpdate    Kind = "concurrent_update"
	KindStorageUnavailable  Kind = "storage_unavailable"
)

// Error is returned for every user-correctable rejection and for storage
// failures. Detail carries the offending criterion or field ids.
type Error struct {
	Kind    Kind
	Message string
	Detail  []string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = strings.ReplaceAll(string(e.Kind), "_", " ")
	}
	if len(e.Detail) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, strings.Join(e.Detail, ", "))
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the caller may retry the same input later.
func (e *Error) Retryable() bool {
	return e.Kind == KindStorageUnavailable || e.Kind == KindConcurrentUpdate
}

func newError(kind Kind, msg string, detail ...string) *Error {
	return &Error{Kind: kind, Message: msg, Detail: detail}
}

// Errorf builds an Error of the given kind.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// StorageError wraps a collaborator failure.
func StorageError(op string, err error) *Error {
	return &Error{Kind: KindStorageUnavailable, Message: op, Err: err}
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return ""
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
