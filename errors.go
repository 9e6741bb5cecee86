package couchmcp

import (
	"errors"
	"fmt"
)

// Kind classifies a dispatch failure. The calling agent reacts to the kind
// programmatically, so the set is fixed and every error the dispatcher
// returns carries exactly one of them.
type Kind string

const (
	// KindUnknownOperation: the operation name is not in the tool set.
	KindUnknownOperation Kind = "unknown_operation"
	// KindInvalidArgument: a required argument is missing or mistyped.
	// Covers missing revisions, negative pagination, empty index field
	// lists, and malformed selectors.
	KindInvalidArgument Kind = "invalid_argument"
	// KindNotFound: the referenced database or document does not exist.
	KindNotFound Kind = "not_found"
	// KindRevisionConflict: the supplied revision does not match the
	// document's current backend state.
	KindRevisionConflict Kind = "revision_conflict"
	// KindBackendUnavailable: the backend could not be reached at all.
	KindBackendUnavailable Kind = "backend_unavailable"
	// KindBackendError: any other backend-reported failure, with the
	// backend's status and message carried verbatim.
	KindBackendError Kind = "backend_error"
)

// Error is the structured failure returned by every operation. Status is
// the backend HTTP status when the backend produced the failure, 0 when
// the adapter rejected the call before issuing a request.
type Error struct {
	Kind    Kind
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Errorf builds an adapter-side Error (Status 0).
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from err, or "" when err is nil or not an Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
