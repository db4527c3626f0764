package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so callers can decide how to surface it
type Kind string

const (
	KindAuthorizationDenied Kind = "authorization_denied"
	KindValidation          Kind = "validation"
	KindStorage             Kind = "storage"
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindInternal            Kind = "internal"
)

// Error is the error type returned across package boundaries
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "documents.Create"
	Rule    string // validation rule that failed, empty for other kinds
	Message string // safe to show to end users
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by Kind (and Rule when the target sets one)
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Rule == "" || t.Rule == e.Rule
}

// Sentinels for errors.Is checks
var (
	ErrAuthorizationDenied = &Error{Kind: KindAuthorizationDenied}
	ErrValidation          = &Error{Kind: KindValidation}
	ErrStorage             = &Error{Kind: KindStorage}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrConflict            = &Error{Kind: KindConflict}
)

// Denied creates an authorization failure
func Denied(op, message string) *Error {
	return &Error{Kind: KindAuthorizationDenied, Op: op, Message: message}
}

// Validation creates a validation failure naming the rule that failed
func Validation(op, rule, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Rule: rule, Message: message}
}

// Storage wraps a storage backend failure
func Storage(op string, err error) *Error {
	return &Error{Kind: KindStorage, Op: op, Message: "file storage is unavailable", Err: err}
}

// NotFound creates a not-found failure for the named resource
func NotFound(op, resource string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: resource + " not found"}
}

// Conflict creates a conflict failure (e.g. deleting a referenced record)
func Conflict(op, message string) *Error {
	return &Error{Kind: KindConflict, Op: op, Message: message}
}

// Internal wraps an unexpected failure
func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Op: op, Message: "internal error", Err: err}
}

// KindOf returns the Kind of err, or KindInternal for foreign errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err (or anything it wraps) carries the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// RuleOf returns the validation rule carried by err, if any
func RuleOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Rule
	}
	return ""
}

// HTTPStatus maps an error to the status code the HTTP layer should use
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindAuthorizationDenied:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns a message that is safe to show to end users.
// Wrapped causes and operation names are never included.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	switch KindOf(err) {
	case KindAuthorizationDenied:
		return "you are not allowed to perform this action"
	case KindNotFound:
		return "the requested record does not exist"
	default:
		return "an unexpected error occurred, please try again"
	}
}
