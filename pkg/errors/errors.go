// Package errors carries the typed errors every layer of the storefront
// returns. A code decides the HTTP status and whether the shopper gets to
// read the message written at the failure site.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeRateLimit    Code = "RATE_LIMIT_EXCEEDED"
	// CodeCorruptData marks a stored blob that no longer decodes.
	CodeCorruptData Code = "CORRUPT_DATA"
	CodeInternal    Code = "INTERNAL_ERROR"
	// CodeDependency marks a store, broker or database that did not answer.
	CodeDependency Code = "DEPENDENCY_ERROR"
)

// Metadata is how a code is rendered on the wire.
type Metadata struct {
	HTTPStatus int
	Retryable  bool
	// PublicMessage replaces the error message unless ShowMessage is set.
	PublicMessage  string
	ShowMessage    bool
	DetailsAllowed bool
}

// MetadataFor maps a code to its rendering; unknown codes render as
// internal errors.
func MetadataFor(code Code) Metadata {
	switch code {
	case CodeValidation:
		return Metadata{HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", ShowMessage: true, DetailsAllowed: true}
	case CodeUnauthorized:
		return Metadata{HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required", ShowMessage: true}
	case CodeForbidden:
		return Metadata{HTTPStatus: http.StatusForbidden, PublicMessage: "access denied", ShowMessage: true}
	case CodeNotFound:
		return Metadata{HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found", ShowMessage: true}
	case CodeConflict:
		return Metadata{HTTPStatus: http.StatusConflict, PublicMessage: "conflict detected", ShowMessage: true}
	case CodeRateLimit:
		return Metadata{HTTPStatus: http.StatusTooManyRequests, PublicMessage: "rate limit exceeded", ShowMessage: true}
	case CodeCorruptData:
		return Metadata{HTTPStatus: http.StatusInternalServerError, PublicMessage: "stored data could not be read"}
	case CodeDependency:
		return Metadata{HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "dependency unavailable", DetailsAllowed: true}
	}
	return Metadata{HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: "internal server error"}
}

// Error is a coded error with an optional cause and client details.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches code and message to err; a nil err gives a plain New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code      { return e.code }
func (e *Error) Message() string { return e.message }
func (e *Error) Details() any    { return e.details }
func (e *Error) Unwrap() error   { return e.cause }
func (e *Error) Is(t error) bool { return sameCode(e, t) }

// WithDetails returns a copy of e carrying details, so shared sentinel
// errors such as an invalid phone never leak details between requests.
func (e *Error) WithDetails(details any) *Error {
	out := *e
	out.details = details
	return &out
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

// As returns the outermost typed error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether err carries code anywhere in its chain, so a
// dependency failure wrapping a corrupt blob answers to both.
func IsCode(err error, code Code) bool {
	for typed := As(err); typed != nil; typed = As(typed.cause) {
		if typed.code == code {
			return true
		}
	}
	return false
}

// sameCode lets errors.Is(err, New(CodeNotFound, "")) match by code.
func sameCode(e *Error, target error) bool {
	t, ok := target.(*Error)
	return ok && t != nil && e.code == t.code
}
