// Package domainerrors defines the domain error vocabulary shared by services
// and transports. Services return these; the HTTP layer translates codes to
// status codes without inspecting messages.
//
// For infrastructure facts (not found, expired, ...) stores return
// pkg/sentinel errors instead; services wrap them into domain errors at the
// boundary. Conventionally imported as dErrors.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error for transport mapping and branching.
type Code string

const (
	// CodeInvalidInput covers malformed or missing user input. The message is
	// safe to surface inline to the user.
	CodeInvalidInput Code = "invalid_input"

	// CodeInvalidState marks an operation attempted in a state that does not
	// permit it, e.g. a step transition whose gate does not hold.
	CodeInvalidState Code = "invalid_state"

	// CodeUnauthorized covers failed credential checks (admin passphrase).
	CodeUnauthorized Code = "unauthorized"

	// CodeNotFound maps store misses to a transport-visible error.
	CodeNotFound Code = "not_found"

	// CodeLocked marks refusals caused by repeated credential failures.
	CodeLocked Code = "locked"

	// CodeUnavailable marks retriable downstream failures (profile sink).
	CodeUnavailable Code = "unavailable"

	// CodeInternal is the fallback for unexpected failures.
	CodeInternal Code = "internal"
)

// Error carries a code plus a user-presentable message. The wrapped cause, if
// any, stays server-side.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// Is reports whether err (or anything it wraps) carries the given code.
func Is(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the domain code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the user-presentable message, or a generic fallback.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

// ToHTTPStatus maps a domain code to an HTTP status code.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeInvalidState:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeLocked:
		return http.StatusTooManyRequests
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
