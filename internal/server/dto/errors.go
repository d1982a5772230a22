// Structured API errors with HTTP status codes and optional details.
package dto

import "net/http"

// Validatable is implemented by all request types.
type Validatable interface {
	Validate() error
}

// Error is a structured API error. Status selects the HTTP status code;
// Details carries machine-readable diagnostics for the frontend.
type Error struct {
	Status  int               `json:"-"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`

	wrapped error
}

func (e *Error) Error() string { return e.Message }

// Unwrap exposes the wrapped cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.wrapped }

// Wrap records the underlying cause without exposing it in the response.
func (e *Error) Wrap(err error) *Error {
	e.wrapped = err
	return e
}

// WithDetail adds one diagnostic key.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = map[string]string{}
	}
	e.Details[key] = value
	return e
}

// BadRequest returns a 400 error.
func BadRequest(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: msg}
}

// NotFound returns a 404 error for the named resource.
func NotFound(what string) *Error {
	return &Error{Status: http.StatusNotFound, Message: what + " not found"}
}

// Conflict returns a 409 error.
func Conflict(msg string) *Error {
	return &Error{Status: http.StatusConflict, Message: msg}
}

// InternalError returns a 500 error.
func InternalError(msg string) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: msg}
}
