// Package errors provides the wire-level error taxonomy for ActionKit.
// Every failure that crosses an action boundary is represented as an
// ActionError with a stable machine-readable code and an HTTP status,
// so clients can branch on codes instead of matching message strings.
package errors

import (
	"errors"
	"fmt"
)

// Stable error codes produced by the action pipeline and client invokers.
// Caller-defined codes created via New pass through the pipeline unchanged.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeOutputValidation = "OUTPUT_VALIDATION_ERROR"
	CodeParse            = "PARSE_ERROR"
	CodeServer           = "SERVER_ERROR"
	CodeInternal         = "INTERNAL_ERROR"
	CodeAbort            = "ABORT_ERROR"
	CodeTimeout          = "TIMEOUT_ERROR"
	CodeFetch            = "FETCH_ERROR"
	CodeStream           = "STREAM_ERROR"
)

// ActionError is the single error shape exposed to action callers. It is a
// tagged type: pipeline classification checks for *ActionError by type
// assertion, never by inspecting fields of arbitrary error values.
type ActionError struct {
	Code        string              `json:"code"`
	Message     string              `json:"message"`
	StatusCode  int                 `json:"statusCode"`
	FieldErrors map[string][]string `json:"fieldErrors,omitempty"`
}

// Error implements the error interface.
func (e *ActionError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// New creates an ActionError with a caller-defined code. The pipeline
// passes these through its classifier unchanged, so handlers use New to
// surface typed domain failures to clients.
func New(code, message string, statusCode int) *ActionError {
	return &ActionError{Code: code, Message: message, StatusCode: statusCode}
}

// WithFieldErrors returns a copy of the error carrying per-field messages
// keyed by dotted field path.
func (e *ActionError) WithFieldErrors(fieldErrors map[string][]string) *ActionError {
	clone := *e
	clone.FieldErrors = fieldErrors
	return &clone
}

// Validation creates a VALIDATION_ERROR (422) for rejected input.
func Validation(fieldErrors map[string][]string) *ActionError {
	return &ActionError{
		Code:        CodeValidation,
		Message:     "Validation failed",
		StatusCode:  422,
		FieldErrors: fieldErrors,
	}
}

// OutputValidation creates an OUTPUT_VALIDATION_ERROR (500). The 500 status
// is deliberate: the server produced bad data, the client did nothing wrong.
func OutputValidation(fieldErrors map[string][]string) *ActionError {
	return &ActionError{
		Code:        CodeOutputValidation,
		Message:     "Output validation failed",
		StatusCode:  500,
		FieldErrors: fieldErrors,
	}
}

// Parse creates a PARSE_ERROR (400) for a malformed structured request body.
func Parse(message string) *ActionError {
	return &ActionError{Code: CodeParse, Message: message, StatusCode: 400}
}

// Internal creates the opaque INTERNAL_ERROR (500). The original error
// detail is never carried here so internals cannot leak to clients.
func Internal() *ActionError {
	return &ActionError{Code: CodeInternal, Message: "Internal server error", StatusCode: 500}
}

// Abort creates an ABORT_ERROR for a client-initiated cancellation.
// StatusCode 0 marks that no HTTP exchange completed.
func Abort() *ActionError {
	return &ActionError{Code: CodeAbort, Message: "Request aborted", StatusCode: 0}
}

// Timeout creates a TIMEOUT_ERROR (408) for an exceeded deadline.
func Timeout() *ActionError {
	return &ActionError{Code: CodeTimeout, Message: "Request timed out", StatusCode: 408}
}

// Fetch creates a FETCH_ERROR for a transport-level failure on the client.
func Fetch(message string) *ActionError {
	return &ActionError{Code: CodeFetch, Message: message, StatusCode: 0}
}

// Stream creates a STREAM_ERROR for a failure on an open event stream.
func Stream(message string) *ActionError {
	return &ActionError{Code: CodeStream, Message: message, StatusCode: 0}
}

// AsActionError extracts an *ActionError from err's chain. The second
// return reports whether the chain contained one.
func AsActionError(err error) (*ActionError, bool) {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// Wrap creates a standardized internal error with context following the
// pattern "component.method: action failed: %w". These never cross the
// wire; they exist for logs and error chains inside the server.
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}
