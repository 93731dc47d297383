package errors

import "errors"

// StatusCoder is implemented by transport-layer error values that carry an
// explicit HTTP status (reverse proxies, upstream SDK errors). Values
// matching this interface are mapped to SERVER_ERROR with their own status.
type StatusCoder interface {
	StatusCode() int
}

// ServerErrorHook lets an application translate generic handler errors
// into its own code/message/status before the opaque INTERNAL_ERROR
// fallback applies. StatusCode <= 0 defaults to 500.
type ServerErrorHook func(err error) (code string, message string, statusCode int)

// Classify converts an arbitrary failure raised anywhere in the pipeline
// into exactly one ActionError, in priority order:
//
//  1. An *ActionError anywhere in the chain passes through unchanged.
//  2. A configured hook translates the generic error.
//  3. A StatusCoder maps to SERVER_ERROR with its status.
//  4. Everything else collapses to the opaque INTERNAL_ERROR.
func Classify(err error, hook ServerErrorHook) *ActionError {
	if err == nil {
		return Internal()
	}

	if ae, ok := AsActionError(err); ok {
		return ae
	}

	if hook != nil {
		code, message, statusCode := hook(err)
		if statusCode <= 0 {
			statusCode = 500
		}
		if code == "" {
			code = CodeInternal
		}
		return &ActionError{Code: code, Message: message, StatusCode: statusCode}
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		message := err.Error()
		if message == "" {
			message = "Server error"
		}
		return &ActionError{Code: CodeServer, Message: message, StatusCode: sc.StatusCode()}
	}

	return Internal()
}
