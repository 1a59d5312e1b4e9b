package api

// errors.go defines the error codes returned by the API

import "fmt"

// Error is a structured error raised while processing a request.
type Error struct {
	// code is the API error code
	code ErrorCode

	// message is a human-readable error message
	message string

	// wrapped is the optional underlying error
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *Error) Code() ErrorCode { return e.code }
func (e *Error) Unwrap() error   { return e.wrapped }

// ErrorCode is used in errors returned by the API.
//
//   - 7000-7999 technical errors: the request could not be processed because of the supplied data or a server fault.
//   - 8000-8999 functional errors: reserved for business rules.
type ErrorCode int

const (
	// ErrCodeInternalError is used when an internal server error occurs
	ErrCodeInternalError ErrorCode = 7005

	// ErrCodeMalformedRequest is used when JSON parsing fails or the body is not a JSON object or array
	ErrCodeMalformedRequest ErrorCode = 7006

	// ErrCodeRateLimitExceeded is used when the rate limit is exceeded
	// - this is only used in the middleware
	ErrCodeRateLimitExceeded ErrorCode = 7009

	// ErrCodeRequestTooLarge is used when the request body is too large
	// - this is only used in the middleware
	ErrCodeRequestTooLarge ErrorCode = 7010

	// ErrCodeUnsupportedMediaType is used for bodies in a charset or content encoding the server can't read
	ErrCodeUnsupportedMediaType ErrorCode = 7011
)

// NewMalformedRequestError creates an error for malformed requests.
func NewMalformedRequestError(msg string) error {
	return &Error{code: ErrCodeMalformedRequest, message: msg}
}

// WrapMalformedRequestError wraps an existing error as a malformed request error.
func WrapMalformedRequestError(err error, msg string) error {
	return &Error{code: ErrCodeMalformedRequest, message: msg, wrapped: err}
}

// WrapInternalError wraps an existing error as an internal error.
func WrapInternalError(err error, msg string) error {
	return &Error{code: ErrCodeInternalError, message: msg, wrapped: err}
}

// NewRateLimitError creates a rate limit exceeded error.
func NewRateLimitError(msg string) error {
	return &Error{code: ErrCodeRateLimitExceeded, message: msg}
}

// NewRequestTooLargeError creates a request too large error.
// Use this when the request body exceeds the maximum allowed size.
func NewRequestTooLargeError(msg string) error {
	return &Error{code: ErrCodeRequestTooLarge, message: msg}
}

// NewUnsupportedMediaTypeError creates an error for bodies the server can't decode
// (unsupported charset or content encoding).
func NewUnsupportedMediaTypeError(msg string) error {
	return &Error{code: ErrCodeUnsupportedMediaType, message: msg}
}
