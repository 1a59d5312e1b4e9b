package api

// error_response.go maps errors to the JSON error body returned to clients

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/information-sharing-networks/ecommerce-api/internal/logger"
)

// ErrorResponse is the JSON body sent when a request fails
type ErrorResponse struct {

	// The HTTP method used to make the request e.g. GET, POST, etc
	HTTPMethod string `json:"httpMethod"`

	// The URI that was requested
	RequestURI string `json:"requestUri"`

	// The HTTP status code returned
	StatusCode int `json:"statusCode"`

	// A standard short description corresponding to the HTTP status code
	StatusCodeText string `json:"statusCodeText"`

	// A long description corresponding to the HTTP status code with additional information
	StatusCodeMessage string `json:"statusCodeMessage,omitempty"`

	// The request id, so clients can quote it when reporting a problem
	ProviderCorrelationReference string `json:"providerCorrelationReference,omitempty"`

	// The DateTime corresponding to the error occurring
	ErrorDateTime string `json:"errorDateTime"`

	// An array of errors providing more detail about the root cause
	Errors []DetailedError `json:"errors"`
}

// DetailedError represents a detailed error in the error response
type DetailedError struct {
	ErrorCode        ErrorCode `json:"errorCode"`
	ErrorCodeText    string    `json:"errorCodeText"`
	ErrorCodeMessage string    `json:"errorCodeMessage"`
}

// MapErrorToResponse maps an api.Error (or any other error) to an ErrorResponse.
//
// The status code is derived from the error code. Errors that are not api.Errors
// are reported as internal errors and their text is not sent to the client.
func MapErrorToResponse(err error, r *http.Request) *ErrorResponse {
	requestID := middleware.GetReqID(r.Context())

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		reqLogger := logger.ContextRequestLogger(r.Context())
		reqLogger.Error("BUG: Unmapped error type in MapErrorToResponse",
			slog.String("error_type", fmt.Sprintf("%T", err)),
			slog.String("error", err.Error()),
			slog.String("request_id", requestID),
		)
		return newErrorResponse(r, requestID, http.StatusInternalServerError, ErrCodeInternalError,
			"Internal Error", "An internal error occurred")
	}

	var statusCode int
	var errorCodeText string

	switch apiErr.Code() {
	case ErrCodeMalformedRequest:
		statusCode = http.StatusBadRequest
		errorCodeText = "Malformed request"
	case ErrCodeRateLimitExceeded:
		statusCode = http.StatusTooManyRequests
		errorCodeText = "Rate limit exceeded"
	case ErrCodeRequestTooLarge:
		statusCode = http.StatusRequestEntityTooLarge
		errorCodeText = "Request too large"
	case ErrCodeUnsupportedMediaType:
		statusCode = http.StatusUnsupportedMediaType
		errorCodeText = "Unsupported media type"
	default:
		// internal error messages can carry server details
		return newErrorResponse(r, requestID, http.StatusInternalServerError, ErrCodeInternalError,
			"Internal Error", "An internal error occurred")
	}

	return newErrorResponse(r, requestID, statusCode, apiErr.Code(), errorCodeText, apiErr.message)
}

func newErrorResponse(r *http.Request, requestID string, statusCode int, code ErrorCode, text, message string) *ErrorResponse {
	return &ErrorResponse{
		HTTPMethod:                   r.Method,
		RequestURI:                   r.RequestURI,
		StatusCode:                   statusCode,
		StatusCodeText:               http.StatusText(statusCode),
		StatusCodeMessage:            text,
		ProviderCorrelationReference: requestID,
		ErrorDateTime:                time.Now().UTC().Format(time.RFC3339),
		Errors: []DetailedError{
			{
				ErrorCode:        code,
				ErrorCodeText:    text,
				ErrorCodeMessage: message,
			},
		},
	}
}
