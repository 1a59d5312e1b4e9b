// Package api holds the error type and response helpers shared by the HTTP
// middleware and handlers.
//
// Errors raised while handling a request are created with the constructors in
// errors.go and sent with RespondWithErrorResponse, which logs the full error
// server-side and returns a sanitized JSON ErrorResponse to the client.
package api
