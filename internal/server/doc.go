// Package server provides the HTTP server for the e-commerce API.
//
// The server is configured through environment variables
// (see internal/config/config.go for details).
//
// Every request passes through the same fixed pipeline:
//
//	RequestID -> RealIP -> Recoverer ->
//	ParseJSONBody -> CORS -> SecurityHeaders -> RequestLogger ->
//	RateLimit -> router
//
// Handlers are in internal/server/handlers and middleware is in internal/server/middleware.
package server
