// Package handlers provides the HTTP route handlers.
package handlers
