package api

// responses.go provides helper functions for sending HTTP responses.

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/information-sharing-networks/ecommerce-api/internal/logger"
)

// RespondWithErrorResponse sends an ErrorResponse as a JSON payload.
//
// It logs the full error details server-side and sends a sanitized response to the client
func RespondWithErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	errorResponse := MapErrorToResponse(err, r)

	reqLogger := logger.ContextRequestLogger(r.Context())
	reqLogger.Warn("Request failed",
		slog.String("error", err.Error()),
		slog.Int("status_code", errorResponse.StatusCode),
		slog.String("error_code_text", errorResponse.StatusCodeMessage),
		slog.String("request_id", errorResponse.ProviderCorrelationReference),
	)

	RespondWithJSONPayload(w, errorResponse.StatusCode, errorResponse)
}

// RespondWithJSONPayload sends a JSON response with the given status code
func RespondWithJSONPayload(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			// headers are already written, so log and give up
			slog.Error("Failed to encode JSON response",
				slog.String("error", err.Error()),
			)
		}
	}
}

// RespondWithText sends a plain text response with the given status code
func RespondWithText(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusCode)

	if _, err := w.Write([]byte(body)); err != nil {
		slog.Error("Failed to write response",
			slog.String("error", err.Error()),
		)
	}
}
