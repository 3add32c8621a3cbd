package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Stable machine-readable error kinds. Clients branch on these, never on
// the human-readable message, so each kind maps to exactly one status and
// the mapping lives only at this boundary.
const (
	KindUnauthorized      = "unauthorized"
	KindForbidden         = "forbidden"
	KindNotFound          = "not_found"
	KindConflict          = "conflict"
	KindInsufficientStock = "insufficient_stock"
	KindInvalidQuery      = "invalid_query"
	KindValidationFailed  = "validation_failed"
	KindBadRequest        = "bad_request"
	KindRateLimited       = "rate_limited"
	KindInternal          = "internal_error"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

func defaultKind(statusCode int) string {
	switch statusCode {
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusBadRequest:
		return KindBadRequest
	default:
		return KindInternal
	}
}

// respondWithError sends a structured error response with the default kind
// for the status code
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithErrorKind(w, statusCode, defaultKind(statusCode), message)
}

// respondWithErrorKind sends a structured error response with an explicit kind
func respondWithErrorKind(w http.ResponseWriter, statusCode int, kind, message string) {
	respondWithErrorDetails(w, statusCode, kind, message, nil)
}

// respondWithErrorDetails sends a structured error response with additional details
func respondWithErrorDetails(w http.ResponseWriter, statusCode int, kind, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: ErrorDetail{
			Code:      kind,
			Message:   message,
			Details:   details,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	json.NewEncoder(w).Encode(response)
}

// RespondWithError sends a structured error response
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithError(w, statusCode, message)
}

// RespondWithErrorKind sends a structured error response with an explicit
// machine-readable kind
func RespondWithErrorKind(w http.ResponseWriter, statusCode int, kind, message string) {
	respondWithErrorKind(w, statusCode, kind, message)
}

// RespondWithValidationErrors sends a 400 with a per-field detail list
func RespondWithValidationErrors(w http.ResponseWriter, errors []ValidationError) {
	details := make(map[string]interface{})
	details["validation_errors"] = errors

	respondWithErrorDetails(w, http.StatusBadRequest, KindValidationFailed, "validation failed", details)
}

// ErrorHandlingMiddleware catches panics and converts them to 500 errors.
// No internal error text is ever surfaced to the client.
func ErrorHandlingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("Panic recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
					)

					respondWithError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RespondWithJSON sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
