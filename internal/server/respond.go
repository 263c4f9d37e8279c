package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	apperrors "bookdex/internal/errors"
)

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// writeError maps the typed error taxonomy onto HTTP statuses. Provider
// trouble is a gateway problem, not a client one.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"

	switch {
	case apperrors.IsInvalidQuery(err):
		status, code = http.StatusBadRequest, "invalid_query"
	case apperrors.IsUnknownSource(err):
		status, code = http.StatusNotFound, "unknown_source"
	case apperrors.IsNotFound(err):
		status, code = http.StatusNotFound, "not_found"
	case apperrors.IsRateLimitError(err):
		status, code = http.StatusTooManyRequests, "rate_limited"
	case apperrors.IsTimeout(err):
		status, code = http.StatusGatewayTimeout, "provider_timeout"
	case apperrors.IsProviderUnavailable(err):
		status, code = http.StatusBadGateway, "provider_unavailable"
	case apperrors.IsStorageError(err):
		status, code = http.StatusInternalServerError, "storage_failure"
	}

	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: err.Error()}})
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{Code: "bad_request", Message: message}})
}
