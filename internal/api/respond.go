package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bitrixepl/engine/internal/bitrix"
	"github.com/bitrixepl/engine/internal/syncsvc"
)

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// writeJSON encodes v as the response body with a 200 status.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

// writeJSONStatus encodes v as the response body with the given status.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a {"error": code, "message": message} body.
func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeJSONStatus(w, status, map[string]string{"error": code, "message": message})
}

// writeErr maps a typed error from one of the EPL components to an HTTP
// status code per spec.md §7 ("auth -> 401/403, API -> 502, DB/Sync ->
// 500, validation -> 400") and writes the response.
func writeErr(w http.ResponseWriter, err error) {
	var authErr *bitrix.AuthenticationError
	var apiErr *bitrix.APIError
	var syncErr *syncsvc.SyncError
	var rateLimitErr *bitrix.RateLimitedError
	var opLimitErr *bitrix.OperationTimeLimitError

	switch {
	case errors.As(err, &authErr):
		writeJSONError(w, http.StatusUnauthorized, "authentication_error", err.Error())
	case errors.As(err, &apiErr), errors.As(err, &rateLimitErr), errors.As(err, &opLimitErr):
		writeJSONError(w, http.StatusBadGateway, "bitrix_api_error", err.Error())
	case errors.As(err, &syncErr):
		writeJSONError(w, http.StatusInternalServerError, "sync_error", err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
