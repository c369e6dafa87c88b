package api

import (
	"encoding/json"
	"net/http"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeFailure writes the standard {success:false, message} envelope.
func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"message": message,
	})
}

// writeUnauthorized writes a 401 failure response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeFailure(w, http.StatusUnauthorized, message)
}

// writeForbidden writes a 403 failure response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeFailure(w, http.StatusForbidden, message)
}

// writeBadRequest writes a 400 failure response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeFailure(w, http.StatusBadRequest, message)
}

// writeNotFound writes a 404 failure response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeFailure(w, http.StatusNotFound, message)
}

// writeInternalError writes a 500 failure response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeFailure(w, http.StatusInternalServerError, message)
}
