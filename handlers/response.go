package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"staff-portal/middleware"
	"staff-portal/store"
)

type JSONResponse map[string]interface{}

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, body interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return middleware.NewAppError(http.StatusBadRequest, "Request body is required", err)
		}
		return middleware.NewAppError(http.StatusBadRequest, "Invalid request payload", err)
	}
	return nil
}

// storeError maps an Accessor failure to a response. Only path validation is
// the caller's fault.
func storeError(err error) error {
	if errors.Is(err, store.ErrInvalidPath) {
		return middleware.NewAppError(http.StatusBadRequest, "Invalid path", err)
	}
	return middleware.NewAppError(http.StatusInternalServerError, "Internal server error", err)
}

// pathKey checks that a client-supplied id addresses exactly one node.
func pathKey(id string) (string, bool) {
	id = strings.TrimSpace(id)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	if _, err := store.SplitPath(id); err != nil {
		return "", false
	}
	return id, true
}
