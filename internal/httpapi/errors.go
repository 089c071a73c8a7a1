package httpapi

import (
	"encoding/json"
	"net/http"

	"jotagateway/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// WriteJSONError writes a consistent JSON error payload. Used by both this
// package's own handlers and the Connection Gateway's WS upgrade handshake.
func WriteJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
