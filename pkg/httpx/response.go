package httpx

import (
	"encoding/json"
	"net/http"
)

// Error kinds shared by every handler. The split between "not_authenticated"
// and "authorization_denied" is deliberate: clients render "please log in"
// for the former and "forbidden" for the latter.
const (
	KindNotAuthenticated = "not_authenticated"
	KindAuthzDenied      = "authorization_denied"
	KindValidation       = "validation_failed"
	KindConflict         = "conflict"
	KindNotFound         = "not_found"
	KindRateLimited      = "rate_limited"
	KindServerError      = "server_error"
)

// ErrorResponse is the JSON error envelope returned by all endpoints.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the standard error envelope.
func WriteError(w http.ResponseWriter, code int, kind, description string) {
	WriteJSON(w, code, ErrorResponse{Error: kind, ErrorDescription: description})
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
// Required for responses carrying tokens.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
