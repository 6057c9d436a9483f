package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// WriteJSON encodes data as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // headers are already sent, nothing to report
}

// errorResponse is the error body shape shared by every endpoint.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes an error body with a machine-readable code and a
// human-readable message.
func WriteError(w http.ResponseWriter, status int, errorCode, message string) {
	WriteJSON(w, status, errorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// ParseJSON decodes the request body into v. Unknown fields are
// rejected so a misspelled field fails loudly instead of silently
// defaulting.
func ParseJSON(r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "application/json") {
		return errors.New("Content-Type must be application/json")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("request body must be valid JSON")
	}

	return nil
}
