package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	dErrors "seedtrace/pkg/domain-errors"
)

// maxBodyBytes bounds request bodies accepted by DecodeJSON.
const maxBodyBytes = 1 << 20

// ErrorResponse is the envelope for every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into the error envelope. Internal
// failures get a generic message; their detail belongs in logs only.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	message := "internal error"
	if dErrors.IsClientFacing(code) {
		var de *dErrors.Error
		if errors.As(err, &de) && de.Message != "" {
			message = de.Message
		} else {
			message = err.Error()
		}
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), ErrorResponse{
		Success: false,
		Error:   string(code),
		Message: message,
	})
}

// DecodeJSON decodes the request body into T, rejecting unknown fields.
func DecodeJSON[T any](r *http.Request) (*T, error) {
	var v T
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid json body")
	}
	return &v, nil
}
