package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error   string       `json:"error"`
	Details []fieldError `json:"details,omitempty"`
}

type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeValidationError answers 400 with one detail per failed rule.
func writeValidationError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: "validation error"}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			resp.Details = append(resp.Details, fieldError{Field: fe.Field(), Rule: fe.Tag()})
		}
	} else {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusBadRequest, resp)
}
