package core

import (
	"encoding/json"
	"errors"
	"net/http"
)

// JSONResponse is the standard JSON response envelope.
type JSONResponse struct {
	Data  any          `json:"data,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// JSON writes v wrapped in the standard envelope with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(JSONResponse{Data: v})
}

// JSONError writes an error response. HTTPError values (direct or
// wrapped) control the status code and error key; anything else is
// reported as a generic 500 so internal details never leak to clients.
func JSONError(w http.ResponseWriter, err error) {
	httpErr := ErrInternalServerError

	var known HTTPError
	if errors.As(err, &known) {
		httpErr = known
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(httpErr.Code)
	_ = json.NewEncoder(w).Encode(JSONResponse{
		Error: &ErrorDetail{
			Code:    httpErr.Key,
			Message: http.StatusText(httpErr.Code),
		},
	})
}
