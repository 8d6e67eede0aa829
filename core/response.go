package core

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Response renders itself onto an http.ResponseWriter. Handlers return
// responses instead of writing directly so transports stay thin shells over
// the service layer.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// JSONBody is the envelope every JSON response uses.
type JSONBody struct {
	Code  string       `json:"code,omitempty"`
	Data  any          `json:"data,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail carries a machine-matchable code, a human-readable message,
// and optional per-field details for validation failures.
type ErrorDetail struct {
	Code    string              `json:"code,omitempty"`
	Message string              `json:"message,omitempty"`
	Details map[string][]string `json:"details,omitempty"`
}

type jsonResponse struct {
	status int
	body   JSONBody
}

func (j jsonResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSON builds a 200 response with the given payload.
func JSON(data any) Response {
	return jsonResponse{
		status: http.StatusOK,
		body:   JSONBody{Code: "ok", Data: data},
	}
}

// JSONStatus builds a JSON response with an explicit status code.
func JSONStatus(status int, data any) Response {
	return jsonResponse{
		status: status,
		body:   JSONBody{Code: "ok", Data: data},
	}
}

// JSONError maps an error to a JSON error response. ValidationError becomes
// 422 with field details, HTTPError keeps its own status and key, anything
// else is a generic 500 with the message suppressed so internals don't leak.
func JSONError(err error) Response {
	status := http.StatusInternalServerError
	detail := &ErrorDetail{
		Code:    "internal_error",
		Message: http.StatusText(http.StatusInternalServerError),
	}

	var valErr ValidationError
	var httpErr HTTPError
	switch {
	case errors.As(err, &valErr):
		status = http.StatusUnprocessableEntity
		detail.Code = "validation_error"
		detail.Message = valErr.Error()
		if len(valErr) > 0 {
			detail.Details = map[string][]string(valErr)
		}
	case errors.As(err, &httpErr):
		status = httpErr.Code
		detail.Code = httpErr.Key
		detail.Message = http.StatusText(httpErr.Code)
	}

	return jsonResponse{
		status: status,
		body:   JSONBody{Code: detail.Code, Error: detail},
	}
}
