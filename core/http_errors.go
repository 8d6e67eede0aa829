package core

import "net/http"

// HTTPError pairs an HTTP status code with a stable machine-matchable key.
type HTTPError struct {
	Code int
	Key  string
}

func (e HTTPError) Error() string {
	return e.Key
}

// NewHTTPError creates an HTTPError with a custom key.
func NewHTTPError(code int, key string) HTTPError {
	return HTTPError{Code: code, Key: key}
}

var (
	ErrBadRequest          = HTTPError{Code: http.StatusBadRequest, Key: "bad_request"}
	ErrUnauthorized        = HTTPError{Code: http.StatusUnauthorized, Key: "unauthorized"}
	ErrPaymentRequired     = HTTPError{Code: http.StatusPaymentRequired, Key: "payment_required"}
	ErrForbidden           = HTTPError{Code: http.StatusForbidden, Key: "forbidden"}
	ErrNotFound            = HTTPError{Code: http.StatusNotFound, Key: "not_found"}
	ErrConflict            = HTTPError{Code: http.StatusConflict, Key: "conflict"}
	ErrUnprocessableEntity = HTTPError{Code: http.StatusUnprocessableEntity, Key: "unprocessable_entity"}
	ErrTooManyRequests     = HTTPError{Code: http.StatusTooManyRequests, Key: "too_many_requests"}

	ErrInternalServerError = HTTPError{Code: http.StatusInternalServerError, Key: "internal_server_error"}
	ErrBadGateway          = HTTPError{Code: http.StatusBadGateway, Key: "bad_gateway"}
	ErrServiceUnavailable  = HTTPError{Code: http.StatusServiceUnavailable, Key: "service_unavailable"}
)
