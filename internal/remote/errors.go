package remote

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrBadRequest   = errors.New("bad request")
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api %d", e.Status)
}

// Is classifies the error so callers can use errors.Is with the sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrTokenExpired:
		return e.Status == http.StatusUnauthorized
	case ErrBadRequest:
		return e.Status == http.StatusBadRequest
	}
	return false
}

// ErrorBody is the JSON shape of error responses.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
