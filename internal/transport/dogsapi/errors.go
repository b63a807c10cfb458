package dogsapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/kailas-cloud/puppyradar/internal/domain"
)

// StatusError is a non-2xx answer from the dogs API.
// It matches domain.ErrUnauthorized for 401 and domain.ErrUpstream otherwise.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("dogs api %s: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("dogs api %s: status %d", e.Endpoint, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return domain.ErrUnauthorized
	}
	return domain.ErrUpstream
}

// StatusCode extracts the HTTP status of a dogs API failure, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
