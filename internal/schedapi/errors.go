package schedapi

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the scheduling backend. The status code
// classifies it for retry and rollback decisions; the body is kept verbatim
// for the caller to surface.
type APIError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("schedapi: %s: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Transient reports whether the failure may succeed on retry. Only server
// errors qualify; 4xx responses are never retried.
func (e *APIError) Transient() bool {
	return e.StatusCode >= 500
}

// AuthFailure reports an authentication/authorization rejection, handled by
// the session layer outside this core.
func (e *APIError) AuthFailure() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// NotFound reports the backend's "practitioner does not offer this type"
// answer, which read paths translate to an empty result.
func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Conflict reports a booking rejection for a slot that is no longer
// available.
func (e *APIError) Conflict() bool {
	return e.StatusCode == http.StatusConflict || e.StatusCode == http.StatusUnprocessableEntity
}

// AsAPIError unwraps err to an *APIError when the failure came from a backend
// response rather than transport.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsConflict reports whether err is a conflict-type booking rejection.
func IsConflict(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Conflict()
}
