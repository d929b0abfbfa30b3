// internal/clients/errors.go
package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrCircuitOpen is returned without touching the network while the
	// circuit breaker is open.
	ErrCircuitOpen = errors.New("remote service unavailable: circuit open")

	// ErrUnauthorized marks an authorization rejection remapped into a
	// user-facing condition.
	ErrUnauthorized = errors.New("not authorized")
)

// TransportError is raised for network failures and non-2xx responses.
type TransportError struct {
	Method     string
	Path       string
	StatusCode int    // 0 when no response was received
	Body       string // raw response text
	Err        error  // network or read failure
}

// Error keeps the server's own text as the message, which is what forms
// display inline.
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	}
	if e.Body != "" {
		return e.Body
	}
	return fmt.Sprintf("Request failed with status %d", e.StatusCode)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the response status, or 0 for network failures.
func (e *TransportError) HTTPStatus() int {
	return e.StatusCode
}

// IsForbidden reports whether err is an authorization rejection (401 or 403).
func IsForbidden(err error) bool {
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	return te.StatusCode == http.StatusForbidden || te.StatusCode == http.StatusUnauthorized
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}

// isRetryable reports whether a GET may be attempted again after err.
func isRetryable(err error) bool {
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	if te.Err != nil {
		return !errors.Is(te.Err, context.Canceled) && !errors.Is(te.Err, context.DeadlineExceeded)
	}
	return te.StatusCode >= http.StatusInternalServerError || te.StatusCode == http.StatusTooManyRequests
}

// countsAsFailure decides what trips the circuit breaker: network failures
// and server errors. Client errors mean the service is up.
func countsAsFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	return te.Err != nil || te.StatusCode >= http.StatusInternalServerError
}

// AuthorizationError is the user-facing condition raised when an admin-only
// operation is rejected. It matches both ErrUnauthorized and the underlying
// transport failure.
type AuthorizationError struct {
	Action   string // add, update, delete
	Resource string // products, orders
	Err      error
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("Not authorized to %s %s. Please log in with an admin account.", e.Action, e.Resource)
}

func (e *AuthorizationError) Unwrap() []error {
	return []error{ErrUnauthorized, e.Err}
}

// RemapAuthorization converts authorization rejections into an
// AuthorizationError and passes every other failure through unchanged.
func RemapAuthorization(action, resource string, err error) error {
	if err == nil {
		return nil
	}
	if IsForbidden(err) {
		return &AuthorizationError{Action: action, Resource: resource, Err: err}
	}
	return err
}
