package platform

import (
	"errors"
	"fmt"
	"strings"
)

// Error classes decided by the transport layer. Callers match them with errors.Is.
var (
	ErrNotFound       = errors.New("not_found")
	ErrConflict       = errors.New("conflict")
	ErrRateLimited    = errors.New("rate_limited")
	ErrAuthentication = errors.New("authentication")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrAPI            = errors.New("api_error")
)

// APIError is returned by Client implementations for every failed remote call.
type APIError struct {
	Class      error
	Kind       Kind
	Op         string
	Code       string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", e.Op, e.Kind)
	if e.Class != nil {
		fmt.Fprintf(&b, ": %s", e.Class)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *APIError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Class != nil {
		out = append(out, e.Class)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewAPIError builds an APIError of the given class.
func NewAPIError(class error, kind Kind, op string, err error) *APIError {
	if class == nil {
		class = ErrAPI
	}
	return &APIError{Class: class, Kind: kind, Op: op, Err: err}
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
