package stripe

import (
	"errors"
	"net/http"

	"github.com/stripe/stripe-go/v83"
	"github.com/varunnayak/stripe-migrate/internal/platform"
)

// classify maps a stripe-go error onto the platform error classes.
func classify(err error, kind platform.Kind, op string) error {
	if err == nil {
		return nil
	}
	var serr *stripe.Error
	if !errors.As(err, &serr) {
		return platform.NewAPIError(platform.ErrAPI, kind, op, err)
	}

	var class error
	switch {
	case serr.Code == stripe.ErrorCodeResourceAlreadyExists:
		class = platform.ErrConflict
	case serr.Code == stripe.ErrorCodeResourceMissing, serr.HTTPStatusCode == http.StatusNotFound:
		class = platform.ErrNotFound
	case serr.HTTPStatusCode == http.StatusTooManyRequests:
		class = platform.ErrRateLimited
	case serr.HTTPStatusCode == http.StatusUnauthorized, serr.HTTPStatusCode == http.StatusForbidden:
		class = platform.ErrAuthentication
	case serr.HTTPStatusCode == http.StatusBadRequest, serr.HTTPStatusCode == http.StatusConflict:
		class = platform.ErrInvalidRequest
	default:
		class = platform.ErrAPI
	}

	apiErr := platform.NewAPIError(class, kind, op, err)
	apiErr.Code = string(serr.Code)
	apiErr.StatusCode = serr.HTTPStatusCode
	return apiErr
}
