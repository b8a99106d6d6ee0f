package config

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrMissingCredentials = errors.New("missing_credentials")
	ErrInvalidStep        = errors.New("invalid_step")
	ErrInvalidOutput      = errors.New("invalid_output")
	ErrInvalidPageSize    = errors.New("invalid_page_size")
	ErrInvalidLogFormat   = errors.New("invalid_log_format")
	ErrInvalidRate        = errors.New("invalid_rate")
)

const maxPageSize = 100

// Validate rejects configurations no migration may start with.
func (c Config) Validate() error {
	var missing []string
	if c.SourceAPIKey == "" {
		missing = append(missing, "source")
	}
	if c.TargetAPIKey == "" {
		missing = append(missing, "target")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v account key not set (API_KEY_SOURCE / API_KEY_TARGET)", ErrMissingCredentials, missing)
	}

	if !slices.Contains([]string{StepProducts, StepCoupons, StepSubscriptions, StepAll}, c.Step) {
		return fmt.Errorf("%w: %q", ErrInvalidStep, c.Step)
	}
	if !slices.Contains([]string{OutputText, OutputJSON, OutputYAML}, c.Output) {
		return fmt.Errorf("%w: %q", ErrInvalidOutput, c.Output)
	}
	if c.Stripe.PageSize < 1 || c.Stripe.PageSize > maxPageSize {
		return fmt.Errorf("%w: %d (1..%d)", ErrInvalidPageSize, c.Stripe.PageSize, maxPageSize)
	}
	if c.Stripe.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidRate, c.Stripe.RequestsPerSecond)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Log.Format)
	}
	return nil
}
