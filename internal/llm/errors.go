package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"
)

// ModelUnavailableError represents a provider-side failure that is expected
// to clear: rate limits, overload, or a 5xx from the API.
type ModelUnavailableError struct {
	Model string
	Cause error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model %s unavailable: %v", e.Model, e.Cause)
}

func (e *ModelUnavailableError) Unwrap() error {
	return e.Cause
}

// ModelTimeoutError represents a call that exceeded its deadline.
type ModelTimeoutError struct {
	Model string
	Cause error
}

func (e *ModelTimeoutError) Error() string {
	return fmt.Sprintf("model %s timed out: %v", e.Model, e.Cause)
}

func (e *ModelTimeoutError) Unwrap() error {
	return e.Cause
}

// IsTransient reports whether an error from this package is worth retrying.
func IsTransient(err error) bool {
	var unavailable *ModelUnavailableError
	var timeout *ModelTimeoutError
	return errors.As(err, &unavailable) || errors.As(err, &timeout)
}

// classifyError maps raw provider errors onto the typed taxonomy. Context
// cancellation passes through untouched so the caller sees the run as
// cancelled rather than failed.
func classifyError(model string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ModelTimeoutError{Model: model, Cause: err}
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code >= 500 {
			return &ModelUnavailableError{Model: model, Cause: err}
		}
		return fmt.Errorf("generation failed: %w", err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "deadline exceeded"), strings.Contains(msg, "timeout"):
		return &ModelTimeoutError{Model: model, Cause: err}
	case strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "resource exhausted"),
		strings.Contains(msg, "unavailable"),
		strings.Contains(msg, "overloaded"):
		return &ModelUnavailableError{Model: model, Cause: err}
	}
	return fmt.Errorf("generation failed: %w", err)
}
