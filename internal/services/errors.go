package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")

	// ErrRateLimited marks a provider refusal due to request quotas. It is a
	// transient failure that also trips the provider circuit breaker at once.
	ErrRateLimited = fmt.Errorf("%w: rate limited", ErrTransient)

	ErrMalformedObservation    = errors.New("malformed observation")
	ErrUnsafePath              = errors.New("unsafe path")
	ErrConflict                = errors.New("destination conflict")
	ErrIdentificationExhausted = errors.New("identification exhausted")
	ErrRejectedFix             = errors.New("fix rejected")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsTransient reports whether err should be retried later rather than treated
// as a definitive answer from a provider.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrTimeout)
}

// ReasonFor maps an error to the short reason string stored alongside
// terminal book states and history rows.
func ReasonFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUnsafePath):
		return "unsafe_path"
	case errors.Is(err, ErrIdentificationExhausted):
		return "unidentified"
	case errors.Is(err, ErrRejectedFix):
		return "rejected"
	case errors.Is(err, ErrMalformedObservation):
		return "malformed_observation"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case IsTransient(err):
		return "transient_failure"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration):
		return "invalid_request"
	default:
		return "error"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
