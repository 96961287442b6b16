package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks malformed input to a step or job. Never retried.
	ErrValidation = errors.New("validation error")
	// ErrProvider marks a failed generation call. Recorded per item, does not
	// abort the surrounding batch or job.
	ErrProvider = errors.New("provider error")
	// ErrIntegrity marks a failed hard precondition. Aborts the whole workflow.
	ErrIntegrity = errors.New("integrity error")
	// ErrCancelled marks an explicitly cancelled job. A normal terminal
	// outcome, not reported upward as a failure.
	ErrCancelled = errors.New("cancelled")
	// ErrPersistence marks store read/write failures. Retried with bounded
	// attempts before being surfaced.
	ErrPersistence = errors.New("persistence error")
	// ErrNotFound marks missing entities.
	ErrNotFound = errors.New("not found")
	// ErrConfiguration marks invalid or missing configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransient marks failures with no more specific classification.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureDetails carries the operator-facing classification of an error.
type FailureDetails struct {
	Kind    string
	Message string
}

// Details classifies err against the sentinel markers and returns a clean
// human-readable message with the marker prefix removed.
func Details(err error) FailureDetails {
	if err == nil {
		return FailureDetails{}
	}
	kind := "transient"
	var marker error
	switch {
	case errors.Is(err, ErrValidation):
		kind, marker = "validation", ErrValidation
	case errors.Is(err, ErrProvider):
		kind, marker = "provider", ErrProvider
	case errors.Is(err, ErrIntegrity):
		kind, marker = "integrity", ErrIntegrity
	case errors.Is(err, ErrCancelled):
		kind, marker = "cancelled", ErrCancelled
	case errors.Is(err, ErrPersistence):
		kind, marker = "persistence", ErrPersistence
	case errors.Is(err, ErrNotFound):
		kind, marker = "not_found", ErrNotFound
	case errors.Is(err, ErrConfiguration):
		kind, marker = "configuration", ErrConfiguration
	case errors.Is(err, ErrTransient):
		kind, marker = "transient", ErrTransient
	}
	message := err.Error()
	if marker != nil {
		message = strings.TrimPrefix(message, marker.Error()+": ")
	}
	return FailureDetails{Kind: kind, Message: message}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
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
