package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInput           = errors.New("input error")
	ErrExternalService = errors.New("external service error")
	ErrResource        = errors.New("resource error")
	ErrConfiguration   = errors.New("configuration error")
	ErrNotFound        = errors.New("not found")
	ErrTimeout         = errors.New("timeout")
	ErrCancelled       = errors.New("cancelled")
)

// Kind names an error class for logs and job messages.
type Kind string

const (
	KindInput         Kind = "input"
	KindExternal      Kind = "external_service"
	KindResource      Kind = "resource"
	KindConfiguration Kind = "configuration"
	KindNotFound      Kind = "not_found"
	KindTimeout       Kind = "timeout"
	KindCancelled     Kind = "cancelled"
	KindUnknown       Kind = "unknown"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalService
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error to its Kind. Context cancellation and deadline errors
// are recognised even when they were not wrapped with a marker.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrInput):
		return KindInput
	case errors.Is(err, ErrResource):
		return KindResource
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrExternalService):
		return KindExternal
	default:
		return KindUnknown
	}
}

// ErrorDetails is the structured view of a wrapped error used for logging.
type ErrorDetails struct {
	Kind    Kind
	Message string
	Hint    string
	Cause   error
}

// Details extracts a log-friendly summary from err.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{Kind: KindUnknown}
	}
	kind := Classify(err)
	return ErrorDetails{
		Kind:    kind,
		Message: strings.TrimSpace(err.Error()),
		Hint:    hintFor(kind),
		Cause:   cause(err),
	}
}

// cause returns the underlying error wrapped by Wrap, skipping the marker.
func cause(err error) error {
	switch wrapped := err.(type) {
	case interface{ Unwrap() []error }:
		errs := wrapped.Unwrap()
		if len(errs) > 1 {
			return errs[len(errs)-1]
		}
		if len(errs) == 1 {
			return errs[0]
		}
	case interface{ Unwrap() error }:
		return wrapped.Unwrap()
	}
	return nil
}

func hintFor(kind Kind) string {
	switch kind {
	case KindInput:
		return "check the uploaded audio and slide deck"
	case KindExternal:
		return "check llm connectivity and api key"
	case KindResource:
		return "check workspace directory permissions and free space"
	case KindConfiguration:
		return "run 'lecturenotes config validate'"
	case KindTimeout:
		return "raise workflow.call_timeout_seconds or check collaborator latency"
	case KindCancelled:
		return "job was cancelled or the daemon is shutting down"
	default:
		return "check logs for details"
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
