package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrProvidersExhausted  = errors.New("all providers exhausted")
	ErrConfiguration       = errors.New("configuration error")
	ErrCheckpointCorrupt   = errors.New("checkpoint corrupt")
	ErrExternalTool        = errors.New("external tool error")
	ErrValidation          = errors.New("validation error")
	ErrTimeout             = errors.New("timeout")
	ErrTransient           = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
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

// Unavailable tags err as a single-provider failure that a fallback chain may
// recover from.
func Unavailable(providerID, reason string, err error) error {
	return Wrap(ErrProviderUnavailable, providerID, "", reason, err)
}

// Kind maps an error to a short classification label used in run reports.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrProvidersExhausted):
		return "providers_exhausted"
	case errors.Is(err, ErrProviderUnavailable):
		return "provider_unavailable"
	case errors.Is(err, ErrCheckpointCorrupt):
		return "checkpoint_corrupt"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "transient"
	}
}

// IsFatal reports whether err should abort an entire run instead of failing a
// single chapter.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration)
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
