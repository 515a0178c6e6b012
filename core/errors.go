package core

import (
	"errors"
	"fmt"
)

// Error taxonomy. Callers classify failures with errors.Is against these
// sentinels; everything else is an internal error.
var (
	// ErrValidation covers malformed input: empty content, blank queries,
	// unknown content types. Rejected before any side effect.
	ErrValidation = errors.New("validation error")

	// ErrModelUnavailable means the embedding or generation backend could
	// not be reached. Retryable with bounded backoff.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrNotFound covers unknown ids. Lookups against another user's
	// entities also surface as ErrNotFound, never leaking existence.
	ErrNotFound = errors.New("not found")

	// ErrGenerationFailed means the underlying generation call failed
	// mid-stream. Fragments already delivered are not retracted, but no
	// message is committed.
	ErrGenerationFailed = errors.New("generation failed")
)

// Validationf wraps ErrValidation with a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
}

// ModelUnavailable wraps an underlying transport or provider error.
func ModelUnavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
}
