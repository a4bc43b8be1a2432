package schemas

import (
	"errors"
	"fmt"
)

// -- Error Taxonomy --
//
// Four failure classes cross package boundaries. Sentinels allow callers to
// branch with errors.Is without depending on the producing package.

var (
	// ErrInferenceUnavailable marks endpoint-level failures: unreachable,
	// timed out, or persistently erroring. Always fatal to the session.
	ErrInferenceUnavailable = errors.New("inference endpoint unavailable")

	// ErrMalformedAction marks a model response that failed strict
	// validation. Recoverable once per turn via a corrective retry.
	ErrMalformedAction = errors.New("malformed model action")

	// ErrActionExecution marks a browser-level failure to perform an
	// otherwise valid action. Never fatal on its own; recorded into
	// history so the model can adapt.
	ErrActionExecution = errors.New("action execution failed")

	// ErrConfiguration marks invalid startup configuration. Fatal before
	// the loop starts, never raised during it.
	ErrConfiguration = errors.New("invalid configuration")
)

// MalformedActionError carries the raw model output alongside the parse
// failure so the retry prompt can quote it back to the model.
type MalformedActionError struct {
	// Raw is the verbatim response body that failed validation.
	Raw   string
	Cause error
}

// NewMalformedActionError wraps a validation failure with the offending
// payload.
func NewMalformedActionError(raw string, cause error) *MalformedActionError {
	return &MalformedActionError{Raw: raw, Cause: cause}
}

func (e *MalformedActionError) Error() string {
	return fmt.Sprintf("%v: %v", ErrMalformedAction, e.Cause)
}

func (e *MalformedActionError) Unwrap() error { return e.Cause }

// Is matches the ErrMalformedAction sentinel so errors.Is works across the
// concrete type.
func (e *MalformedActionError) Is(target error) bool {
	return target == ErrMalformedAction
}
