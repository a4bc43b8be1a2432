package schemas

import (
	"context"
)

// -- Core Service Interfaces --

// InferenceRequest bundles everything the model needs to decide the next
// action: the immutable task, the rendered history window, and the current
// observation. Corrective is set only on the single retry that follows a
// malformed response.
type InferenceRequest struct {
	Task       string
	History    []Turn
	Current    Observation
	Corrective string
}

// InferenceClient proposes the next action for the current page state. It
// performs the network call and strict response validation and nothing
// else; it never mutates session state.
//
// Failure modes: ErrInferenceUnavailable when the endpoint cannot be
// reached or times out, ErrMalformedAction when the response does not
// validate into an Action.
type InferenceClient interface {
	Infer(ctx context.Context, req InferenceRequest) (Action, error)
}

// ActionExecutor drives the single managed browser tab. It is the only
// component allowed to touch the live session.
type ActionExecutor interface {
	// Navigate loads the given URL in the managed tab and settles.
	Navigate(ctx context.Context, url string) error
	// Observe captures the current page state without acting on it. Used
	// for the initial observation and after terminal actions.
	Observe(ctx context.Context) (Observation, error)
	// Execute performs one non-terminal action and returns the resulting
	// observation. Browser-level failures return an error wrapping
	// ErrActionExecution together with a best-effort observation.
	Execute(ctx context.Context, action Action) (Observation, error)
}

// ObservationSink receives each step's observation for persistence. The
// loop never reads anything back from it.
type ObservationSink interface {
	Save(step int, obs Observation) error
}
