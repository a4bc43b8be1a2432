package schemas

import (
	"time"
)

// -- Session State Schemas --

// Observation captures what the browser showed after an action: the
// screenshot, the page URL, and the viewport the screenshot was taken at.
type Observation struct {
	// Image is the raw PNG at full viewport resolution. Excluded from JSON
	// rendering; persistence is handled separately.
	Image    []byte    `json:"-"`
	URL      string    `json:"url"`
	Viewport Viewport  `json:"viewport"`
	Captured time.Time `json:"captured"`
}

// Turn pairs an observation with the action the model took in response to
// it. Immutable once recorded.
type Turn struct {
	Observation Observation `json:"observation"`
	Action      Action      `json:"action"`
	// ExecError is set when the executor could not perform the action. It is
	// rendered back to the model on later turns so it can self-correct.
	ExecError string `json:"exec_error,omitempty"`
}

// SessionStatus is the agent loop's state machine value.
type SessionStatus string

const (
	StatusRunning          SessionStatus = "RUNNING"
	StatusSucceeded        SessionStatus = "SUCCEEDED"
	StatusFailed           SessionStatus = "FAILED"
	StatusStepLimitReached SessionStatus = "STEP_LIMIT_REACHED"
)

// Terminal reports whether the status is final. No transition ever leaves a
// terminal status.
func (s SessionStatus) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusStepLimitReached:
		return true
	}
	return false
}

// RunResult is the outcome of one agent session, printed by the CLI and
// written to the run report. The process exit code is derived from Status.
type RunResult struct {
	SessionID string        `json:"session_id"`
	Task      string        `json:"task"`
	Status    SessionStatus `json:"status"`
	// Answer holds the payload of an answer action when the model produced
	// one before terminating.
	Answer   string        `json:"answer,omitempty"`
	Steps    int           `json:"steps"`
	FinalURL string        `json:"final_url,omitempty"`
	Elapsed  time.Duration `json:"elapsed_ns"`
}
