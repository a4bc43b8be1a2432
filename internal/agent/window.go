// internal/agent/window.go
package agent

import (
	"fmt"

	"github.com/xkilldash9x/periscope-cli/api/schemas"
)

// Window is the bounded turn history rendered into every inference request.
// Eviction is strictly FIFO; surviving turns keep their relative order. It is
// owned by the loop goroutine and not safe for concurrent use.
type Window struct {
	capacity int
	turns    []schemas.Turn
}

// NewWindow creates a window holding at most capacity turns.
func NewWindow(capacity int) (*Window, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: context window must be at least 1, got %d", schemas.ErrConfiguration, capacity)
	}
	return &Window{capacity: capacity}, nil
}

// Append records a turn, evicting from the head once the window is full.
func (w *Window) Append(turn schemas.Turn) {
	w.turns = append(w.turns, turn)
	for len(w.turns) > w.capacity {
		// Zero the evicted slot so its screenshot bytes can be collected.
		w.turns[0] = schemas.Turn{}
		w.turns = w.turns[1:]
	}
}

// Render returns the retained turns oldest first. The slice is a copy; the
// caller may hold it across later appends.
func (w *Window) Render() []schemas.Turn {
	out := make([]schemas.Turn, len(w.turns))
	copy(out, w.turns)
	return out
}

// Len returns the number of retained turns.
func (w *Window) Len() int {
	return len(w.turns)
}

// Reset drops all turns. Used at session start.
func (w *Window) Reset() {
	w.turns = nil
}
