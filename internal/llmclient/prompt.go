// File: internal/llmclient/prompt.go
package llmclient

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/periscope-cli/api/schemas"
)

// systemPrompt is the task-independent instruction block sent on every call.
// The task itself travels in the final user message.
const systemPrompt = `You are a GUI automation assistant driving a web browser with a mouse and keyboard.

* The screenshot you receive shows the current state of the page.
* The screen resolution is 1000x1000. Every coordinate you output uses this grid.
* Consult the screenshot before every pointer action and aim for the center of the target element, never its edge.
* If a click did not activate an element, adjust the cursor position so the tip lands on the element and try again.
* Pages take time to react. Prefer a short wait over repeating an action that looks ignored.
* Respond with exactly one JSON object per turn, matching the schema you were given.

Available actions:

* left_click: press the left mouse button at "coordinate" [x, y].
* double_click: double-click the left mouse button at "coordinate".
* triple_click: triple-click at "coordinate" to select a whole line or paragraph.
* right_click: press the right mouse button at "coordinate".
* middle_click: press the middle mouse button at "coordinate".
* mouse_move: move the cursor to "coordinate" without clicking.
* left_click_drag: press at "start_coordinate", drag to "coordinate", release.
* type: type "text" on the keyboard. The focused field is cleared first.
* key: press "keys" down in order and release in reverse, e.g. ["ctrl","a"] or ["enter"].
* scroll: turn the mouse wheel by "pixels". Positive values scroll up, negative values scroll down.
* wait: pause for "time" seconds while the page loads or updates.
* answer: report the requested information in "text" and finish the task.
* terminate: finish the task once it is complete.`

// taskMessage renders the final user message. The corrective note, when
// present, precedes the task so a retried call sees what went wrong first.
func taskMessage(task, corrective string) string {
	if corrective == "" {
		return fmt.Sprintf("Task: %s", task)
	}
	return fmt.Sprintf("%s\n\nTask: %s", corrective, task)
}

// outcomeMessage renders what happened after a past action so the model can
// tell a successful step from a failed one.
func outcomeMessage(turn schemas.Turn) string {
	var b strings.Builder
	if turn.ExecError != "" {
		fmt.Fprintf(&b, "Result: action failed: %s\n", turn.ExecError)
	} else {
		b.WriteString("Result: ok\n")
	}
	fmt.Fprintf(&b, "Page URL: %s", turn.Observation.URL)
	return b.String()
}

// historyActionJSON renders a past action in its wire form for replay. A
// render failure degrades to the log form rather than dropping the turn.
func historyActionJSON(a schemas.Action) string {
	wire, err := a.Wire()
	if err != nil {
		return a.String()
	}
	return string(wire)
}

// CorrectiveNote phrases a malformed response for the single retried call.
// The loop injects the result as InferenceRequest.Corrective.
func CorrectiveNote(err *schemas.MalformedActionError) string {
	const rawLimit = 400
	note := fmt.Sprintf("Your previous reply could not be used: %v.", err.Cause)
	if trimmed := strings.TrimSpace(err.Raw); trimmed != "" {
		if len(trimmed) > rawLimit {
			trimmed = trimmed[:rawLimit] + "..."
		}
		note = fmt.Sprintf("%s\nIt read: %s", note, trimmed)
	}
	return note + "\nReply with exactly one JSON object matching the action schema."
}
