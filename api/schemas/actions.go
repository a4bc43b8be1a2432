package schemas

import (
	"fmt"
	"math"
	"strings"
	"time"

	json "github.com/json-iterator/go"
)

// -- Action Schemas --

// ActionKind identifies one of the symbolic actions the model may propose.
// Using a custom type ensures only the predefined kinds can reach the
// executor's dispatch switch.
type ActionKind string

const (
	ActionLeftClick     ActionKind = "left_click"
	ActionDoubleClick   ActionKind = "double_click"
	ActionTripleClick   ActionKind = "triple_click"
	ActionRightClick    ActionKind = "right_click"
	ActionMiddleClick   ActionKind = "middle_click"
	ActionMouseMove     ActionKind = "mouse_move"
	ActionLeftClickDrag ActionKind = "left_click_drag"
	ActionTypeText      ActionKind = "type"
	ActionKey           ActionKind = "key"
	ActionScroll        ActionKind = "scroll"
	ActionWait          ActionKind = "wait"
	ActionAnswer        ActionKind = "answer"
	ActionTerminate     ActionKind = "terminate"
)

// AllActionKinds lists every kind the schema advertises to the model.
var AllActionKinds = []ActionKind{
	ActionLeftClick, ActionDoubleClick, ActionTripleClick, ActionRightClick,
	ActionMiddleClick, ActionMouseMove, ActionLeftClickDrag, ActionTypeText,
	ActionKey, ActionScroll, ActionWait, ActionAnswer, ActionTerminate,
}

// PointerKind reports whether the kind carries a single target coordinate
// that the executor resolves to a pixel position.
func (k ActionKind) PointerKind() bool {
	switch k {
	case ActionLeftClick, ActionDoubleClick, ActionTripleClick,
		ActionRightClick, ActionMiddleClick, ActionMouseMove, ActionLeftClickDrag:
		return true
	}
	return false
}

// TerminalKind reports whether the kind ends the session instead of
// touching the browser.
func (k ActionKind) TerminalKind() bool {
	return k == ActionAnswer || k == ActionTerminate
}

// Action is the decoded, validated form of one model decision. Exactly one
// kind is set; only the fields that kind requires are populated. Coordinates
// are normalized (model space) until the executor maps them to pixels.
type Action struct {
	Kind ActionKind `json:"action"`
	// Coordinate is the target point for pointer kinds and the optional
	// anchor point for scroll. For left_click_drag it is the drop point.
	Coordinate *NormalizedPoint `json:"coordinate,omitempty"`
	// Start is the pick-up point for left_click_drag.
	Start *NormalizedPoint `json:"start_coordinate,omitempty"`
	// Text is the payload for type and answer.
	Text string `json:"text,omitempty"`
	// Keys is the combo for key, in model-friendly names ("ctrl", "enter").
	Keys []string `json:"keys,omitempty"`
	// Pixels is the signed normalized scroll magnitude; positive scrolls up.
	Pixels int64 `json:"pixels,omitempty"`
	// Duration is how long a wait action blocks.
	Duration time.Duration `json:"-"`
	// Reasoning is the model's own explanation. Logged, never interpreted.
	Reasoning string `json:"reasoning,omitempty"`
}

// String renders a compact human-readable form for logs.
func (a Action) String() string {
	var b strings.Builder
	b.WriteString(string(a.Kind))
	if a.Start != nil {
		fmt.Fprintf(&b, " from=(%.0f,%.0f)", a.Start.X, a.Start.Y)
	}
	if a.Coordinate != nil {
		fmt.Fprintf(&b, " at=(%.0f,%.0f)", a.Coordinate.X, a.Coordinate.Y)
	}
	switch a.Kind {
	case ActionTypeText, ActionAnswer:
		fmt.Fprintf(&b, " text=%q", truncateRunes(a.Text, 80))
	case ActionKey:
		fmt.Fprintf(&b, " keys=%v", a.Keys)
	case ActionScroll:
		fmt.Fprintf(&b, " pixels=%d", a.Pixels)
	case ActionWait:
		fmt.Fprintf(&b, " duration=%s", a.Duration)
	}
	return b.String()
}

// Wire renders the action back into the JSON shape the model produces.
// History turns are replayed to the model in this form.
func (a Action) Wire() ([]byte, error) {
	m := map[string]any{"action": string(a.Kind)}
	if a.Start != nil {
		m["start_coordinate"] = []float64{a.Start.X, a.Start.Y}
	}
	if a.Coordinate != nil {
		m["coordinate"] = []float64{a.Coordinate.X, a.Coordinate.Y}
	}
	switch a.Kind {
	case ActionTypeText, ActionAnswer:
		m["text"] = a.Text
	case ActionKey:
		m["keys"] = a.Keys
	case ActionScroll:
		m["pixels"] = a.Pixels
	case ActionWait:
		m["time"] = a.Duration.Seconds()
	}
	if a.Reasoning != "" {
		m["reasoning"] = a.Reasoning
	}
	return json.Marshal(m)
}

// wireAction mirrors the JSON the model is instructed to produce. Presence
// of optional numeric fields is tracked with pointers so that a missing
// required field is distinguishable from a zero value.
type wireAction struct {
	Action          string    `json:"action"`
	Coordinate      []float64 `json:"coordinate"`
	StartCoordinate []float64 `json:"start_coordinate"`
	Text            *string   `json:"text"`
	Keys            []string  `json:"keys"`
	Pixels          *float64  `json:"pixels"`
	Time            *float64  `json:"time"`
	Reasoning       string    `json:"reasoning"`
}

// MaxWaitSeconds bounds the duration a single wait action may request.
const MaxWaitSeconds = 300

// ParseAction decodes and strictly validates one model response payload.
// The payload must be a single JSON object matching the advertised schema.
// Finite coordinates outside the normalized range are clamped rather than
// rejected; structural problems (missing fields, unknown kinds, non-finite
// numbers) return a MalformedActionError wrapping ErrMalformedAction.
func ParseAction(payload []byte) (Action, error) {
	raw := strings.TrimSpace(string(payload))
	if raw == "" {
		return Action{}, NewMalformedActionError(raw, fmt.Errorf("empty response"))
	}

	var w wireAction
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return Action{}, NewMalformedActionError(raw, fmt.Errorf("decode: %w", err))
	}
	if w.Action == "" {
		return Action{}, NewMalformedActionError(raw, fmt.Errorf("missing required field 'action'"))
	}

	a := Action{Kind: ActionKind(w.Action), Reasoning: w.Reasoning}

	switch a.Kind {
	case ActionLeftClick, ActionDoubleClick, ActionTripleClick,
		ActionRightClick, ActionMiddleClick, ActionMouseMove:
		pt, err := pointFromPair(w.Coordinate, "coordinate")
		if err != nil {
			return Action{}, NewMalformedActionError(raw, err)
		}
		a.Coordinate = pt

	case ActionLeftClickDrag:
		start, err := pointFromPair(w.StartCoordinate, "start_coordinate")
		if err != nil {
			return Action{}, NewMalformedActionError(raw, err)
		}
		end, err := pointFromPair(w.Coordinate, "coordinate")
		if err != nil {
			return Action{}, NewMalformedActionError(raw, err)
		}
		a.Start = start
		a.Coordinate = end

	case ActionTypeText, ActionAnswer:
		if w.Text == nil {
			return Action{}, NewMalformedActionError(raw, fmt.Errorf("%s requires field 'text'", a.Kind))
		}
		a.Text = *w.Text

	case ActionKey:
		if len(w.Keys) == 0 {
			return Action{}, NewMalformedActionError(raw, fmt.Errorf("key requires a non-empty 'keys' array"))
		}
		for _, k := range w.Keys {
			if strings.TrimSpace(k) == "" {
				return Action{}, NewMalformedActionError(raw, fmt.Errorf("key combo contains an empty entry"))
			}
		}
		a.Keys = w.Keys

	case ActionScroll:
		if w.Pixels == nil {
			return Action{}, NewMalformedActionError(raw, fmt.Errorf("scroll requires field 'pixels'"))
		}
		if !finite(*w.Pixels) {
			return Action{}, NewMalformedActionError(raw, fmt.Errorf("scroll pixels is not a finite number"))
		}
		a.Pixels = int64(math.Round(*w.Pixels))
		// The anchor point is optional; the executor centers the wheel
		// event when it is absent.
		if len(w.Coordinate) != 0 {
			pt, err := pointFromPair(w.Coordinate, "coordinate")
			if err != nil {
				return Action{}, NewMalformedActionError(raw, err)
			}
			a.Coordinate = pt
		}

	case ActionWait:
		if w.Time == nil {
			return Action{}, NewMalformedActionError(raw, fmt.Errorf("wait requires field 'time'"))
		}
		secs := *w.Time
		if !finite(secs) || secs < 0 || secs > MaxWaitSeconds {
			return Action{}, NewMalformedActionError(raw, fmt.Errorf("wait time %v is outside [0,%d] seconds", secs, MaxWaitSeconds))
		}
		a.Duration = time.Duration(secs * float64(time.Second))

	case ActionTerminate:
		// No payload.

	default:
		return Action{}, NewMalformedActionError(raw, fmt.Errorf("unknown action kind %q", w.Action))
	}

	return a, nil
}

// pointFromPair validates a two-element coordinate array and clamps it into
// the normalized range.
func pointFromPair(pair []float64, field string) (*NormalizedPoint, error) {
	if len(pair) == 0 {
		return nil, fmt.Errorf("missing required field '%s'", field)
	}
	if len(pair) != 2 {
		return nil, fmt.Errorf("%s must hold exactly two numbers, got %d", field, len(pair))
	}
	if !finite(pair[0]) || !finite(pair[1]) {
		return nil, fmt.Errorf("%s contains a non-finite number", field)
	}
	p := NormalizedPoint{X: pair[0], Y: pair[1]}.Clamped()
	return &p, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
