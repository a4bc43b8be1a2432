// internal/browser/executor.go
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/periscope-cli/api/schemas"
	"github.com/xkilldash9x/periscope-cli/internal/config"
)

const (
	mouseEventTimeout = 10 * time.Second
	keyEventTimeout   = 10 * time.Second
	dragStepCount     = 12
	dragStepDelay     = 15 * time.Millisecond
	multiClickDelay   = 60 * time.Millisecond
)

// tab is the slice of a live Session the executor drives. The seam keeps
// input dispatch testable without a browser.
type tab interface {
	RunActions(ctx context.Context, actions ...chromedp.Action) error
	Navigate(ctx context.Context, url string) error
	Observe(ctx context.Context) (schemas.Observation, error)
	Settle(ctx context.Context)
	Viewport() schemas.Viewport
	SetPointer(x, y int64)
}

var _ tab = (*Session)(nil)

// Executor translates validated model actions into CDP input events against
// the managed tab.
type Executor struct {
	logger  *zap.Logger
	tab     tab
	limiter *rate.Limiter
}

var _ schemas.ActionExecutor = (*Executor)(nil)

// NewExecutor wires an executor to a live session. A zero actions-per-second
// setting disables pacing.
func NewExecutor(session *Session, cfg config.BrowserConfig, logger *zap.Logger) *Executor {
	e := &Executor{
		logger: logger.Named("executor"),
		tab:    session,
	}
	if cfg.ActionsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.ActionsPerSecond), 1)
	}
	return e
}

// Navigate loads the given URL in the managed tab and settles.
func (e *Executor) Navigate(ctx context.Context, url string) error {
	if err := e.tab.Navigate(ctx, url); err != nil {
		return fmt.Errorf("%w: %w", schemas.ErrActionExecution, err)
	}
	return nil
}

// Observe captures the current page state without acting on it.
func (e *Executor) Observe(ctx context.Context) (schemas.Observation, error) {
	obs, err := e.tab.Observe(ctx)
	if err != nil {
		return schemas.Observation{}, fmt.Errorf("%w: %w", schemas.ErrActionExecution, err)
	}
	return obs, nil
}

// Execute performs one action and captures the page afterwards. Failures are
// reported wrapping ErrActionExecution alongside whatever observation could
// still be taken, so the loop can show the model what the page looks like
// after a failed attempt.
func (e *Executor) Execute(ctx context.Context, action schemas.Action) (schemas.Observation, error) {
	// Terminal kinds never touch the page; they only need a final snapshot.
	if action.Kind.TerminalKind() {
		return e.Observe(ctx)
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return schemas.Observation{}, fmt.Errorf("%w: pacing interrupted: %w", schemas.ErrActionExecution, err)
		}
	}

	start := time.Now()
	execErr := e.dispatch(ctx, action)

	e.tab.Settle(ctx)

	obs, obsErr := e.tab.Observe(ctx)
	if execErr != nil {
		e.logger.Warn("Action failed.", zap.String("action", action.String()), zap.Error(execErr))
		return obs, fmt.Errorf("%w: %s: %w", schemas.ErrActionExecution, action.Kind, execErr)
	}
	if obsErr != nil {
		return schemas.Observation{}, fmt.Errorf("%w: observing after %s: %w", schemas.ErrActionExecution, action.Kind, obsErr)
	}

	e.logger.Debug("Action executed.",
		zap.String("action", action.String()),
		zap.Duration("duration", time.Since(start)))
	return obs, nil
}

func (e *Executor) dispatch(ctx context.Context, a schemas.Action) error {
	switch a.Kind {
	case schemas.ActionLeftClick:
		return e.click(ctx, a.Coordinate, input.Left, 1)
	case schemas.ActionDoubleClick:
		return e.click(ctx, a.Coordinate, input.Left, 2)
	case schemas.ActionTripleClick:
		return e.click(ctx, a.Coordinate, input.Left, 3)
	case schemas.ActionRightClick:
		return e.click(ctx, a.Coordinate, input.Right, 1)
	case schemas.ActionMiddleClick:
		return e.click(ctx, a.Coordinate, input.Middle, 1)
	case schemas.ActionMouseMove:
		return e.moveTo(ctx, a.Coordinate)
	case schemas.ActionLeftClickDrag:
		return e.drag(ctx, a.Start, a.Coordinate)
	case schemas.ActionTypeText:
		return e.typeText(ctx, a.Text)
	case schemas.ActionKey:
		return e.keyCombo(ctx, a.Keys)
	case schemas.ActionScroll:
		return e.scroll(ctx, a.Coordinate, a.Pixels)
	case schemas.ActionWait:
		return e.waitFor(ctx, a.Duration)
	default:
		return fmt.Errorf("kind %q cannot be executed", a.Kind)
	}
}

// resolve maps a normalized point onto the tab's pixel grid.
func (e *Executor) resolve(pt *schemas.NormalizedPoint) (int64, int64, error) {
	if pt == nil {
		return 0, 0, fmt.Errorf("missing target coordinate")
	}
	x, y := schemas.ToPixel(*pt, e.tab.Viewport())
	return x, y, nil
}

func (e *Executor) click(ctx context.Context, pt *schemas.NormalizedPoint, button input.MouseButton, clicks int) error {
	x, y, err := e.resolve(pt)
	if err != nil {
		return err
	}
	fx, fy := float64(x), float64(y)

	actions := []chromedp.Action{
		input.DispatchMouseEvent(input.MouseMoved, fx, fy),
	}
	// Repeat presses carry an increasing click count; the browser derives
	// dblclick and triple-click selection from it.
	for i := 1; i <= clicks; i++ {
		if i > 1 {
			actions = append(actions, chromedp.Sleep(multiClickDelay))
		}
		actions = append(actions,
			input.DispatchMouseEvent(input.MousePressed, fx, fy).WithButton(button).WithClickCount(int64(i)),
			input.DispatchMouseEvent(input.MouseReleased, fx, fy).WithButton(button).WithClickCount(int64(i)),
		)
	}

	opCtx, cancel := context.WithTimeout(ctx, mouseEventTimeout)
	defer cancel()
	if err := e.tab.RunActions(opCtx, actions...); err != nil {
		return err
	}
	e.tab.SetPointer(x, y)
	return nil
}

func (e *Executor) moveTo(ctx context.Context, pt *schemas.NormalizedPoint) error {
	x, y, err := e.resolve(pt)
	if err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, mouseEventTimeout)
	defer cancel()
	if err := e.tab.RunActions(opCtx, input.DispatchMouseEvent(input.MouseMoved, float64(x), float64(y))); err != nil {
		return err
	}
	e.tab.SetPointer(x, y)
	return nil
}

func (e *Executor) drag(ctx context.Context, from, to *schemas.NormalizedPoint) error {
	sx, sy, err := e.resolve(from)
	if err != nil {
		return fmt.Errorf("drag start: %w", err)
	}
	ex, ey, err := e.resolve(to)
	if err != nil {
		return fmt.Errorf("drag end: %w", err)
	}

	fsx, fsy := float64(sx), float64(sy)
	fex, fey := float64(ex), float64(ey)

	actions := []chromedp.Action{
		input.DispatchMouseEvent(input.MouseMoved, fsx, fsy),
		input.DispatchMouseEvent(input.MousePressed, fsx, fsy).WithButton(input.Left).WithClickCount(1),
	}
	// The button stays held through every intermediate move.
	for i := 1; i <= dragStepCount; i++ {
		t := float64(i) / float64(dragStepCount)
		mx := fsx + (fex-fsx)*t
		my := fsy + (fey-fsy)*t
		actions = append(actions,
			chromedp.Sleep(dragStepDelay),
			input.DispatchMouseEvent(input.MouseMoved, mx, my).WithButton(input.Left).WithButtons(1),
		)
	}
	actions = append(actions,
		chromedp.Sleep(dragStepDelay),
		input.DispatchMouseEvent(input.MouseReleased, fex, fey).WithButton(input.Left).WithClickCount(1),
	)

	opCtx, cancel := context.WithTimeout(ctx, mouseEventTimeout)
	defer cancel()
	if err := e.tab.RunActions(opCtx, actions...); err != nil {
		return err
	}
	e.tab.SetPointer(ex, ey)
	return nil
}

// selectActiveElementScript selects the focused element's content so the
// upcoming keystrokes replace it instead of appending.
const selectActiveElementScript = `(function() {
	var el = document.activeElement;
	if (!el) { return false; }
	if (typeof el.select === 'function') { el.select(); return true; }
	if (el.isContentEditable) {
		var range = document.createRange();
		range.selectNodeContents(el);
		var sel = window.getSelection();
		sel.removeAllRanges();
		sel.addRange(range);
		return true;
	}
	return false;
})()`

func (e *Executor) typeText(ctx context.Context, text string) error {
	actions := []chromedp.Action{
		chromedp.Evaluate(selectActiveElementScript, nil),
		chromedp.KeyEvent(kb.Backspace),
	}
	if text != "" {
		actions = append(actions, chromedp.SendKeys("document.activeElement", text, chromedp.ByJSPath))
	}

	opCtx, cancel := context.WithTimeout(ctx, keyEventTimeout)
	defer cancel()
	return e.tab.RunActions(opCtx, actions...)
}

func (e *Executor) keyCombo(ctx context.Context, keys []string) error {
	mods, key, err := parseCombo(keys)
	if err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, keyEventTimeout)
	defer cancel()

	// Unmodified keys with a chromedp encoding take the synthesized path,
	// which carries the key codes pages expect from a real keyboard.
	if mods == 0 {
		if encoded, ok := encodedKeys[key]; ok {
			return e.tab.RunActions(opCtx, chromedp.KeyEvent(encoded))
		}
	}

	keyDown := input.DispatchKeyEvent(input.KeyDown).WithModifiers(mods).WithKey(key)
	keyUp := input.DispatchKeyEvent(input.KeyUp).WithModifiers(mods).WithKey(key)
	return e.tab.RunActions(opCtx, keyDown, keyUp)
}

func (e *Executor) scroll(ctx context.Context, pt *schemas.NormalizedPoint, pixels int64) error {
	vp := e.tab.Viewport()
	var x, y int64
	if pt != nil {
		x, y = schemas.ToPixel(*pt, vp)
	} else {
		x, y = vp.Center()
	}

	// The model's positive direction reveals content above the viewport;
	// wheel deltas grow downward, so the sign flips.
	delta := -float64(schemas.ScaleMagnitude(pixels, vp.Height))

	opCtx, cancel := context.WithTimeout(ctx, mouseEventTimeout)
	defer cancel()
	err := e.tab.RunActions(opCtx,
		input.DispatchMouseEvent(input.MouseWheel, float64(x), float64(y)).
			WithDeltaX(0).WithDeltaY(delta),
	)
	if err != nil {
		return err
	}
	e.tab.SetPointer(x, y)
	return nil
}

func (e *Executor) waitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
