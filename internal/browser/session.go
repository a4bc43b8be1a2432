// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/periscope-cli/api/schemas"
	"github.com/xkilldash9x/periscope-cli/internal/config"
)

const (
	settleReadyTimeout = 10 * time.Second
	observeTimeout     = 20 * time.Second
	popupCloseTimeout  = 3 * time.Second
)

// Session is one managed browser tab. The agent drives exactly one; every
// CDP interaction with the page goes through it.
type Session struct {
	id     string
	logger *zap.Logger
	cfg    config.BrowserConfig

	// ctx is the chromedp context carrying the tab's CDP target.
	ctx    context.Context
	cancel context.CancelFunc

	targetID target.ID
	viewport schemas.Viewport

	// runMu serializes CDP traffic; the tab handles one batch of input at
	// a time.
	runMu sync.Mutex

	pointerMu sync.Mutex
	pointerX  int64
	pointerY  int64

	popupMu       sync.Mutex
	pendingPopups map[target.ID]struct{}

	onClose func()

	mu       sync.Mutex
	isClosed bool
}

// newSession wraps an already-created chromedp context. The target is not
// attached until start runs; the manager sets onClose before that.
func newSession(ctx context.Context, cancel context.CancelFunc, cfg config.BrowserConfig, logger *zap.Logger) *Session {
	sessionID := uuid.New().String()
	return &Session{
		id:            sessionID,
		logger:        logger.With(zap.String("session_id", sessionID)),
		cfg:           cfg,
		ctx:           ctx,
		cancel:        cancel,
		pendingPopups: make(map[target.ID]struct{}),
	}
}

// start attaches the CDP target, measures the tab, and installs the
// single-tab policy.
func (s *Session) start(ctx context.Context) error {
	// The first Run launches the browser (for the first session) and creates
	// the tab's target.
	if err := s.RunActions(ctx); err != nil {
		return fmt.Errorf("starting browser target: %w", err)
	}

	if c := chromedp.FromContext(s.ctx); c != nil && c.Target != nil {
		s.targetID = c.Target.TargetID
	}

	// Without discovery the browser never reports created targets and the
	// popup interceptor stays blind.
	err := s.RunActions(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return target.SetDiscoverTargets(true).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("enabling target discovery: %w", err)
	}

	s.measureViewport(ctx)

	x, y := s.viewport.Center()
	s.SetPointer(x, y)

	s.watchTargets()

	s.logger.Debug("Session started.",
		zap.String("target_id", string(s.targetID)),
		zap.Int64("viewport_width", s.viewport.Width),
		zap.Int64("viewport_height", s.viewport.Height))
	return nil
}

// measureViewport reads the tab's real inner dimensions. Window chrome can
// shave pixels off the configured size, and coordinate mapping has to match
// what the screenshot actually shows.
func (s *Session) measureViewport(ctx context.Context) {
	var dims []int64
	err := s.RunActions(ctx, chromedp.Evaluate(`[window.innerWidth, window.innerHeight]`, &dims))
	if err == nil && len(dims) == 2 && dims[0] > 0 && dims[1] > 0 {
		s.viewport = schemas.Viewport{Width: dims[0], Height: dims[1]}
		return
	}
	s.logger.Debug("Falling back to the configured viewport size.", zap.Error(err))
	s.viewport = s.cfg.Viewport()
}

// ID returns the unique identifier for the session.
func (s *Session) ID() string {
	return s.id
}

// Viewport returns the tab dimensions measured at startup.
func (s *Session) Viewport() schemas.Viewport {
	return s.viewport
}

// SetPointer records the last position input events were dispatched at. The
// pointer marker is drawn there when cursor highlighting is on.
func (s *Session) SetPointer(x, y int64) {
	s.pointerMu.Lock()
	s.pointerX, s.pointerY = x, y
	s.pointerMu.Unlock()
}

// Pointer returns the last recorded pointer position.
func (s *Session) Pointer() (int64, int64) {
	s.pointerMu.Lock()
	defer s.pointerMu.Unlock()
	return s.pointerX, s.pointerY
}

// RunActions executes chromedp actions against the managed tab, honoring both
// the session lifetime and the caller's deadline.
func (s *Session) RunActions(ctx context.Context, actions ...chromedp.Action) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	runCtx, cancel := combineContext(s.ctx, ctx)
	defer cancel()

	return chromedp.Run(runCtx, actions...)
}

// Navigate loads a URL in the managed tab and waits for the page to settle.
func (s *Session) Navigate(ctx context.Context, rawURL string) error {
	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigationTimeout)
	defer cancel()

	s.logger.Debug("Navigating.", zap.String("url", rawURL))
	if err := s.RunActions(navCtx, chromedp.Navigate(rawURL)); err != nil {
		return fmt.Errorf("navigating to %s: %w", rawURL, err)
	}

	s.Settle(ctx)
	return nil
}

// Settle waits for the document to report itself ready, then holds for the
// configured delay so late renders make it into the next screenshot. Best
// effort: a page that never quiets down must not wedge the loop.
func (s *Session) Settle(ctx context.Context) {
	readyCtx, cancel := context.WithTimeout(ctx, settleReadyTimeout)
	if err := s.RunActions(readyCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		s.logger.Debug("Readiness wait did not complete.", zap.Error(err))
	}
	cancel()

	if s.cfg.SettleDelay <= 0 {
		return
	}
	timer := time.NewTimer(s.cfg.SettleDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// pointerMarkerScript draws or moves the pointer marker. The marker is
// excluded from hit testing so it never swallows the click it marks.
const pointerMarkerScript = `(function(x, y) {
	var id = 'periscope-pointer-marker';
	var el = document.getElementById(id);
	if (!el) {
		el = document.createElement('div');
		el.id = id;
		el.style.cssText = 'position:fixed;width:24px;height:24px;margin:-12px 0 0 -12px;' +
			'border:3px solid #e53935;border-radius:50%%;background:rgba(229,57,53,0.25);' +
			'pointer-events:none;z-index:2147483647;';
		(document.body || document.documentElement).appendChild(el);
	}
	el.style.left = x + 'px';
	el.style.top = y + 'px';
})(%d, %d)`

const removePointerMarkerScript = `(function() {
	var el = document.getElementById('periscope-pointer-marker');
	if (el && el.parentNode) { el.parentNode.removeChild(el); }
})()`

// Observe captures the current page state: viewport screenshot plus URL.
func (s *Session) Observe(ctx context.Context) (schemas.Observation, error) {
	opCtx, cancel := context.WithTimeout(ctx, observeTimeout)
	defer cancel()

	if s.cfg.HighlightCursor {
		x, y := s.Pointer()
		script := fmt.Sprintf(pointerMarkerScript, x, y)
		if err := s.RunActions(opCtx, chromedp.Evaluate(script, nil)); err != nil {
			s.logger.Debug("Could not draw the pointer marker.", zap.Error(err))
		}
	}

	var (
		shot []byte
		url  string
	)
	err := s.RunActions(opCtx, chromedp.CaptureScreenshot(&shot), chromedp.Location(&url))

	if s.cfg.HighlightCursor {
		if rmErr := s.RunActions(opCtx, chromedp.Evaluate(removePointerMarkerScript, nil)); rmErr != nil {
			s.logger.Debug("Could not remove the pointer marker.", zap.Error(rmErr))
		}
	}

	if err != nil {
		return schemas.Observation{}, fmt.Errorf("capturing observation: %w", err)
	}

	return schemas.Observation{
		Image:    shot,
		URL:      url,
		Viewport: s.viewport,
		Captured: time.Now().UTC(),
	}, nil
}

// watchTargets installs the single-tab policy: any page target opened beside
// the managed tab is closed, and the tab follows the popup's URL instead.
func (s *Session) watchTargets() {
	chromedp.ListenBrowser(s.ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *target.EventTargetCreated:
			s.onTargetInfo(e.TargetInfo, true)
		case *target.EventTargetInfoChanged:
			s.onTargetInfo(e.TargetInfo, false)
		case *target.EventTargetDestroyed:
			s.popupMu.Lock()
			delete(s.pendingPopups, e.TargetID)
			s.popupMu.Unlock()
		}
	})
}

func (s *Session) onTargetInfo(info *target.Info, created bool) {
	id, url, adopt := s.trackTarget(info, created)
	if adopt {
		// Listener callbacks run on the event loop; the adoption dispatches
		// CDP commands and must not block it.
		go s.adoptPopup(id, url)
	}
}

// trackTarget maintains the popup bookkeeping and reports when a popup has a
// real URL worth following. Popups usually open as about:blank and receive
// their URL in a later info-changed event, so undecided targets are parked
// until one arrives.
func (s *Session) trackTarget(info *target.Info, created bool) (target.ID, string, bool) {
	if info == nil || info.Type != "page" || info.TargetID == s.targetID {
		return "", "", false
	}

	s.popupMu.Lock()
	defer s.popupMu.Unlock()

	if created {
		s.pendingPopups[info.TargetID] = struct{}{}
	} else if _, pending := s.pendingPopups[info.TargetID]; !pending {
		return "", "", false
	}
	if !adoptableURL(info.URL) {
		return "", "", false
	}
	delete(s.pendingPopups, info.TargetID)
	return info.TargetID, info.URL, true
}

func adoptableURL(url string) bool {
	return url != "" && url != "about:blank"
}

// adoptPopup closes a popup target and points the managed tab at its URL.
func (s *Session) adoptPopup(id target.ID, url string) {
	s.logger.Info("Intercepted popup; continuing in the managed tab.",
		zap.String("popup_target", string(id)), zap.String("url", url))

	closeCtx, cancel := context.WithTimeout(context.Background(), popupCloseTimeout)
	defer cancel()
	err := s.RunActions(closeCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return target.CloseTarget(id).Do(ctx)
	}))
	if err != nil {
		s.logger.Warn("Could not close popup target.", zap.Error(err))
	}

	navCtx, navCancel := context.WithTimeout(context.Background(), s.cfg.NavigationTimeout)
	defer navCancel()
	if err := s.Navigate(navCtx, url); err != nil {
		s.logger.Warn("Could not follow popup URL in the managed tab.", zap.Error(err))
	}
}

// Close terminates the session's tab and releases its registration.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")

	if s.cancel != nil {
		s.cancel()
	}
	if s.onClose != nil {
		s.onClose()
	}
	return nil
}
