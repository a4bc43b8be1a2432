// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/periscope-cli/internal/config"
)

const shutdownGracePeriod = 15 * time.Second

// Manager owns the Chrome process lifecycle and session creation. The
// process is launched lazily when the first session is requested.
type Manager struct {
	logger *zap.Logger
	cfg    *config.Config

	allocCtx    context.Context
	allocCancel context.CancelFunc

	sessions map[string]*Session
	mu       sync.RWMutex
	wg       sync.WaitGroup

	initOnce sync.Once
	initErr  error
}

// NewManager creates a new browser manager. Initialization is deferred until
// the first session is requested.
func NewManager(cfg *config.Config, logger *zap.Logger) *Manager {
	m := &Manager{
		logger:   logger.Named("browser_manager"),
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
	m.logger.Debug("Browser manager created (initialization deferred).")
	return m
}

// allocatorOptions assembles the Chrome launch flags. The agent drives a
// visible window by default; headless stays available for CI runs.
func (m *Manager) allocatorOptions() []chromedp.ExecAllocatorOption {
	return append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", m.cfg.Browser.Headless),
		chromedp.WindowSize(int(m.cfg.Browser.ViewportWidth), int(m.cfg.Browser.ViewportHeight)),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("mute-audio", true),
	)
}

// initialize prepares the exec allocator. Chrome itself starts on the first
// session's initial run.
func (m *Manager) initialize() error {
	m.initOnce.Do(func() {
		m.logger.Info("Initializing browser allocator.",
			zap.Bool("headless", m.cfg.Browser.Headless),
			zap.Int64("width", m.cfg.Browser.ViewportWidth),
			zap.Int64("height", m.cfg.Browser.ViewportHeight))

		m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(context.Background(), m.allocatorOptions()...)
	})
	return m.initErr
}

// NewSession creates a managed tab and registers it with the manager.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	if err := m.initialize(); err != nil {
		return nil, err
	}

	sessionCtx, sessionCancel := chromedp.NewContext(m.allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			m.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	session := newSession(sessionCtx, sessionCancel, m.cfg.Browser, m.logger)

	m.wg.Add(1)
	session.onClose = func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.sessions, session.ID())
		m.wg.Done()
		m.logger.Debug("Session removed from manager.", zap.String("session_id", session.ID()))
	}

	if err := session.start(ctx); err != nil {
		// Close releases the tab and decrements the waitgroup.
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		session.Close(cleanupCtx)
		return nil, fmt.Errorf("failed to initialize session: %w", err)
	}

	m.mu.Lock()
	m.sessions[session.ID()] = session
	m.mu.Unlock()

	m.logger.Info("New session created.", zap.String("session_id", session.ID()))
	return session, nil
}

// Shutdown gracefully closes all sessions and the browser process.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down browser manager.")

	if m.allocCtx == nil {
		m.logger.Debug("Manager never initialized, nothing to shut down.")
		return nil
	}

	m.mu.RLock()
	sessionsToClose := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessionsToClose = append(sessionsToClose, s)
	}
	m.mu.RUnlock()

	var g errgroup.Group
	for _, s := range sessionsToClose {
		g.Go(func() error {
			if err := s.Close(ctx); err != nil {
				return fmt.Errorf("closing session %s: %w", s.ID(), err)
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		if err := g.Wait(); err != nil {
			m.logger.Warn("Error during session close in shutdown.", zap.Error(err))
		}
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Debug("All sessions closed gracefully.")
	case <-ctx.Done():
		m.logger.Warn("Timeout waiting for sessions to close. Proceeding with forceful shutdown.", zap.Error(ctx.Err()))
	case <-time.After(shutdownGracePeriod):
		m.logger.Warn("Grace period elapsed waiting for sessions to close.")
	}

	// Dropping the allocator context terminates the Chrome process.
	m.allocCancel()

	m.logger.Info("Browser manager shutdown complete.")
	return nil
}
