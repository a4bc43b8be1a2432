// internal/browser/session_test.go
package browser

import (
	"context"
	"testing"

	"github.com/chromedp/cdproto/target"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/periscope-cli/api/schemas"
	"github.com/xkilldash9x/periscope-cli/internal/config"
)

func newPopupTestSession() *Session {
	return &Session{
		id:            "test-session",
		logger:        zap.NewNop(),
		targetID:      target.ID("own-target"),
		pendingPopups: make(map[target.ID]struct{}),
	}
}

func pageInfo(id target.ID, url string) *target.Info {
	return &target.Info{TargetID: id, Type: "page", URL: url}
}

func TestTrackTargetPopupLifecycle(t *testing.T) {
	s := newPopupTestSession()
	popup := target.ID("popup-1")

	// Popups open as about:blank; the created event parks them undecided.
	_, _, adopt := s.trackTarget(pageInfo(popup, "about:blank"), true)
	assert.False(t, adopt)
	assert.Contains(t, s.pendingPopups, popup)

	// The real URL arrives in a later info-changed event.
	id, url, adopt := s.trackTarget(pageInfo(popup, "https://example.test/offer"), false)
	require.True(t, adopt)
	assert.Equal(t, popup, id)
	assert.Equal(t, "https://example.test/offer", url)
	assert.NotContains(t, s.pendingPopups, popup)

	// Later updates to the same target no longer trigger adoption.
	_, _, adopt = s.trackTarget(pageInfo(popup, "https://example.test/offer/2"), false)
	assert.False(t, adopt)
}

func TestTrackTargetCreatedWithURL(t *testing.T) {
	s := newPopupTestSession()

	id, url, adopt := s.trackTarget(pageInfo("popup-2", "https://example.test/direct"), true)
	require.True(t, adopt)
	assert.Equal(t, target.ID("popup-2"), id)
	assert.Equal(t, "https://example.test/direct", url)
	assert.Empty(t, s.pendingPopups)
}

func TestTrackTargetIgnoresOwnTarget(t *testing.T) {
	s := newPopupTestSession()

	_, _, adopt := s.trackTarget(pageInfo("own-target", "https://example.test/"), true)
	assert.False(t, adopt)
	assert.Empty(t, s.pendingPopups)
}

func TestTrackTargetIgnoresNonPageTargets(t *testing.T) {
	s := newPopupTestSession()

	for _, typ := range []string{"iframe", "service_worker", "background_page"} {
		info := &target.Info{TargetID: "other", Type: typ, URL: "https://example.test/"}
		_, _, adopt := s.trackTarget(info, true)
		assert.False(t, adopt, "type %s", typ)
	}
	assert.Empty(t, s.pendingPopups)

	_, _, adopt := s.trackTarget(nil, true)
	assert.False(t, adopt)
}

func TestTrackTargetIgnoresUnknownInfoChange(t *testing.T) {
	s := newPopupTestSession()

	// An info-changed event for a target never seen being created belongs to
	// a pre-existing tab, not a popup.
	_, _, adopt := s.trackTarget(pageInfo("stranger", "https://example.test/"), false)
	assert.False(t, adopt)
	assert.Empty(t, s.pendingPopups)
}

func TestAdoptableURL(t *testing.T) {
	assert.False(t, adoptableURL(""))
	assert.False(t, adoptableURL("about:blank"))
	assert.True(t, adoptableURL("https://example.test/"))
}

func TestNewSessionIdentity(t *testing.T) {
	cfg := config.BrowserConfig{}
	a := newSession(context.Background(), func() {}, cfg, zap.NewNop())
	b := newSession(context.Background(), func() {}, cfg, zap.NewNop())

	_, err := uuid.Parse(a.ID())
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.NotNil(t, a.pendingPopups)
}

func TestSessionPointer(t *testing.T) {
	s := newPopupTestSession()
	s.viewport = schemas.Viewport{Width: 1440, Height: 900}

	s.SetPointer(320, 240)
	x, y := s.Pointer()
	assert.Equal(t, int64(320), x)
	assert.Equal(t, int64(240), y)
	assert.Equal(t, schemas.Viewport{Width: 1440, Height: 900}, s.Viewport())
}

func TestSessionCloseIdempotent(t *testing.T) {
	var cancels, closes int
	s := &Session{
		id:     "test-session",
		logger: zap.NewNop(),
		cancel: func() { cancels++ },
	}
	s.onClose = func() { closes++ }

	require.NoError(t, s.Close(context.Background()))
	require.NoError(t, s.Close(context.Background()))

	assert.Equal(t, 1, cancels)
	assert.Equal(t, 1, closes)
}
