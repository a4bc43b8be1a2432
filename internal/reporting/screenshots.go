// internal/reporting/screenshots.go
package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/xkilldash9x/periscope-cli/api/schemas"
)

const sessionPrefixLen = 8

// ScreenshotSink persists each step's screenshot under a per-session
// directory, keyed by the first characters of the session id so parallel
// runs against the same base directory stay separate.
type ScreenshotSink struct {
	dir    string
	logger *zap.Logger
}

var _ schemas.ObservationSink = (*ScreenshotSink)(nil)

// NewScreenshotSink creates the session's screenshot directory under baseDir.
func NewScreenshotSink(baseDir, sessionID string, logger *zap.Logger) (*ScreenshotSink, error) {
	prefix := sessionID
	if len(prefix) > sessionPrefixLen {
		prefix = prefix[:sessionPrefixLen]
	}
	dir := filepath.Join(baseDir, prefix)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create screenshot directory %s: %w", dir, err)
	}
	return &ScreenshotSink{
		dir:    dir,
		logger: logger.Named("screenshots"),
	}, nil
}

// Dir returns the directory screenshots are written into.
func (s *ScreenshotSink) Dir() string {
	return s.dir
}

// Save writes one step's screenshot. Observations without image data are
// skipped silently; the loop treats persistence as fire-and-forget.
func (s *ScreenshotSink) Save(step int, obs schemas.Observation) error {
	if len(obs.Image) == 0 {
		return nil
	}

	path := filepath.Join(s.dir, fmt.Sprintf("step_%03d.png", step))
	if err := os.WriteFile(path, obs.Image, 0644); err != nil {
		return fmt.Errorf("failed to write screenshot %s: %w", path, err)
	}

	s.logger.Debug("Screenshot saved.", zap.Int("step", step), zap.String("path", path))
	return nil
}
