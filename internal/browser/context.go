// internal/browser/context.go
package browser

import (
	"context"
)

// combineContext derives a context from primary that is additionally canceled
// when secondary is canceled. The primary context carries the CDP target
// values chromedp needs, so it must be the base; the secondary context carries
// the caller's deadline.
func combineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)

	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combined.Done():
		}
	}()

	return combined, cancel
}
