// internal/browser/context_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxKey string

func waitDone(t *testing.T, ctx context.Context) {
	t.Helper()
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context was not canceled in time")
	}
}

func TestCombineContextInheritsPrimaryValues(t *testing.T) {
	primary := context.WithValue(context.Background(), ctxKey("tab"), "main")

	combined, cancel := combineContext(primary, context.Background())
	defer cancel()

	assert.Equal(t, "main", combined.Value(ctxKey("tab")))
}

func TestCombineContextCancelsWithPrimary(t *testing.T) {
	primary, primaryCancel := context.WithCancel(context.Background())

	combined, cancel := combineContext(primary, context.Background())
	defer cancel()

	primaryCancel()
	waitDone(t, combined)
}

func TestCombineContextCancelsWithSecondary(t *testing.T) {
	secondary, secondaryCancel := context.WithCancel(context.Background())

	combined, cancel := combineContext(context.Background(), secondary)
	defer cancel()

	require.NoError(t, combined.Err())
	secondaryCancel()
	waitDone(t, combined)
}

func TestCombineContextCancelFunc(t *testing.T) {
	combined, cancel := combineContext(context.Background(), context.Background())

	cancel()
	waitDone(t, combined)
}
