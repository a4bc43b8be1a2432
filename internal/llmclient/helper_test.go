package llmclient

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/periscope-cli/api/schemas"
	"github.com/xkilldash9x/periscope-cli/internal/config"
)

// setupTestLogger creates a zap logger backed by an observer so tests can
// assert on emitted entries.
func setupTestLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

// getValidModelConfig returns a valid ModelConfig for testing purposes.
func getValidModelConfig() config.ModelConfig {
	return config.ModelConfig{
		Provider:    config.ProviderOllama,
		Model:       "test-model",
		Endpoint:    "http://localhost:11434",
		APITimeout:  5 * time.Second,
		Temperature: 0.7,
	}
}

// encodeTestPNG renders a small solid-color PNG so screenshot handling runs
// against real image bytes.
func encodeTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 30, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// makeInferenceRequest builds a request with one history turn and a real
// screenshot payload.
func makeInferenceRequest(t *testing.T) schemas.InferenceRequest {
	t.Helper()
	past, err := schemas.ParseAction([]byte(`{"action":"left_click","coordinate":[500,500]}`))
	require.NoError(t, err)
	return schemas.InferenceRequest{
		Task: "find the pricing page",
		History: []schemas.Turn{
			{
				Observation: schemas.Observation{
					URL:      "https://example.com/",
					Viewport: schemas.DefaultViewport,
				},
				Action: past,
			},
		},
		Current: schemas.Observation{
			Image:    encodeTestPNG(t, 8, 6),
			URL:      "https://example.com/home",
			Viewport: schemas.DefaultViewport,
		},
	}
}
