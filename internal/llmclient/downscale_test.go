package llmclient

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/periscope-cli/api/schemas"
)

func TestPrepareScreenshot_ResizesToModelGrid(t *testing.T) {
	raw := encodeTestPNG(t, 1440, 900)

	out, err := prepareScreenshot(raw)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, schemas.NormalizedSize, img.Bounds().Dx())
	assert.Equal(t, schemas.NormalizedSize, img.Bounds().Dy())
}

func TestPrepareScreenshot_PassesThroughGridSized(t *testing.T) {
	raw := encodeTestPNG(t, schemas.NormalizedSize, schemas.NormalizedSize)

	out, err := prepareScreenshot(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, out, "Grid-sized screenshots should not be re-encoded")
}

func TestPrepareScreenshot_RejectsInvalidPNG(t *testing.T) {
	_, err := prepareScreenshot([]byte("not a png"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding screenshot")
}
