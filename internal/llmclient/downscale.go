// File: internal/llmclient/downscale.go
package llmclient

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	xdraw "golang.org/x/image/draw"

	"github.com/xkilldash9x/periscope-cli/api/schemas"
)

// prepareScreenshot resizes a captured PNG to the model's 1000x1000 grid so
// the coordinates it proposes line up with the pixels it saw. Screenshots
// already at grid size pass through untouched.
func prepareScreenshot(raw []byte) ([]byte, error) {
	src, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decoding screenshot: %w", err)
	}

	bounds := src.Bounds()
	if bounds.Dx() == schemas.NormalizedSize && bounds.Dy() == schemas.NormalizedSize {
		return raw, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, schemas.NormalizedSize, schemas.NormalizedSize))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encoding screenshot: %w", err)
	}
	return buf.Bytes(), nil
}
