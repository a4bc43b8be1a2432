package schemas

import "math"

// -- Coordinate Schemas --

// NormalizedSize is the side length of the model's coordinate space. The
// model reasons over a fixed square regardless of the real viewport; every
// screenshot it sees is scaled to this size before inference.
const NormalizedSize = 1000

// NormalizedPoint is a point in the model's coordinate space, with both
// axes in [0, NormalizedSize].
type NormalizedPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Clamped snaps the point into the normalized range. Model output is not
// fully trusted; out-of-range values are pulled to the nearest edge instead
// of being rejected.
func (p NormalizedPoint) Clamped() NormalizedPoint {
	return NormalizedPoint{
		X: clampFloat(p.X, 0, NormalizedSize),
		Y: clampFloat(p.Y, 0, NormalizedSize),
	}
}

// Viewport holds the pixel dimensions of the managed browser tab.
type Viewport struct {
	Width  int64 `json:"width"`
	Height int64 `json:"height"`
}

// DefaultViewport is the window size used when none is configured.
var DefaultViewport = Viewport{Width: 1440, Height: 900}

// ToPixel maps a normalized point onto the viewport. The result always lies
// within [0,W-1]x[0,H-1]; inputs outside the normalized range are clamped
// first, so the mapping is total and never fails.
func ToPixel(p NormalizedPoint, vp Viewport) (int64, int64) {
	p = p.Clamped()
	px := int64(math.Round(p.X / NormalizedSize * float64(vp.Width)))
	py := int64(math.Round(p.Y / NormalizedSize * float64(vp.Height)))
	return clampInt(px, 0, vp.Width-1), clampInt(py, 0, vp.Height-1)
}

// Center returns the pixel midpoint of the viewport, used as the anchor for
// scroll events that carry no explicit coordinate.
func (vp Viewport) Center() (int64, int64) {
	return clampInt(vp.Width/2, 0, vp.Width-1), clampInt(vp.Height/2, 0, vp.Height-1)
}

// ScaleMagnitude converts a signed normalized distance into pixels against
// the given extent. Unlike point mapping it is not clamped; a scroll may
// legitimately span more than one screen.
func ScaleMagnitude(normalized int64, extent int64) int64 {
	return int64(math.Round(float64(normalized) / NormalizedSize * float64(extent)))
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int64) int64 {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
