package geom

import "math"

// Transform maps flow space onto screen space: screen = flow*Zoom + (X,Y).
type Transform struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// Identity is the transform a viewport starts with.
var Identity = Transform{Zoom: 1}

// Equal compares two transforms exactly.
func (t Transform) Equal(o Transform) bool {
	return t.X == o.X && t.Y == o.Y && t.Zoom == o.Zoom
}

// PointToRendererPoint converts a point relative to the container into
// flow space, optionally snapping the result.
func PointToRendererPoint(p XY, t Transform, snapToGrid bool, grid [2]float64) XY {
	out := XY{
		X: (p.X - t.X) / t.Zoom,
		Y: (p.Y - t.Y) / t.Zoom,
	}
	if snapToGrid {
		return SnapPosition(out, grid)
	}
	return out
}

// RendererPointToPoint is the inverse of PointToRendererPoint without
// snapping.
func RendererPointToPoint(p XY, t Transform) XY {
	return XY{
		X: p.X*t.Zoom + t.X,
		Y: p.Y*t.Zoom + t.Y,
	}
}

// ScreenToFlow converts a screen point into flow space, accounting for the
// container's offset on screen.
func ScreenToFlow(p XY, t Transform, containerOffset XY) XY {
	return PointToRendererPoint(p.Sub(containerOffset), t, false, [2]float64{})
}

// FlowToScreen converts a flow point into a screen point.
func FlowToScreen(p XY, t Transform, containerOffset XY) XY {
	return RendererPointToPoint(p, t).Add(containerOffset)
}

// GetViewportForBounds returns the transform that centres bounds inside a
// width x height viewport. padding below 1 is a fraction of the viewport
// size, otherwise pixels on each side.
func GetViewportForBounds(bounds Rect, width, height, minZoom, maxZoom, padding float64) Transform {
	padX, padY := padding, padding
	if padding < 1 {
		padX = width * padding
		padY = height * padding
	}
	availW := width - 2*padX
	availH := height - 2*padY
	if availW <= 0 {
		availW = width
	}
	if availH <= 0 {
		availH = height
	}

	zoomX := math.Inf(1)
	if bounds.Width > 0 {
		zoomX = availW / bounds.Width
	}
	zoomY := math.Inf(1)
	if bounds.Height > 0 {
		zoomY = availH / bounds.Height
	}
	zoom := math.Min(zoomX, zoomY)
	if math.IsInf(zoom, 1) {
		zoom = maxZoom
	}
	zoom = Clamp(zoom, minZoom, maxZoom)

	cx := bounds.X + bounds.Width/2
	cy := bounds.Y + bounds.Height/2
	return Transform{
		X:    width/2 - cx*zoom,
		Y:    height/2 - cy*zoom,
		Zoom: zoom,
	}
}

// EaseCubicInOut is the default transition curve.
func EaseCubicInOut(t float64) float64 {
	t = Clamp(t, 0, 1)
	if t < 0.5 {
		return 4 * t * t * t
	}
	f := 2*t - 2
	return 0.5*f*f*f + 1
}

// Interpolate blends two transforms. Zoom is interpolated geometrically so
// the perceived speed stays constant.
func Interpolate(from, to Transform, t float64) Transform {
	t = Clamp(t, 0, 1)
	if t == 1 {
		return to
	}
	zoom := lerpZoom(from.Zoom, to.Zoom, t)
	return Transform{
		X:    from.X + (to.X-from.X)*t,
		Y:    from.Y + (to.Y-from.Y)*t,
		Zoom: zoom,
	}
}

// InterpolateCentered blends two transforms of a width x height viewport.
// The flow point under the viewport centre moves linearly and the
// translation follows from it, so a pure zoom keeps its centre fixed on
// every frame. Without a size or with a non-positive zoom it falls back to
// Interpolate.
func InterpolateCentered(from, to Transform, width, height, t float64) Transform {
	if width <= 0 || height <= 0 || from.Zoom <= 0 || to.Zoom <= 0 {
		return Interpolate(from, to, t)
	}
	t = Clamp(t, 0, 1)
	if t == 1 {
		return to
	}
	hw, hh := width/2, height/2
	fromC := XY{X: (hw - from.X) / from.Zoom, Y: (hh - from.Y) / from.Zoom}
	toC := XY{X: (hw - to.X) / to.Zoom, Y: (hh - to.Y) / to.Zoom}
	c := XY{X: fromC.X + (toC.X-fromC.X)*t, Y: fromC.Y + (toC.Y-fromC.Y)*t}
	zoom := lerpZoom(from.Zoom, to.Zoom, t)
	return Transform{X: hw - c.X*zoom, Y: hh - c.Y*zoom, Zoom: zoom}
}

func lerpZoom(from, to, t float64) float64 {
	if from > 0 && to > 0 {
		return from * math.Pow(to/from, t)
	}
	return from + (to-from)*t
}
