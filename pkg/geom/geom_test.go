package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRectBoxRoundTrip(t *testing.T) {
	rects := []Rect{
		{X: 0, Y: 0, Width: 100, Height: 50},
		{X: -20.5, Y: 13.25, Width: 0, Height: 7},
		{X: 1e6, Y: -1e6, Width: 3, Height: 3},
	}
	for _, r := range rects {
		assert.Equal(t, r, BoxToRect(RectToBox(r)))
	}
}

func TestGetBoundsOfRects(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 100, Height: 100}
	b := Rect{X: 300, Y: 0, Width: 100, Height: 100}
	c := Rect{X: -50, Y: 20, Width: 10, Height: 300}

	got := GetBoundsOfRects(a, b)
	assert.Equal(t, Rect{X: 0, Y: 0, Width: 400, Height: 100}, got)

	// commutative and associative
	assert.Equal(t, GetBoundsOfRects(a, b), GetBoundsOfRects(b, a))
	assert.Equal(t,
		GetBoundsOfRects(GetBoundsOfRects(a, b), c),
		GetBoundsOfRects(a, GetBoundsOfRects(b, c)))

	// the infinite box is neutral
	assert.Equal(t, RectToBox(a), GetBoundsOfBoxes(InfiniteBox, RectToBox(a)))
}

func TestIntersectionTouchingEdges(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 10, Height: 10}
	assert.True(t, RectsIntersect(a, Rect{X: 10, Y: 0, Width: 5, Height: 5}))
	assert.False(t, RectsIntersect(a, Rect{X: 10.01, Y: 0, Width: 5, Height: 5}))
	assert.True(t, IsPointInRect(XY{X: 10, Y: 10}, a))
	assert.False(t, IsPointInRect(XY{X: 10, Y: 10.5}, a))
	assert.Equal(t, 25.0, GetOverlappingArea(a, Rect{X: 5, Y: 5, Width: 10, Height: 10}))
}

func TestScreenFlowRoundTrip(t *testing.T) {
	transforms := []Transform{
		Identity,
		{X: 120, Y: -40, Zoom: 2},
		{X: -3.3, Y: 9.1, Zoom: 0.37},
		{X: 1e4, Y: 1e4, Zoom: 4},
	}
	points := []XY{{0, 0}, {15, 30}, {-250.5, 999.25}, {1e5, -1e5}}
	offset := XY{X: 8, Y: 64}
	for _, tr := range transforms {
		for _, p := range points {
			back := FlowToScreen(ScreenToFlow(p, tr, offset), tr, offset)
			assert.InDelta(t, p.X, back.X, 1e-9*math.Max(1, math.Abs(p.X)))
			assert.InDelta(t, p.Y, back.Y, 1e-9*math.Max(1, math.Abs(p.Y)))
		}
	}
}

func TestPointToRendererPointSnaps(t *testing.T) {
	got := PointToRendererPoint(XY{X: 33, Y: 47}, Identity, true, [2]float64{15, 15})
	assert.Equal(t, XY{X: 30, Y: 45}, got)
}

func TestClampPosition(t *testing.T) {
	extent := CoordinateExtent{{0, 0}, {100, 100}}
	dims := Dimensions{Width: 20, Height: 10}
	assert.Equal(t, XY{X: 80, Y: 90}, ClampPosition(XY{X: 150, Y: 150}, extent, dims))
	assert.Equal(t, XY{X: 0, Y: 0}, ClampPosition(XY{X: -5, Y: -5}, extent, dims))
	assert.Equal(t, XY{X: 40, Y: 40}, ClampPosition(XY{X: 40, Y: 40}, InfiniteExtent, dims))

	// extent smaller than the node
	tiny := CoordinateExtent{{10, 10}, {15, 15}}
	assert.Equal(t, XY{X: 10, Y: 10}, ClampPosition(XY{X: 50, Y: 50}, tiny, dims))
}

func TestGetViewportForBounds(t *testing.T) {
	bounds := Rect{X: 0, Y: 0, Width: 400, Height: 100}
	got := GetViewportForBounds(bounds, 400, 400, 0.5, 2, 0)
	assert.Equal(t, 1.0, got.Zoom)
	assert.Equal(t, 0.0, got.X)
	// vertical midpoint of the box (50) lands on the viewport midpoint (200)
	assert.Equal(t, 150.0, got.Y)

	clamped := GetViewportForBounds(Rect{Width: 10, Height: 10}, 400, 400, 0.5, 2, 0)
	assert.Equal(t, 2.0, clamped.Zoom)

	padded := GetViewportForBounds(bounds, 400, 400, 0.1, 2, 0.1)
	assert.InDelta(t, 0.8, padded.Zoom, 1e-12)
}

func TestEasingAndInterpolate(t *testing.T) {
	assert.Equal(t, 0.0, EaseCubicInOut(0))
	assert.Equal(t, 1.0, EaseCubicInOut(1))
	assert.InDelta(t, 0.5, EaseCubicInOut(0.5), 1e-12)

	from := Transform{X: 0, Y: 0, Zoom: 1}
	to := Transform{X: 100, Y: -100, Zoom: 4}
	assert.Equal(t, from, Interpolate(from, to, 0))
	assert.Equal(t, to, Interpolate(from, to, 1))
	mid := Interpolate(from, to, 0.5)
	assert.InDelta(t, 2.0, mid.Zoom, 1e-12)
	assert.Equal(t, 50.0, mid.X)
}

func TestInterpolateCenteredKeepsCentre(t *testing.T) {
	from := Transform{X: 0, Y: 0, Zoom: 1}
	to := Transform{X: -600, Y: -600, Zoom: 4}
	for _, p := range []float64{0, 0.25, 0.5, 0.75, 1} {
		tr := InterpolateCentered(from, to, 400, 400, p)
		c := PointToRendererPoint(XY{X: 200, Y: 200}, tr, false, [2]float64{})
		assert.InDelta(t, 200, c.X, 1e-9, "p=%v", p)
		assert.InDelta(t, 200, c.Y, 1e-9, "p=%v", p)
	}
	assert.InDelta(t, 2.0, InterpolateCentered(from, to, 400, 400, 0.5).Zoom, 1e-12)
	assert.Equal(t, Interpolate(from, to, 0.5), InterpolateCentered(from, to, 0, 0, 0.5))
}

func TestNodePositionWithOrigin(t *testing.T) {
	got := GetNodePositionWithOrigin(XY{X: 100, Y: 100}, Dimensions{Width: 50, Height: 20}, XY{X: 0.5, Y: 0.5})
	assert.Equal(t, XY{X: 75, Y: 90}, got)
}
