// Package geom holds the coordinate math shared by the flow engine:
// rectangles and boxes, the screen<->flow transform, extents and snapping.
//
// Every function is pure. Nothing here panics on finite input.
package geom

import "math"

// XY is a point or a vector.
type XY struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p+o.
func (p XY) Add(o XY) XY { return XY{X: p.X + o.X, Y: p.Y + o.Y} }

// Sub returns p-o.
func (p XY) Sub(o XY) XY { return XY{X: p.X - o.X, Y: p.Y - o.Y} }

// Dimensions is a width/height pair.
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsZero reports whether either side is zero (unmeasured).
func (d Dimensions) IsZero() bool { return d.Width == 0 || d.Height == 0 }

// Rect is the x/y/width/height representation of an area.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Box is the two-corner representation of an area.
type Box struct {
	X  float64
	Y  float64
	X2 float64
	Y2 float64
}

// InfiniteBox is the neutral element of box union.
var InfiniteBox = Box{X: math.Inf(1), Y: math.Inf(1), X2: math.Inf(-1), Y2: math.Inf(-1)}

// RectToBox converts a Rect into its corner form.
func RectToBox(r Rect) Box {
	return Box{X: r.X, Y: r.Y, X2: r.X + r.Width, Y2: r.Y + r.Height}
}

// BoxToRect converts a Box into its x/y/width/height form.
func BoxToRect(b Box) Rect {
	return Rect{X: b.X, Y: b.Y, Width: b.X2 - b.X, Height: b.Y2 - b.Y}
}

// GetBoundsOfBoxes returns the smallest box containing a and b.
func GetBoundsOfBoxes(a, b Box) Box {
	return Box{
		X:  math.Min(a.X, b.X),
		Y:  math.Min(a.Y, b.Y),
		X2: math.Max(a.X2, b.X2),
		Y2: math.Max(a.Y2, b.Y2),
	}
}

// GetBoundsOfRects returns the smallest rect containing a and b.
func GetBoundsOfRects(a, b Rect) Rect {
	return BoxToRect(GetBoundsOfBoxes(RectToBox(a), RectToBox(b)))
}

// IsPointInRect reports whether p lies inside r. Points on the border count.
func IsPointInRect(p XY, r Rect) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// RectsIntersect reports whether a and b overlap. Touching edges count as
// an intersection so that a selection rectangle grazing a node selects it.
func RectsIntersect(a, b Rect) bool {
	return a.X <= b.X+b.Width && b.X <= a.X+a.Width &&
		a.Y <= b.Y+b.Height && b.Y <= a.Y+a.Height
}

// GetOverlappingArea returns the area shared by a and b.
func GetOverlappingArea(a, b Rect) float64 {
	xOverlap := math.Max(0, math.Min(a.X+a.Width, b.X+b.Width)-math.Max(a.X, b.X))
	yOverlap := math.Max(0, math.Min(a.Y+a.Height, b.Y+b.Height)-math.Max(a.Y, b.Y))
	return xOverlap * yOverlap
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

// CoordinateExtent is a [[minX, minY], [maxX, maxY]] bounding rectangle.
type CoordinateExtent [2][2]float64

// InfiniteExtent does not restrict anything.
var InfiniteExtent = CoordinateExtent{
	{math.Inf(-1), math.Inf(-1)},
	{math.Inf(1), math.Inf(1)},
}

// IsInfinite reports whether e is unbounded on every side.
func (e CoordinateExtent) IsInfinite() bool {
	return math.IsInf(e[0][0], -1) && math.IsInf(e[0][1], -1) &&
		math.IsInf(e[1][0], 1) && math.IsInf(e[1][1], 1)
}

// ExtentFromRect builds the extent covering r.
func ExtentFromRect(r Rect) CoordinateExtent {
	return CoordinateExtent{{r.X, r.Y}, {r.X + r.Width, r.Y + r.Height}}
}

// ClampPosition keeps an area of size dims at pos inside extent.
func ClampPosition(pos XY, extent CoordinateExtent, dims Dimensions) XY {
	maxX := extent[1][0] - dims.Width
	maxY := extent[1][1] - dims.Height
	// an extent smaller than the node pins it to the top-left corner
	if maxX < extent[0][0] {
		maxX = extent[0][0]
	}
	if maxY < extent[0][1] {
		maxY = extent[0][1]
	}
	return XY{
		X: Clamp(pos.X, extent[0][0], maxX),
		Y: Clamp(pos.Y, extent[0][1], maxY),
	}
}

// SnapPosition rounds pos to the nearest grid point.
func SnapPosition(pos XY, grid [2]float64) XY {
	out := pos
	if grid[0] > 0 {
		out.X = grid[0] * math.Round(pos.X/grid[0])
	}
	if grid[1] > 0 {
		out.Y = grid[1] * math.Round(pos.Y/grid[1])
	}
	return out
}

// GetNodePositionWithOrigin converts a position anchored at origin (a
// fraction of the node size, [0,0] = top-left) into a top-left position.
func GetNodePositionWithOrigin(pos XY, dims Dimensions, origin XY) XY {
	return XY{
		X: pos.X - dims.Width*origin.X,
		Y: pos.Y - dims.Height*origin.Y,
	}
}
