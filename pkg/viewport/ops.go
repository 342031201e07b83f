package viewport

import (
	"math"
	"time"

	"github.com/recera/vango-flow/pkg/geom"
)

// PanBy translates the viewport by delta screen pixels. It reports whether
// the viewport moved, which is false once a translate extent stops it.
func (pz *PanZoom) PanBy(delta geom.XY) bool {
	if delta.X == 0 && delta.Y == 0 {
		return false
	}
	pz.Cancel()
	t := pz.transform
	t.X += delta.X
	t.Y += delta.Y
	return pz.setTransform(t)
}

// ZoomTo zooms to level keeping the viewport centre fixed.
func (pz *PanZoom) ZoomTo(level float64, opts TransitionOptions) bool {
	return pz.ScaleTo(level, pz.center(), opts)
}

// ZoomBy multiplies the current zoom by factor.
func (pz *PanZoom) ZoomBy(factor float64, opts TransitionOptions) bool {
	if factor <= 0 {
		return false
	}
	return pz.ZoomTo(pz.transform.Zoom*factor, opts)
}

// ZoomIn zooms in by one step.
func (pz *PanZoom) ZoomIn(opts TransitionOptions) bool {
	return pz.ZoomBy(DefaultZoomStep, opts)
}

// ZoomOut zooms out by one step.
func (pz *PanZoom) ZoomOut(opts TransitionOptions) bool {
	return pz.ZoomBy(1/DefaultZoomStep, opts)
}

// ScaleTo zooms to level keeping the flow point under anchor (screen
// coordinates) in place.
func (pz *PanZoom) ScaleTo(level float64, anchor geom.XY, opts TransitionOptions) bool {
	if level <= 0 || math.IsNaN(level) {
		return false
	}
	level = geom.Clamp(level, pz.opts.MinZoom, pz.opts.MaxZoom)
	return pz.animate(scaleAround(pz.transform, level, anchor), opts)
}

// SetViewport moves to t.
func (pz *PanZoom) SetViewport(t geom.Transform, opts TransitionOptions) bool {
	if t.Zoom <= 0 {
		t.Zoom = pz.transform.Zoom
	}
	return pz.animate(t, opts)
}

// SetCenter centres the viewport on the flow point (x, y). A zoom of zero
// keeps the current zoom.
func (pz *PanZoom) SetCenter(x, y, zoom float64, opts TransitionOptions) bool {
	if zoom <= 0 {
		zoom = pz.transform.Zoom
	}
	zoom = geom.Clamp(zoom, pz.opts.MinZoom, pz.opts.MaxZoom)
	c := pz.center()
	return pz.animate(geom.Transform{X: c.X - x*zoom, Y: c.Y - y*zoom, Zoom: zoom}, opts)
}

// FitBounds fits rect into the viewport.
func (pz *PanZoom) FitBounds(rect geom.Rect, padding float64, opts TransitionOptions) bool {
	if pz.opts.Width <= 0 || pz.opts.Height <= 0 {
		return false
	}
	t := geom.GetViewportForBounds(rect, pz.opts.Width, pz.opts.Height, pz.opts.MinZoom, pz.opts.MaxZoom, padding)
	pz.animate(t, opts)
	return true
}

// FitView fits the union of rects into the viewport. It returns false when
// there is nothing to fit or the viewport has no size.
func (pz *PanZoom) FitView(rects []geom.Rect, opts FitViewOptions) bool {
	if len(rects) == 0 || pz.opts.Width <= 0 || pz.opts.Height <= 0 {
		return false
	}
	bounds := rects[0]
	for _, r := range rects[1:] {
		bounds = geom.GetBoundsOfRects(bounds, r)
	}

	minZoom, maxZoom := pz.opts.MinZoom, pz.opts.MaxZoom
	if opts.MinZoom > 0 {
		minZoom = math.Max(opts.MinZoom, minZoom)
	}
	if opts.MaxZoom > 0 {
		maxZoom = math.Min(opts.MaxZoom, maxZoom)
	}
	if maxZoom < minZoom {
		maxZoom = minZoom
	}
	t := geom.GetViewportForBounds(bounds, pz.opts.Width, pz.opts.Height, minZoom, maxZoom, opts.Padding)
	pz.animate(t, TransitionOptions{Duration: opts.Duration})
	return true
}

// WheelEvent is a wheel or trackpad scroll at Point (screen coordinates).
type WheelEvent struct {
	Point          geom.XY
	DeltaX, DeltaY float64
	// Ctrl is set for pinch gestures and ctrl+wheel.
	Ctrl bool
	Time time.Time
}

// Wheel zooms around the pointer, or pans when PanOnScroll is set and
// Ctrl is not held. It reports whether the transform changed.
func (pz *PanZoom) Wheel(ev WheelEvent) bool {
	if ev.Time.IsZero() {
		ev.Time = pz.opts.Now()
	}
	if pz.opts.PanOnScroll && !ev.Ctrl {
		if pz.state != Panning {
			pz.begin(Panning)
		}
		pz.wheelPan = true
		pz.lastWheel = ev.Time
		t := pz.transform
		t.X -= ev.DeltaX * pz.opts.PanOnScrollSpeed
		t.Y -= ev.DeltaY * pz.opts.PanOnScrollSpeed
		return pz.setTransform(t)
	}
	if !pz.opts.ZoomOnScroll && !ev.Ctrl {
		return false
	}

	if pz.state != Zooming {
		pz.begin(Zooming)
	}
	pz.lastWheel = ev.Time

	mult := 1.0
	if ev.Ctrl {
		mult = 10
	}
	factor := math.Pow(2, -ev.DeltaY*wheelDeltaFactor*mult)
	level := geom.Clamp(pz.transform.Zoom*factor, pz.opts.MinZoom, pz.opts.MaxZoom)
	return pz.setTransform(scaleAround(pz.transform, level, ev.Point))
}

// PanStart begins a drag pan at the screen point p.
func (pz *PanZoom) PanStart(p geom.XY) {
	pz.begin(Panning)
	pz.wheelPan = false
	pz.panStart = p
	pz.panOrigin = pz.transform
}

// PanMove continues a drag pan. Positions are relative to the pan start so
// the pan does not drift.
func (pz *PanZoom) PanMove(p geom.XY) bool {
	if pz.state != Panning {
		return false
	}
	d := p.Sub(pz.panStart)
	return pz.setTransform(geom.Transform{
		X:    pz.panOrigin.X + d.X,
		Y:    pz.panOrigin.Y + d.Y,
		Zoom: pz.panOrigin.Zoom,
	})
}

// PanEnd finishes a drag pan.
func (pz *PanZoom) PanEnd() {
	if pz.state == Panning {
		pz.end()
	}
}

func (pz *PanZoom) center() geom.XY {
	return geom.XY{X: pz.opts.Width / 2, Y: pz.opts.Height / 2}
}

// scaleAround returns t zoomed to level with anchor fixed on screen.
func scaleAround(t geom.Transform, level float64, anchor geom.XY) geom.Transform {
	fx := (anchor.X - t.X) / t.Zoom
	fy := (anchor.Y - t.Y) / t.Zoom
	return geom.Transform{
		X:    anchor.X - fx*level,
		Y:    anchor.Y - fy*level,
		Zoom: level,
	}
}
