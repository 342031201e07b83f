// Package viewport implements the pan/zoom controller of a flow. It owns
// the transform between flow space and screen space and funnels every
// write through one clamped setter.
//
// A PanZoom is not safe for concurrent use. The flow store serialises
// access to it.
package viewport

import (
	"math"
	"time"

	"github.com/recera/vango-flow/pkg/geom"
	"github.com/recera/vango-flow/pkg/scheduler"
)

// State is the interaction state of the controller.
type State int

const (
	Idle State = iota
	Panning
	Zooming
	Transitioning
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Panning:
		return "panning"
	case Zooming:
		return "zooming"
	case Transitioning:
		return "transitioning"
	default:
		return "unknown"
	}
}

// Defaults used when options are left zero.
const (
	DefaultMinZoom       = 0.5
	DefaultMaxZoom       = 2
	DefaultWheelDebounce = 150 * time.Millisecond
	DefaultZoomStep      = 1.2
	wheelDeltaFactor     = 0.002
)

// FrameDriver runs per-frame work, normally a *scheduler.Scheduler.
type FrameDriver interface {
	Schedule(fn scheduler.FrameFunc) *scheduler.Task
}

// Options configure a PanZoom.
type Options struct {
	MinZoom float64
	MaxZoom float64
	// TranslateExtent limits how far the flow can be panned; nil is
	// unbounded.
	TranslateExtent *geom.CoordinateExtent
	Width, Height   float64
	Initial         geom.Transform

	ZoomOnScroll     bool
	PanOnScroll      bool
	PanOnScrollSpeed float64
	WheelDebounce    time.Duration

	// Driver advances transitions on its own. Without it the host calls
	// Tick every frame.
	Driver FrameDriver
	Now    func() time.Time

	OnStart  func(t geom.Transform)
	OnChange func(t geom.Transform)
	OnEnd    func(t geom.Transform)
}

func (o Options) withDefaults() Options {
	d := o
	if d.MinZoom <= 0 {
		d.MinZoom = DefaultMinZoom
	}
	if d.MaxZoom <= 0 {
		d.MaxZoom = DefaultMaxZoom
	}
	if d.MaxZoom < d.MinZoom {
		d.MaxZoom = d.MinZoom
	}
	if d.PanOnScrollSpeed <= 0 {
		d.PanOnScrollSpeed = 0.5
	}
	if d.WheelDebounce <= 0 {
		d.WheelDebounce = DefaultWheelDebounce
	}
	if d.Initial.Zoom == 0 {
		d.Initial = geom.Identity
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// TransitionOptions control programmatic viewport changes. A zero
// Duration applies the change instantly.
type TransitionOptions struct {
	Duration time.Duration
	Ease     func(float64) float64
}

// FitViewOptions control FitView.
type FitViewOptions struct {
	// Padding is a fraction of the viewport below 1, pixels otherwise.
	Padding  float64
	MinZoom  float64
	MaxZoom  float64
	Duration time.Duration
}

// PanZoom is the viewport controller.
type PanZoom struct {
	opts      Options
	transform geom.Transform
	state     State

	transition *Transition
	task       *scheduler.Task

	panStart  geom.XY
	panOrigin geom.Transform
	lastWheel time.Time
	wheelPan  bool
}

// New creates a controller. The initial transform is clamped like every
// other write.
func New(opts Options) *PanZoom {
	o := opts.withDefaults()
	pz := &PanZoom{opts: o}
	pz.transform = pz.constrain(o.Initial)
	return pz
}

// Transform returns the current transform.
func (pz *PanZoom) Transform() geom.Transform { return pz.transform }

// Zoom returns the current scale.
func (pz *PanZoom) Zoom() float64 { return pz.transform.Zoom }

// State returns the interaction state.
func (pz *PanZoom) State() State { return pz.state }

// Size returns the viewport size in screen pixels.
func (pz *PanZoom) Size() (float64, float64) { return pz.opts.Width, pz.opts.Height }

// ZoomExtent returns [minZoom, maxZoom].
func (pz *PanZoom) ZoomExtent() (float64, float64) { return pz.opts.MinZoom, pz.opts.MaxZoom }

// SetSize updates the viewport size and re-applies the clamps.
func (pz *PanZoom) SetSize(width, height float64) {
	pz.opts.Width, pz.opts.Height = width, height
	pz.setTransform(pz.transform)
}

// SetZoomExtent updates the zoom limits and re-applies the clamps.
func (pz *PanZoom) SetZoomExtent(minZoom, maxZoom float64) {
	if minZoom > 0 {
		pz.opts.MinZoom = minZoom
	}
	if maxZoom > 0 {
		pz.opts.MaxZoom = math.Max(maxZoom, pz.opts.MinZoom)
	}
	pz.setTransform(pz.transform)
}

// SetTranslateExtent updates the pan limits; nil removes them.
func (pz *PanZoom) SetTranslateExtent(extent *geom.CoordinateExtent) {
	pz.opts.TranslateExtent = extent
	pz.setTransform(pz.transform)
}

// setTransform is the only writer of pz.transform. It reports whether the
// transform changed.
func (pz *PanZoom) setTransform(t geom.Transform) bool {
	next := pz.constrain(t)
	if next.Equal(pz.transform) {
		return false
	}
	pz.transform = next
	if pz.opts.OnChange != nil {
		pz.opts.OnChange(next)
	}
	return true
}

// constrain clamps the zoom to the zoom extent and the translation to the
// translate extent, keeping the extent centred when it is smaller than
// the viewport.
func (pz *PanZoom) constrain(t geom.Transform) geom.Transform {
	if t.Zoom <= 0 || math.IsNaN(t.Zoom) {
		t.Zoom = pz.transform.Zoom
		if t.Zoom <= 0 {
			t.Zoom = 1
		}
	}
	t.Zoom = geom.Clamp(t.Zoom, pz.opts.MinZoom, pz.opts.MaxZoom)

	ext := pz.opts.TranslateExtent
	if ext == nil || ext.IsInfinite() || pz.opts.Width <= 0 || pz.opts.Height <= 0 {
		return t
	}
	invert := func(screen, translate float64) float64 { return (screen - translate) / t.Zoom }

	dx0 := invert(0, t.X) - ext[0][0]
	dx1 := invert(pz.opts.Width, t.X) - ext[1][0]
	dy0 := invert(0, t.Y) - ext[0][1]
	dy1 := invert(pz.opts.Height, t.Y) - ext[1][1]

	t.X += t.Zoom * constrainAxis(dx0, dx1)
	t.Y += t.Zoom * constrainAxis(dy0, dy1)
	return t
}

// constrainAxis returns the flow-space shift that brings one axis back into
// the extent.
func constrainAxis(d0, d1 float64) float64 {
	if d1 > d0 {
		return (d0 + d1) / 2
	}
	if m := math.Min(0, d0); m != 0 {
		return m
	}
	return math.Max(0, d1)
}

// Cancel stops a running transition, leaving the transform where it is.
func (pz *PanZoom) Cancel() {
	if pz.task != nil {
		pz.task.Cancel()
		pz.task = nil
	}
	if pz.transition != nil {
		pz.transition = nil
		if pz.state == Transitioning {
			pz.state = Idle
		}
	}
}

// begin is called by every user gesture: any transition in flight is
// dropped immediately.
func (pz *PanZoom) begin(s State) {
	pz.Cancel()
	if pz.state == Idle && pz.opts.OnStart != nil {
		pz.opts.OnStart(pz.transform)
	}
	pz.state = s
}

func (pz *PanZoom) end() {
	if pz.state == Idle {
		return
	}
	pz.state = Idle
	if pz.opts.OnEnd != nil {
		pz.opts.OnEnd(pz.transform)
	}
}
