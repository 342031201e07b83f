package viewport

import (
	"time"

	"github.com/recera/vango-flow/pkg/geom"
)

// Transition is an eased interpolation between two transforms of a
// Width x Height viewport. The flow point under the viewport centre moves
// linearly, so zooming in place keeps the centre fixed throughout.
type Transition struct {
	From, To      geom.Transform
	Width, Height float64
	Start         time.Time
	Duration      time.Duration
	Ease          func(float64) float64
}

// At returns the interpolated transform at now and whether the transition
// has reached its end.
func (tr *Transition) At(now time.Time) (geom.Transform, bool) {
	if tr.Duration <= 0 {
		return tr.To, true
	}
	elapsed := now.Sub(tr.Start)
	if elapsed >= tr.Duration {
		return tr.To, true
	}
	if elapsed < 0 {
		elapsed = 0
	}
	p := float64(elapsed) / float64(tr.Duration)
	ease := tr.Ease
	if ease == nil {
		ease = geom.EaseCubicInOut
	}
	return geom.InterpolateCentered(tr.From, tr.To, tr.Width, tr.Height, ease(p)), false
}

// animate moves the viewport to t, instantly or over opts.Duration. Any
// transition in flight is replaced.
func (pz *PanZoom) animate(t geom.Transform, opts TransitionOptions) bool {
	target := pz.constrain(t)
	if opts.Duration <= 0 {
		pz.Cancel()
		return pz.setTransform(target)
	}
	if target.Equal(pz.transform) {
		pz.Cancel()
		return false
	}

	pz.begin(Transitioning)
	pz.transition = &Transition{
		From:     pz.transform,
		To:       target,
		Width:    pz.opts.Width,
		Height:   pz.opts.Height,
		Start:    pz.opts.Now(),
		Duration: opts.Duration,
		Ease:     opts.Ease,
	}
	if pz.opts.Driver != nil {
		tr := pz.transition
		pz.task = pz.opts.Driver.Schedule(func(now time.Time) bool {
			// a newer transition or a gesture replaced this one
			if pz.transition != tr {
				return true
			}
			return pz.step(now)
		})
	}
	return true
}

// step advances the running transition and reports whether it finished.
func (pz *PanZoom) step(now time.Time) bool {
	tr := pz.transition
	if tr == nil {
		return true
	}
	t, done := tr.At(now)
	pz.setTransform(t)
	if !done {
		return false
	}
	pz.transition = nil
	pz.task = nil
	pz.end()
	return true
}

// Transitioning reports whether a programmatic transition is running.
func (pz *PanZoom) Transitioning() bool { return pz.transition != nil }

// Tick advances time-based state: the running transition when no Driver
// is set, and the debounced end of a wheel zoom.
func (pz *PanZoom) Tick(now time.Time) {
	if pz.transition != nil && pz.task == nil {
		pz.step(now)
	}
	wheel := pz.state == Zooming || (pz.state == Panning && pz.wheelPan)
	if wheel && now.Sub(pz.lastWheel) >= pz.opts.WheelDebounce {
		pz.wheelPan = false
		pz.end()
	}
}
