package store

import (
	"cmp"
	"math"
	"slices"

	"github.com/recera/vango-flow/pkg/drag"
	"github.com/recera/vango-flow/pkg/flow"
	"github.com/recera/vango-flow/pkg/geom"
	"github.com/recera/vango-flow/pkg/handle"
	"github.com/recera/vango-flow/pkg/viewport"
)

// TargetKind is what a pointer is over.
type TargetKind int

const (
	TargetPane TargetKind = iota
	TargetNode
	TargetHandle
)

func (k TargetKind) String() string {
	switch k {
	case TargetPane:
		return "pane"
	case TargetNode:
		return "node"
	case TargetHandle:
		return "handle"
	default:
		return "unknown"
	}
}

// Target is the result of a hit test.
type Target struct {
	Kind   TargetKind
	NodeID string
	Handle handle.Ref
}

// PointerEvent is a pointer event in client coordinates. The container
// offset set with SetBounds is subtracted.
type PointerEvent struct {
	// ID tells concurrent pointers (touches) apart.
	ID    int
	Point geom.XY
	// Multi is set while the selection modifier (shift / meta) is held.
	Multi bool
}

type gestureKind int

const (
	gestureDrag gestureKind = iota
	gestureConnect
	gestureSelect
	gesturePan
	gesturePaneClick
)

// gesture is the state machine a pointer is bound to, from pointerdown to
// pointerup.
type gesture struct {
	kind   gestureKind
	start  geom.XY
	moved  bool
	handle handle.Ref
}

// HitTest resolves a client point to a handle, a node body or the pane.
// Nodes are tested top-most first; within a node its handles win over its
// body.
func (f *Flow) HitTest(p geom.XY) Target {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hitTest(p.Sub(f.offset))
}

func (f *Flow) hitTest(p geom.XY) Target {
	fp := geom.PointToRendererPoint(p, f.pz.Transform(), false, [2]float64{})
	nodes := f.nodeLookup.Nodes()
	order := make([]int, len(nodes))
	for i := range order {
		order[i] = i
	}
	// higher z first, later nodes first on ties
	slices.SortStableFunc(order, func(a, b int) int {
		if c := cmp.Compare(nodes[b].Internals.Z, nodes[a].Internals.Z); c != 0 {
			return c
		}
		return cmp.Compare(b, a)
	})

	for _, i := range order {
		n := nodes[i]
		if n.Hidden {
			continue
		}
		abs := n.Internals.PositionAbsolute
		for _, t := range []flow.HandleType{flow.HandleSource, flow.HandleTarget} {
			for _, h := range n.Internals.HandleBounds.Of(t) {
				r := h.Rect()
				r.X += abs.X
				r.Y += abs.Y
				if geom.IsPointInRect(fp, r) {
					return Target{
						Kind:   TargetHandle,
						NodeID: n.ID,
						Handle: handle.Ref{NodeID: n.ID, HandleID: h.ID, Type: h.Type},
					}
				}
			}
		}
		if n.IsMeasured() && geom.IsPointInRect(fp, n.Rect()) {
			return Target{Kind: TargetNode, NodeID: n.ID}
		}
	}
	return Target{Kind: TargetPane}
}

// PointerDown binds the pointer to one gesture. A handle starts a
// connection and never a node drag, a node body starts a drag and the pane
// starts a pan or a selection rectangle. A pointer that is already bound
// is ignored.
func (f *Flow) PointerDown(ev PointerEvent) Target {
	b := f.lock()
	defer f.unlock(b)

	p := ev.Point.Sub(f.offset)
	target := f.hitTest(p)
	if _, busy := f.gestures[ev.ID]; busy {
		return target
	}
	g := &gesture{start: p}

	if target.Kind != TargetHandle {
		// a click anywhere else disarms click-to-connect
		if _, armed := f.connect.ClickStart(); armed {
			f.connect.Cancel()
		}
	}

	switch target.Kind {
	case TargetHandle:
		if f.connect.InProgress() {
			return target
		}
		g.kind = gestureConnect
		g.handle = target.Handle
		if f.connect.Start(target.Handle, p) {
			f.connection.Set(f.connect.State())
		}
	case TargetNode:
		if f.drag.Active() || !f.drag.Start(target.NodeID, drag.Pointer{Point: p, Multi: ev.Multi}) {
			return target
		}
		g.kind = gestureDrag
	default:
		switch {
		case (ev.Multi || f.opts.SelectionOnDrag) && on(f.opts.ElementsSelectable) && !f.sel.Active():
			g.kind = gestureSelect
			f.applyResult(f.sel.Start(drag.Pointer{Point: p, Multi: ev.Multi}))
			f.publishSelection()
		case on(f.opts.PanOnDrag) && f.pz.State() != viewport.Panning:
			g.kind = gesturePan
			f.pz.PanStart(p)
		default:
			g.kind = gesturePaneClick
		}
	}
	f.gestures[ev.ID] = g
	f.log.Debug("pointer down", "pointer", ev.ID, "target", target.Kind, "node", target.NodeID)
	return target
}

// PointerMove feeds the gesture the pointer is bound to.
func (f *Flow) PointerMove(ev PointerEvent) {
	b := f.lock()
	defer f.unlock(b)

	g, ok := f.gestures[ev.ID]
	if !ok {
		return
	}
	p := ev.Point.Sub(f.offset)
	if d := p.Sub(g.start); math.Hypot(d.X, d.Y) > f.clickDistance() {
		g.moved = true
	}
	switch g.kind {
	case gestureDrag:
		f.applyResult(f.drag.Move(drag.Pointer{Point: p, Multi: ev.Multi}))
	case gestureConnect:
		if f.connect.InProgress() {
			f.connection.Set(f.connect.Move(p))
		}
	case gestureSelect:
		f.applyResult(f.sel.Move(drag.Pointer{Point: p, Multi: ev.Multi}))
		f.publishSelection()
	case gesturePan:
		f.pz.PanMove(p)
	}
}

// PointerUp finishes the gesture the pointer is bound to.
func (f *Flow) PointerUp(ev PointerEvent) {
	b := f.lock()
	defer f.unlock(b)

	g, ok := f.gestures[ev.ID]
	if !ok {
		return
	}
	delete(f.gestures, ev.ID)
	p := ev.Point.Sub(f.offset)

	switch g.kind {
	case gestureDrag:
		f.applyResult(f.drag.End(drag.Pointer{Point: p, Multi: ev.Multi}))
	case gestureConnect:
		conn, ok := f.connect.End()
		f.connection.Set(handle.ConnectionState{})
		if ok {
			f.completeConnection(conn)
			return
		}
		if !g.moved && on(f.opts.ConnectOnClick) {
			if conn, ok := f.connect.Click(g.handle); ok {
				f.completeConnection(conn)
			}
		}
	case gestureSelect:
		f.sel.End()
		f.publishSelection()
	case gesturePan:
		f.pz.PanEnd()
		if !g.moved {
			f.unselectAll()
		}
	case gesturePaneClick:
		f.unselectAll()
	}
}

// PointerCancel aborts the gesture the pointer is bound to. Dragged nodes
// stay where they were last moved.
func (f *Flow) PointerCancel(ev PointerEvent) {
	b := f.lock()
	defer f.unlock(b)

	g, ok := f.gestures[ev.ID]
	if !ok {
		return
	}
	delete(f.gestures, ev.ID)
	switch g.kind {
	case gestureDrag:
		f.applyResult(f.drag.Cancel())
	case gestureConnect:
		f.connect.Cancel()
		f.connection.Set(handle.ConnectionState{})
	case gestureSelect:
		f.sel.End()
		f.publishSelection()
	case gesturePan:
		f.pz.PanEnd()
	}
}

// Wheel zooms or pans the viewport. Point is in client coordinates.
func (f *Flow) Wheel(ev viewport.WheelEvent) bool {
	b := f.lock()
	defer f.unlock(b)
	ev.Point = ev.Point.Sub(f.offset)
	return f.pz.Wheel(ev)
}

// CancelConnection aborts a connection drag and disarms click-to-connect,
// as the Escape key does.
func (f *Flow) CancelConnection() {
	b := f.lock()
	defer f.unlock(b)
	f.connect.Cancel()
	f.connection.Set(handle.ConnectionState{})
	for id, g := range f.gestures {
		if g.kind == gestureConnect {
			delete(f.gestures, id)
		}
	}
}

// DeleteSelected removes the selected nodes and edges, as the delete key
// does.
func (f *Flow) DeleteSelected() (nodeIDs, edgeIDs []string) {
	b := f.lock()
	defer f.unlock(b)

	var nodes, edges []string
	for _, n := range f.nodeLookup.Nodes() {
		if n.Selected {
			nodes = append(nodes, n.ID)
		}
	}
	for _, e := range f.edgeLookup.Edges() {
		if e.Selected {
			edges = append(edges, e.ID)
		}
	}
	return f.deleteElements(nodes, edges)
}

func (f *Flow) clickDistance() float64 {
	return max(f.opts.NodeDragThreshold, 0)
}

func (f *Flow) publishSelection() {
	if !f.sel.Active() {
		f.selection.Set(nil)
		return
	}
	r := f.sel.Rect()
	f.selection.Set(&r)
}
