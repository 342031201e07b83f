package drag

import (
	"github.com/recera/vango-flow/pkg/flow"
	"github.com/recera/vango-flow/pkg/geom"
)

// SelectionMode decides which nodes a selection rectangle picks up.
type SelectionMode string

const (
	// SelectionPartial selects nodes the rectangle touches.
	SelectionPartial SelectionMode = "partial"
	// SelectionFull selects nodes fully inside the rectangle.
	SelectionFull SelectionMode = "full"
)

// Selection is the selection rectangle gesture on the pane.
type Selection struct {
	host       Host
	mode       SelectionMode
	selectable bool

	active   bool
	additive bool
	start    geom.XY // flow space
	rect     geom.Rect
	// kept holds the nodes selected before an additive gesture.
	kept map[string]bool
}

// NewSelection creates a selection rectangle controller.
func NewSelection(host Host, mode SelectionMode, elementsSelectable bool) *Selection {
	if mode == "" {
		mode = SelectionFull
	}
	return &Selection{host: host, mode: mode, selectable: elementsSelectable}
}

// Active reports whether a rectangle is being drawn.
func (s *Selection) Active() bool { return s.active }

// Rect returns the current rectangle in flow space.
func (s *Selection) Rect() geom.Rect { return s.rect }

// SetMode changes the selection mode.
func (s *Selection) SetMode(mode SelectionMode) {
	if mode != "" {
		s.mode = mode
	}
}

// Start begins a rectangle at the pointer. Without Multi the current
// selection is cleared.
func (s *Selection) Start(p Pointer) Result {
	if !s.selectable {
		return Result{}
	}
	s.active = true
	s.additive = p.Multi
	s.start = geom.PointToRendererPoint(p.Point, s.host.Transform(), false, [2]float64{})
	s.rect = geom.Rect{X: s.start.X, Y: s.start.Y}
	s.kept = make(map[string]bool)
	if s.additive {
		for _, n := range s.host.Nodes().Nodes() {
			if n.Selected {
				s.kept[n.ID] = true
			}
		}
		return Result{}
	}
	return s.apply(map[string]bool{})
}

// Move resizes the rectangle and returns the selection changes it causes.
func (s *Selection) Move(p Pointer) Result {
	if !s.active {
		return Result{}
	}
	cur := geom.PointToRendererPoint(p.Point, s.host.Transform(), false, [2]float64{})
	s.rect = geom.BoxToRect(geom.Box{
		X:  min(s.start.X, cur.X),
		Y:  min(s.start.Y, cur.Y),
		X2: max(s.start.X, cur.X),
		Y2: max(s.start.Y, cur.Y),
	})

	inside := flow.GetNodesInside(s.host.Nodes(), s.rect, s.mode == SelectionPartial, s.selectable)
	want := make(map[string]bool, len(inside)+len(s.kept))
	for id := range s.kept {
		want[id] = true
	}
	for _, n := range inside {
		want[n.ID] = true
	}
	return s.apply(want)
}

// End finishes the gesture. The selection made so far is kept.
func (s *Selection) End() {
	s.active = false
	s.rect = geom.Rect{}
	s.kept = nil
}

// apply turns the wanted node set into node and edge selection changes.
// Edges touching a selected node are selected with it.
func (s *Selection) apply(want map[string]bool) Result {
	nodes := s.host.Nodes()
	edges := s.host.Edges()

	ids := make([]string, 0, len(want))
	for _, id := range nodes.IDs() {
		if want[id] {
			ids = append(ids, id)
		}
	}
	wantEdges := make(map[string]bool)
	for _, e := range flow.GetConnectedEdges(ids, edges) {
		if e.IsSelectable(s.selectable) {
			wantEdges[e.ID] = true
		}
	}
	if s.additive {
		for _, e := range edges {
			if e.Selected {
				wantEdges[e.ID] = true
			}
		}
	}
	return Result{
		Nodes: flow.SelectionChanges(nodes.Nodes(), want),
		Edges: flow.EdgeSelectionChanges(edges, wantEdges),
	}
}
