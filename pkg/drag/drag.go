// Package drag implements the node drag and selection rectangle gestures.
//
// Controllers do not mutate the flow. They read the current nodes through
// a Host and return change records for the caller to apply.
package drag

import (
	"math"

	"github.com/recera/vango-flow/pkg/flow"
	"github.com/recera/vango-flow/pkg/geom"
)

// State of a drag gesture.
type State int

const (
	Ready State = iota
	// Pending is a pointerdown on a node that has not moved past the
	// threshold yet.
	Pending
	Dragging
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Pending:
		return "pending"
	case Dragging:
		return "dragging"
	default:
		return "unknown"
	}
}

// DefaultThreshold is the click distance in screen pixels.
const DefaultThreshold = 1

// Host gives controllers read access to the flow they operate on.
type Host interface {
	Nodes() *flow.NodeLookup
	Edges() []flow.Edge
	Transform() geom.Transform
	// Size is the viewport size in screen pixels.
	Size() (width, height float64)
	// PanBy pans the viewport and reports whether it moved.
	PanBy(delta geom.XY) bool
}

// Options configure a Controller.
type Options struct {
	// Threshold is the distance in screen pixels the pointer must travel
	// before a pointerdown becomes a drag.
	Threshold  float64
	SnapToGrid bool
	SnapGrid   [2]float64
	NodeExtent *geom.CoordinateExtent
	NodeOrigin geom.XY

	SelectNodesOnDrag  bool
	NodesDraggable     bool
	ElementsSelectable bool

	AutoPanOnDrag bool
	AutoPanSpeed  float64
	AutoPanMargin float64
}

func (o Options) withDefaults() Options {
	d := o
	if d.Threshold < 0 {
		d.Threshold = 0
	}
	if d.SnapGrid[0] <= 0 || d.SnapGrid[1] <= 0 {
		d.SnapGrid = [2]float64{15, 15}
	}
	if d.AutoPanSpeed <= 0 {
		d.AutoPanSpeed = 15
	}
	if d.AutoPanMargin <= 0 {
		d.AutoPanMargin = 40
	}
	return d
}

// Pointer is a pointer event in container-relative screen coordinates.
type Pointer struct {
	Point geom.XY
	// Multi is set when the selection modifier (shift / meta) is held.
	Multi bool
}

// Result is what a gesture step produced.
type Result struct {
	Nodes []flow.NodeChange
	Edges []flow.EdgeChange
	// Clicked is set when a pointerup ended a gesture that never passed
	// the threshold.
	Clicked bool
}

// item is the snapshot of one dragged node.
type item struct {
	id       string
	parentID string
	origin   geom.XY
	dims     geom.Dimensions
	startAbs geom.XY
	extent   *flow.NodeExtent
	expand   bool
	lastPos  geom.XY
	lastAbs  geom.XY
}

// Controller is the node drag state machine.
type Controller struct {
	host Host
	opts Options

	state     State
	target    string
	multi     bool
	clickOnly bool
	startScr  geom.XY
	startFlow geom.XY
	lastScr   geom.XY
	items     []*item
}

// New creates a drag controller.
func New(host Host, opts Options) *Controller {
	return &Controller{host: host, opts: opts.withDefaults()}
}

// State returns the gesture state.
func (c *Controller) State() State { return c.state }

// Target returns the id of the node the gesture started on.
func (c *Controller) Target() string { return c.target }

// Active reports whether a gesture is in progress.
func (c *Controller) Active() bool { return c.state != Ready }

// SetOptions replaces the options. A running gesture keeps its snapshot.
func (c *Controller) SetOptions(opts Options) { c.opts = opts.withDefaults() }

// Start handles a pointerdown on node id. It returns false when the node
// does not exist. A node that cannot be dragged still gets the gesture so
// that the pointerup selects it.
func (c *Controller) Start(id string, p Pointer) bool {
	n, ok := c.host.Nodes().Get(id)
	if !ok || n.Hidden {
		return false
	}
	c.clickOnly = !n.IsDraggable(c.opts.NodesDraggable)
	c.state = Pending
	c.target = id
	c.multi = p.Multi
	c.startScr = p.Point
	c.lastScr = p.Point
	c.startFlow = c.toFlow(p.Point)
	c.items = nil
	return true
}

// Move handles a pointermove. Positions are computed from the snapshot
// taken when the drag started plus the total pointer delta.
func (c *Controller) Move(p Pointer) Result {
	c.lastScr = p.Point
	switch c.state {
	case Pending:
		d := p.Point.Sub(c.startScr)
		if c.clickOnly || math.Hypot(d.X, d.Y) <= c.opts.Threshold {
			return Result{}
		}
		res := c.begin()
		if c.state != Dragging {
			return res
		}
		res.Nodes = append(res.Nodes, c.positions(p.Point, true)...)
		return res
	case Dragging:
		return Result{Nodes: c.positions(p.Point, true)}
	default:
		return Result{}
	}
}

// End handles a pointerup. A gesture that never passed the threshold is
// turned into a click on the target node.
func (c *Controller) End(p Pointer) Result {
	defer c.reset()
	switch c.state {
	case Pending:
		return c.click(p.Multi)
	case Dragging:
		return Result{Nodes: c.finish()}
	default:
		return Result{}
	}
}

// Cancel aborts the gesture. Nodes stay where they were last moved; only
// their dragging flag is cleared.
func (c *Controller) Cancel() Result {
	defer c.reset()
	if c.state != Dragging {
		return Result{}
	}
	return Result{Nodes: c.finish()}
}

// AutoPan pans the viewport while the pointer rests near its border and
// moves the dragged nodes along. It is called once per frame.
func (c *Controller) AutoPan() Result {
	if c.state != Dragging || !c.opts.AutoPanOnDrag {
		return Result{}
	}
	w, h := c.host.Size()
	if w <= 0 || h <= 0 {
		return Result{}
	}
	delta := geom.XY{
		X: autoPanVelocity(c.lastScr.X, w, c.opts.AutoPanMargin, c.opts.AutoPanSpeed),
		Y: autoPanVelocity(c.lastScr.Y, h, c.opts.AutoPanMargin, c.opts.AutoPanSpeed),
	}
	if delta.X == 0 && delta.Y == 0 {
		return Result{}
	}
	if !c.host.PanBy(delta) {
		return Result{}
	}
	return Result{Nodes: c.positions(c.lastScr, true)}
}

func autoPanVelocity(v, size, margin, speed float64) float64 {
	switch {
	case v < margin:
		return geom.Clamp(math.Abs(v-margin), 1, margin) / margin * speed
	case v > size-margin:
		return -geom.Clamp(math.Abs(v-size+margin), 1, margin) / margin * speed
	default:
		return 0
	}
}

func (c *Controller) reset() {
	c.state = Ready
	c.target = ""
	c.items = nil
}

func (c *Controller) toFlow(p geom.XY) geom.XY {
	return geom.PointToRendererPoint(p, c.host.Transform(), false, [2]float64{})
}

// begin moves Pending to Dragging: it selects the target if needed and
// snapshots every node that moves with it.
func (c *Controller) begin() Result {
	nodes := c.host.Nodes()
	target, ok := nodes.Get(c.target)
	if !ok {
		c.reset()
		return Result{}
	}

	var res Result
	selectable := target.IsSelectable(c.opts.ElementsSelectable)
	dragSelection := target.Selected
	if !target.Selected && c.opts.SelectNodesOnDrag && selectable {
		res = c.selectOnly(target.ID, c.multi)
		dragSelection = c.multi
	}

	moving := map[string]bool{target.ID: true}
	if dragSelection {
		for _, n := range nodes.Nodes() {
			if n.Selected && !n.Hidden && n.IsDraggable(c.opts.NodesDraggable) {
				moving[n.ID] = true
			}
		}
	}
	for _, n := range nodes.Nodes() {
		if !moving[n.ID] || c.hasMovingAncestor(n, moving) {
			continue
		}
		origin := c.opts.NodeOrigin
		if n.Origin != nil {
			origin = *n.Origin
		}
		c.items = append(c.items, &item{
			id:       n.ID,
			parentID: n.ParentID,
			origin:   origin,
			dims:     n.Dimensions(),
			startAbs: n.Internals.PositionAbsolute,
			extent:   n.Extent,
			expand:   n.ExpandParent,
			lastPos:  n.Position,
			lastAbs:  n.Internals.PositionAbsolute,
		})
	}
	c.state = Dragging
	return res
}

// hasMovingAncestor drops children of dragged parents; they follow their
// parent without a change of their own.
func (c *Controller) hasMovingAncestor(n *flow.InternalNode, moving map[string]bool) bool {
	nodes := c.host.Nodes()
	for id := range moving {
		if id != n.ID && nodes.IsAncestor(id, n.ID) {
			return true
		}
	}
	return false
}

func (c *Controller) selectOnly(id string, multi bool) Result {
	nodes := c.host.Nodes()
	want := make(map[string]bool)
	if multi {
		for _, n := range nodes.Nodes() {
			if n.Selected {
				want[n.ID] = true
			}
		}
	}
	want[id] = true
	res := Result{Nodes: flow.SelectionChanges(nodes.Nodes(), want)}
	if !multi {
		res.Edges = flow.EdgeSelectionChanges(c.host.Edges(), nil)
	}
	return res
}

func (c *Controller) click(multi bool) Result {
	n, ok := c.host.Nodes().Get(c.target)
	if !ok || !n.IsSelectable(c.opts.ElementsSelectable) {
		return Result{Clicked: true}
	}
	var res Result
	if multi && n.Selected {
		res.Nodes = []flow.NodeChange{{Type: flow.ChangeSelect, ID: n.ID, Selected: false}}
	} else {
		res = c.selectOnly(n.ID, multi)
	}
	res.Clicked = true
	return res
}

// positions computes the position changes for the pointer at screen point p.
func (c *Controller) positions(p geom.XY, dragging bool) []flow.NodeChange {
	nodes := c.host.Nodes()
	delta := c.toFlow(p).Sub(c.startFlow)
	global := geom.InfiniteExtent
	if c.opts.NodeExtent != nil {
		global = *c.opts.NodeExtent
	}

	for _, it := range c.items {
		abs := it.startAbs.Add(delta)
		if c.opts.SnapToGrid {
			abs = geom.SnapPosition(abs, c.opts.SnapGrid)
		}
		if !global.IsInfinite() {
			abs = geom.ClampPosition(abs, global, it.dims)
		}
		abs = c.clampToExtent(it, abs)
		it.lastAbs = abs
	}

	var changes []flow.NodeChange
	parents := c.expandParents(&changes)

	for _, it := range c.items {
		parentAbs := geom.XY{}
		if it.parentID != "" {
			if pa, ok := parents[it.parentID]; ok {
				parentAbs = pa
			} else if parent, ok := nodes.Get(it.parentID); ok {
				parentAbs = parent.Internals.PositionAbsolute
			}
		}
		pos := it.lastAbs.Sub(parentAbs).Add(geom.XY{
			X: it.origin.X * it.dims.Width,
			Y: it.origin.Y * it.dims.Height,
		})
		it.lastPos = pos
		changes = append(changes, positionChange(it.id, pos, it.lastAbs, dragging))
	}
	return changes
}

func (c *Controller) clampToExtent(it *item, abs geom.XY) geom.XY {
	if it.extent == nil {
		return abs
	}
	parent, hasParent := c.host.Nodes().Get(it.parentID)
	if it.extent.Parent {
		if !hasParent || it.expand || !parent.IsMeasured() {
			return abs
		}
		return geom.ClampPosition(abs, geom.ExtentFromRect(parent.Rect()), it.dims)
	}
	ext := it.extent.Coords
	if hasParent {
		pa := parent.Internals.PositionAbsolute
		ext = geom.CoordinateExtent{
			{ext[0][0] + pa.X, ext[0][1] + pa.Y},
			{ext[1][0] + pa.X, ext[1][1] + pa.Y},
		}
	}
	return geom.ClampPosition(abs, ext, it.dims)
}

// finish emits the final positions with dragging cleared.
func (c *Controller) finish() []flow.NodeChange {
	changes := make([]flow.NodeChange, 0, len(c.items))
	for _, it := range c.items {
		changes = append(changes, positionChange(it.id, it.lastPos, it.lastAbs, false))
	}
	return changes
}

func positionChange(id string, pos, abs geom.XY, dragging bool) flow.NodeChange {
	return flow.NodeChange{
		Type:             flow.ChangePosition,
		ID:               id,
		Position:         &pos,
		PositionAbsolute: &abs,
		Dragging:         &dragging,
	}
}
