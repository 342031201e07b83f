// Package handle implements the connection gesture: dragging from one
// handle to another, and the click-to-connect variant.
package handle

import (
	"math"

	"github.com/recera/vango-flow/pkg/flow"
	"github.com/recera/vango-flow/pkg/geom"
)

// DefaultRadius is the snap distance to a candidate handle in flow units.
const DefaultRadius = 20

// Ref identifies a handle on a node. An empty HandleID is the node's only
// handle of that type.
type Ref struct {
	NodeID   string
	HandleID string
	Type     flow.HandleType
}

// Validator decides whether a connection may be created.
type Validator func(c flow.Connection) bool

// Host gives the controller read access to the flow.
type Host interface {
	Nodes() *flow.NodeLookup
	Transform() geom.Transform
}

// Options configure a Controller.
type Options struct {
	Mode              flow.ConnectionMode
	Radius            float64
	NodesConnectable  bool
	IsValidConnection Validator
}

func (o Options) withDefaults() Options {
	d := o
	if d.Mode == "" {
		d.Mode = flow.ConnectionStrict
	}
	if d.Radius <= 0 {
		d.Radius = DefaultRadius
	}
	return d
}

// ConnectionState is the live state of a connection gesture, for preview
// rendering. Positions are in flow space.
type ConnectionState struct {
	InProgress   bool
	From         geom.XY
	FromHandle   flow.Handle
	FromPosition flow.Position
	To           geom.XY
	ToHandle     *flow.Handle
	ToPosition   flow.Position
	// IsValid is nil while no candidate handle is in reach.
	IsValid *bool
}

// Controller is the connection gesture state machine.
type Controller struct {
	host Host
	opts Options

	state      ConnectionState
	from       Ref
	candidate  *flow.Connection
	clickStart *Ref
}

// New creates a connection controller.
func New(host Host, opts Options) *Controller {
	return &Controller{host: host, opts: opts.withDefaults()}
}

// SetOptions replaces the options.
func (c *Controller) SetOptions(opts Options) { c.opts = opts.withDefaults() }

// State returns the live connection state.
func (c *Controller) State() ConnectionState { return c.state }

// InProgress reports whether a connection is being dragged.
func (c *Controller) InProgress() bool { return c.state.InProgress }

// ClickStart returns the handle armed by a first click, if any.
func (c *Controller) ClickStart() (Ref, bool) {
	if c.clickStart == nil {
		return Ref{}, false
	}
	return *c.clickStart, true
}

// Start begins a connection from ref with the pointer at screen point p.
// It returns false when the handle does not exist or may not start a
// connection.
func (c *Controller) Start(ref Ref, p geom.XY) bool {
	node, h, ok := c.resolve(ref)
	if !ok || !node.IsConnectable(c.opts.NodesConnectable) || !h.CanStart() {
		return false
	}
	c.from = Ref{NodeID: node.ID, HandleID: h.ID, Type: h.Type}
	c.candidate = nil
	c.state = ConnectionState{
		InProgress:   true,
		From:         node.Internals.PositionAbsolute.Add(h.Center()),
		FromHandle:   h,
		FromPosition: h.Position,
		To:           c.toFlow(p),
		ToPosition:   h.Position,
	}
	return true
}

// Move updates the live end of the connection and evaluates the closest
// handle in reach.
func (c *Controller) Move(p geom.XY) ConnectionState {
	if !c.state.InProgress {
		return c.state
	}
	pos := c.toFlow(p)
	c.state.To = pos
	c.state.ToHandle = nil
	c.state.ToPosition = c.state.FromPosition
	c.state.IsValid = nil
	c.candidate = nil

	node, h, ok := c.closest(pos)
	if !ok {
		return c.state
	}
	conn, valid := c.validate(c.from, node, h)
	c.state.ToHandle = &h
	c.state.ToPosition = h.Position
	c.state.IsValid = &valid
	if valid {
		// snap the preview onto the handle
		c.state.To = node.Internals.PositionAbsolute.Add(h.Center())
		c.candidate = &conn
	}
	return c.state
}

// End finishes the gesture. It returns the connection when the pointer was
// released over a valid handle. An armed click-to-connect is kept.
func (c *Controller) End() (flow.Connection, bool) {
	defer c.stop()
	if !c.state.InProgress || c.candidate == nil {
		return flow.Connection{}, false
	}
	return *c.candidate, true
}

// Cancel aborts a drag and disarms click-to-connect.
func (c *Controller) Cancel() {
	c.stop()
	c.clickStart = nil
}

func (c *Controller) stop() {
	c.state = ConnectionState{}
	c.candidate = nil
	c.from = Ref{}
}

// Click handles click-to-connect. The first click on a connectable handle
// arms it; a second click on a valid handle completes the connection. Any
// other second click disarms.
func (c *Controller) Click(ref Ref) (flow.Connection, bool) {
	if c.clickStart == nil {
		node, h, ok := c.resolve(ref)
		if !ok || !node.IsConnectable(c.opts.NodesConnectable) || !h.CanStart() {
			return flow.Connection{}, false
		}
		c.clickStart = &Ref{NodeID: node.ID, HandleID: h.ID, Type: h.Type}
		return flow.Connection{}, false
	}

	from := *c.clickStart
	c.clickStart = nil
	node, h, ok := c.resolve(ref)
	if !ok {
		return flow.Connection{}, false
	}
	conn, valid := c.validate(from, node, h)
	return conn, valid
}

func (c *Controller) toFlow(p geom.XY) geom.XY {
	return geom.PointToRendererPoint(p, c.host.Transform(), false, [2]float64{})
}

// resolve finds the handle ref points at.
func (c *Controller) resolve(ref Ref) (*flow.InternalNode, flow.Handle, bool) {
	node, ok := c.host.Nodes().Get(ref.NodeID)
	if !ok || node.Hidden {
		return nil, flow.Handle{}, false
	}
	for _, h := range node.Internals.HandleBounds.Of(ref.Type) {
		if h.ID == ref.HandleID {
			h.NodeID = node.ID
			return node, h, true
		}
	}
	return nil, flow.Handle{}, false
}

// closest returns the handle under pos, or else the nearest handle within
// the radius. On a tie the handle of the opposite type wins.
func (c *Controller) closest(pos geom.XY) (*flow.InternalNode, flow.Handle, bool) {
	var (
		bestNode *flow.InternalNode
		best     flow.Handle
		bestDist = math.Inf(1)
		found    bool
	)
	want := c.from.Type.Opposite()
	for _, node := range c.host.Nodes().Nodes() {
		if node.Hidden || node.Internals.HandleBounds == nil {
			continue
		}
		abs := node.Internals.PositionAbsolute
		for _, t := range []flow.HandleType{flow.HandleSource, flow.HandleTarget} {
			for _, h := range node.Internals.HandleBounds.Of(t) {
				h.NodeID = node.ID
				r := h.Rect()
				r.X += abs.X
				r.Y += abs.Y
				d := 0.0
				if !geom.IsPointInRect(pos, r) {
					ctr := abs.Add(h.Center())
					d = math.Hypot(ctr.X-pos.X, ctr.Y-pos.Y)
					if d > c.opts.Radius {
						continue
					}
				}
				if d < bestDist || (d == bestDist && h.Type == want && best.Type != want) {
					bestNode, best, bestDist, found = node, h, d, true
				}
			}
		}
	}
	return bestNode, best, found
}

// validate builds the connection from -> (node, h) and checks it against
// the connection mode, the connectable flags and the host predicate.
func (c *Controller) validate(from Ref, node *flow.InternalNode, h flow.Handle) (flow.Connection, bool) {
	conn := flow.Connection{
		Source:       from.NodeID,
		SourceHandle: from.HandleID,
		Target:       node.ID,
		TargetHandle: h.ID,
	}
	if from.Type == flow.HandleTarget {
		conn = flow.Connection{
			Source:       node.ID,
			SourceHandle: h.ID,
			Target:       from.NodeID,
			TargetHandle: from.HandleID,
		}
	}

	if !node.IsConnectable(c.opts.NodesConnectable) || !h.CanEnd() {
		return conn, false
	}
	switch c.opts.Mode {
	case flow.ConnectionLoose:
		if node.ID == from.NodeID && h.ID == from.HandleID && h.Type == from.Type {
			return conn, false
		}
	default:
		if h.Type == from.Type {
			return conn, false
		}
	}
	if c.opts.IsValidConnection != nil && !c.opts.IsValidConnection(conn) {
		return conn, false
	}
	return conn, true
}
