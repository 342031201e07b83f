// Package flow holds the authoritative node and edge state of a diagram:
// the lookups built from user-supplied nodes and edges, the connection
// index, and the change records that describe every mutation.
package flow

import (
	"github.com/recera/vango-flow/pkg/geom"
)

// HandleType is the role of a handle on a node.
type HandleType string

const (
	HandleSource HandleType = "source"
	HandleTarget HandleType = "target"
)

// Opposite returns the other handle type.
func (h HandleType) Opposite() HandleType {
	if h == HandleSource {
		return HandleTarget
	}
	return HandleSource
}

// Position is the side of a node a handle sits on.
type Position string

const (
	Top    Position = "top"
	Right  Position = "right"
	Bottom Position = "bottom"
	Left   Position = "left"
)

// ConnectionMode controls which handle pairs may be connected.
type ConnectionMode string

const (
	// ConnectionStrict only allows source->target pairs.
	ConnectionStrict ConnectionMode = "strict"
	// ConnectionLoose also allows source->source and target->target.
	ConnectionLoose ConnectionMode = "loose"
)

// ExtentParent is the Extent value that confines a child to its parent.
const ExtentParent = "parent"

// NodeExtent is either the "parent" keyword or a fixed coordinate extent.
type NodeExtent struct {
	Parent bool
	Coords geom.CoordinateExtent
}

// ParentExtent returns the extent that confines a node to its parent.
func ParentExtent() *NodeExtent { return &NodeExtent{Parent: true} }

// Handle is a named connection point. X/Y are relative to the node.
type Handle struct {
	ID       string     `json:"id,omitempty"`
	NodeID   string     `json:"nodeId"`
	Type     HandleType `json:"type"`
	Position Position   `json:"position"`
	X        float64    `json:"x"`
	Y        float64    `json:"y"`
	Width    float64    `json:"width"`
	Height   float64    `json:"height"`

	// nil means the handle follows its node's connectable flag.
	ConnectableStart *bool `json:"isConnectableStart,omitempty"`
	ConnectableEnd   *bool `json:"isConnectableEnd,omitempty"`
}

// CanStart reports whether a connection may be dragged out of the handle.
func (h Handle) CanStart() bool { return resolve(h.ConnectableStart, true) }

// CanEnd reports whether a connection may be dropped onto the handle.
func (h Handle) CanEnd() bool { return resolve(h.ConnectableEnd, true) }

// Rect returns the handle bounds relative to its node.
func (h Handle) Rect() geom.Rect {
	return geom.Rect{X: h.X, Y: h.Y, Width: h.Width, Height: h.Height}
}

// Center returns the handle center relative to its node.
func (h Handle) Center() geom.XY {
	return geom.XY{X: h.X + h.Width/2, Y: h.Y + h.Height/2}
}

// HandleBounds groups a node's measured handles by type.
type HandleBounds struct {
	Source []Handle
	Target []Handle
}

// Of returns the handles of the given type.
func (b *HandleBounds) Of(t HandleType) []Handle {
	if b == nil {
		return nil
	}
	if t == HandleSource {
		return b.Source
	}
	return b.Target
}

// Node is a user-facing node.
type Node struct {
	ID       string         `json:"id"`
	Type     string         `json:"type,omitempty"`
	Position geom.XY        `json:"position"`
	Data     map[string]any `json:"data,omitempty"`

	// Width and Height are explicit sizes supplied by the host. Measured is
	// the last observed rendered size and stays nil until measured.
	Width    float64          `json:"width,omitempty"`
	Height   float64          `json:"height,omitempty"`
	Measured *geom.Dimensions `json:"measured,omitempty"`

	ParentID     string      `json:"parentId,omitempty"`
	Extent       *NodeExtent `json:"extent,omitempty"`
	ExpandParent bool        `json:"expandParent,omitempty"`
	Origin       *geom.XY    `json:"origin,omitempty"`
	ZIndex       int         `json:"zIndex,omitempty"`
	Handles      []Handle    `json:"handles,omitempty"`

	Selected bool `json:"selected,omitempty"`
	Dragging bool `json:"dragging,omitempty"`
	Hidden   bool `json:"hidden,omitempty"`

	// nil means "use the flow default".
	Draggable   *bool `json:"draggable,omitempty"`
	Selectable  *bool `json:"selectable,omitempty"`
	Connectable *bool `json:"connectable,omitempty"`
	Deletable   *bool `json:"deletable,omitempty"`
	Focusable   *bool `json:"focusable,omitempty"`
}

// Dimensions returns the size used for geometry: measured size first, then
// the explicit size. A zero result means the node is not measured yet.
func (n *Node) Dimensions() geom.Dimensions {
	if n.Measured != nil && !n.Measured.IsZero() {
		return *n.Measured
	}
	return geom.Dimensions{Width: n.Width, Height: n.Height}
}

// IsDraggable resolves the per-node flag against the flow default.
func (n *Node) IsDraggable(def bool) bool { return resolve(n.Draggable, def) }

// IsSelectable resolves the per-node flag against the flow default.
func (n *Node) IsSelectable(def bool) bool { return resolve(n.Selectable, def) }

// IsConnectable resolves the per-node flag against the flow default.
func (n *Node) IsConnectable(def bool) bool { return resolve(n.Connectable, def) }

// IsDeletable resolves the per-node flag; nodes are deletable by default.
func (n *Node) IsDeletable() bool { return resolve(n.Deletable, true) }

// IsFocusable resolves the per-node flag against the flow default.
func (n *Node) IsFocusable(def bool) bool { return resolve(n.Focusable, def) }

func resolve(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// Bool returns a pointer to b, for the optional node flags.
func Bool(b bool) *bool { return &b }

// Internals are derived fields owned by the engine.
type Internals struct {
	PositionAbsolute geom.XY
	Z                int
	HandleBounds     *HandleBounds
}

// InternalNode is a node as stored in the lookup.
type InternalNode struct {
	Node
	Internals Internals
}

// Rect returns the node's absolute bounds.
func (n *InternalNode) Rect() geom.Rect {
	d := n.Dimensions()
	return geom.Rect{
		X:      n.Internals.PositionAbsolute.X,
		Y:      n.Internals.PositionAbsolute.Y,
		Width:  d.Width,
		Height: d.Height,
	}
}

// IsMeasured reports whether the node has a known size.
func (n *InternalNode) IsMeasured() bool { return !n.Dimensions().IsZero() }

// Edge connects two nodes. Empty handle ids mean "the node's only handle of
// that type".
type Edge struct {
	ID           string         `json:"id"`
	Type         string         `json:"type,omitempty"`
	Source       string         `json:"source"`
	Target       string         `json:"target"`
	SourceHandle string         `json:"sourceHandle,omitempty"`
	TargetHandle string         `json:"targetHandle,omitempty"`
	Selected     bool           `json:"selected,omitempty"`
	Hidden       bool           `json:"hidden,omitempty"`
	Animated     bool           `json:"animated,omitempty"`
	Deletable    *bool          `json:"deletable,omitempty"`
	Selectable   *bool          `json:"selectable,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

// IsDeletable resolves the per-edge flag; edges are deletable by default.
func (e *Edge) IsDeletable() bool { return resolve(e.Deletable, true) }

// IsSelectable resolves the per-edge flag against the flow default.
func (e *Edge) IsSelectable(def bool) bool { return resolve(e.Selectable, def) }

// Connection is the endpoint tuple of an edge.
type Connection struct {
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// ConnectionOf returns the endpoints of e.
func ConnectionOf(e Edge) Connection {
	return Connection{
		Source:       e.Source,
		SourceHandle: e.SourceHandle,
		Target:       e.Target,
		TargetHandle: e.TargetHandle,
	}
}

// EdgeID returns the id used for edges created from a connection.
func EdgeID(c Connection) string {
	return "xy-edge__" + c.Source + c.SourceHandle + "-" + c.Target + c.TargetHandle
}

// HandleConnection is a connection as seen from one handle.
type HandleConnection struct {
	Connection
	EdgeID string
}
