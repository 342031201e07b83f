package flow

import (
	"github.com/recera/vango-flow/pkg/geom"
)

// NodeLookup is the authoritative id -> node map of a flow. It keeps the
// order nodes were supplied in and the parent -> children forest.
type NodeLookup struct {
	nodes    map[string]*InternalNode
	order    []string
	children map[string][]string
}

// NewNodeLookup returns an empty lookup.
func NewNodeLookup() *NodeLookup {
	return &NodeLookup{
		nodes:    make(map[string]*InternalNode),
		children: make(map[string][]string),
	}
}

// Get returns the node with the given id.
func (l *NodeLookup) Get(id string) (*InternalNode, bool) {
	n, ok := l.nodes[id]
	return n, ok
}

// Has reports whether id is present.
func (l *NodeLookup) Has(id string) bool {
	_, ok := l.nodes[id]
	return ok
}

// Len returns the number of nodes.
func (l *NodeLookup) Len() int { return len(l.order) }

// IDs returns node ids in supply order.
func (l *NodeLookup) IDs() []string {
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// Nodes returns the internal nodes in supply order. The pointers are owned
// by the lookup and must not be mutated by callers.
func (l *NodeLookup) Nodes() []*InternalNode {
	out := make([]*InternalNode, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.nodes[id])
	}
	return out
}

// UserNodes returns copies of the user-facing nodes in supply order.
func (l *NodeLookup) UserNodes() []Node {
	out := make([]Node, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.nodes[id].Node)
	}
	return out
}

// Children returns the direct children of parentID.
func (l *NodeLookup) Children(parentID string) []*InternalNode {
	ids := l.children[parentID]
	out := make([]*InternalNode, 0, len(ids))
	for _, id := range ids {
		if n, ok := l.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Descendants returns every node below parentID, parents before children.
func (l *NodeLookup) Descendants(parentID string) []*InternalNode {
	var out []*InternalNode
	for _, child := range l.Children(parentID) {
		out = append(out, child)
		out = append(out, l.Descendants(child.ID)...)
	}
	return out
}

// IsAncestor reports whether ancestorID appears on id's parent chain.
func (l *NodeLookup) IsAncestor(ancestorID, id string) bool {
	n, ok := l.nodes[id]
	for ok && n.ParentID != "" {
		if n.ParentID == ancestorID {
			return true
		}
		n, ok = l.nodes[n.ParentID]
	}
	return false
}

// EdgeLookup is the id -> edge map of a flow.
type EdgeLookup struct {
	edges map[string]Edge
	order []string
}

// NewEdgeLookup returns an empty lookup.
func NewEdgeLookup() *EdgeLookup {
	return &EdgeLookup{edges: make(map[string]Edge)}
}

// AdoptEdges replaces the lookup content with edges.
func (l *EdgeLookup) AdoptEdges(edges []Edge) {
	l.edges = make(map[string]Edge, len(edges))
	l.order = l.order[:0]
	for _, e := range edges {
		if _, dup := l.edges[e.ID]; !dup {
			l.order = append(l.order, e.ID)
		}
		l.edges[e.ID] = e
	}
}

// Get returns the edge with the given id.
func (l *EdgeLookup) Get(id string) (Edge, bool) {
	e, ok := l.edges[id]
	return e, ok
}

// Has reports whether id is present.
func (l *EdgeLookup) Has(id string) bool {
	_, ok := l.edges[id]
	return ok
}

// Len returns the number of edges.
func (l *EdgeLookup) Len() int { return len(l.order) }

// IDs returns edge ids in supply order.
func (l *EdgeLookup) IDs() []string {
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// Edges returns the edges in supply order.
func (l *EdgeLookup) Edges() []Edge {
	out := make([]Edge, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.edges[id])
	}
	return out
}

// GetNodesBounds returns the union of the absolute bounds of nodes.
// Unmeasured nodes contribute their position as a point.
func GetNodesBounds(nodes []*InternalNode) (geom.Rect, bool) {
	if len(nodes) == 0 {
		return geom.Rect{}, false
	}
	box := geom.InfiniteBox
	for _, n := range nodes {
		box = geom.GetBoundsOfBoxes(box, geom.RectToBox(n.Rect()))
	}
	return geom.BoxToRect(box), true
}

// GetNodesInside returns the selectable, visible, measured nodes that lie
// inside rect (flow space). With partially set, any overlap counts.
func GetNodesInside(l *NodeLookup, rect geom.Rect, partially, selectableDefault bool) []*InternalNode {
	var out []*InternalNode
	for _, n := range l.Nodes() {
		if n.Hidden || !n.IsMeasured() || !n.IsSelectable(selectableDefault) {
			continue
		}
		r := n.Rect()
		overlap := geom.GetOverlappingArea(rect, r)
		full := overlap >= r.Width*r.Height
		if full || (partially && geom.RectsIntersect(rect, r)) {
			out = append(out, n)
		}
	}
	return out
}

// InternalsUpdate is the result of a host measuring pass for one node.
type InternalsUpdate struct {
	ID           string
	Dimensions   geom.Dimensions
	HandleBounds *HandleBounds
	Force        bool
}

// UpdateNodeInternals stores measured sizes and handle bounds and returns
// a dimensions change for every node whose size actually changed. Unknown
// ids are ignored; the node may have been removed after measuring started.
func UpdateNodeInternals(l *NodeLookup, updates []InternalsUpdate, opts AdoptOptions) []NodeChange {
	var changes []NodeChange
	for _, u := range updates {
		n, ok := l.nodes[u.ID]
		if !ok || n.Hidden {
			continue
		}
		if u.HandleBounds != nil {
			n.Internals.HandleBounds = u.HandleBounds
		}
		if u.Dimensions.IsZero() {
			continue
		}
		prev := n.Measured
		if !u.Force && prev != nil && *prev == u.Dimensions {
			continue
		}
		dims := u.Dimensions
		n.Measured = &dims
		changes = append(changes, NodeChange{
			Type:       ChangeDimensions,
			ID:         n.ID,
			Dimensions: &dims,
		})
	}
	if len(changes) > 0 {
		UpdateAbsolutePositions(l, opts)
	}
	return changes
}
