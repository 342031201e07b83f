package flow

import (
	"sort"

	"github.com/recera/vango-flow/pkg/geom"
)

// Z-order constants. Every nesting level adds ZStep; a selected node gets
// SelectedZ on top when nodes are elevated on select.
const (
	ZStep     = 10
	SelectedZ = 1000
)

// AdoptOptions configure how user nodes are resolved into the lookup.
type AdoptOptions struct {
	NodeOrigin           geom.XY
	NodeExtent           *geom.CoordinateExtent // nil = unbounded
	ElevateNodesOnSelect bool
}

func (o AdoptOptions) nodeExtent() geom.CoordinateExtent {
	if o.NodeExtent == nil {
		return geom.InfiniteExtent
	}
	return *o.NodeExtent
}

// AdoptNodes makes nodes the content of l. Entries with a known id are
// merged so that measurement data the caller did not re-supply survives.
// Parents are resolved before their children; cyclic and missing parent
// references are reported and the affected nodes become roots. Ids absent
// from nodes are dropped from l.
func AdoptNodes(nodes []Node, l *NodeLookup, opts AdoptOptions) []*Error {
	var errs []*Error

	incoming := make(map[string]*InternalNode, len(nodes))
	order := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if _, dup := incoming[n.ID]; !dup {
			order = append(order, n.ID)
		}
		internal := &InternalNode{Node: n}
		if prev, ok := l.nodes[n.ID]; ok {
			if internal.Measured == nil && prev.Measured != nil {
				m := *prev.Measured
				internal.Measured = &m
			}
			internal.Internals.HandleBounds = prev.Internals.HandleBounds
		}
		if len(n.Handles) > 0 {
			internal.Internals.HandleBounds = handleBoundsFrom(n.ID, n.Handles)
		}
		incoming[n.ID] = internal
	}

	for _, id := range order {
		n := incoming[id]
		if n.ParentID == "" {
			continue
		}
		if _, ok := incoming[n.ParentID]; !ok {
			errs = append(errs, Errorf(CodeMissingParent, id,
				"parent node %q of node %q not found, treating it as a root node", n.ParentID, id))
			n.ParentID = ""
		}
	}
	errs = append(errs, breakParentCycles(order, incoming)...)

	l.nodes = incoming
	l.order = order
	l.children = make(map[string][]string)
	for _, id := range order {
		if p := incoming[id].ParentID; p != "" {
			l.children[p] = append(l.children[p], id)
		}
	}

	UpdateAbsolutePositions(l, opts)
	return errs
}

// breakParentCycles clears ParentID on every node that is part of a parent
// cycle. Nodes hanging off a cycle keep their parent, which becomes a root.
func breakParentCycles(order []string, nodes map[string]*InternalNode) []*Error {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[string]int, len(order))
	var errs []*Error

	for _, start := range order {
		if state[start] != unvisited {
			continue
		}
		var path []string
		id := start
		for id != "" && state[id] == unvisited {
			state[id] = onPath
			path = append(path, id)
			id = nodes[id].ParentID
		}
		if id != "" && state[id] == onPath {
			// id is where the walk re-entered the current path
			cycleStart := 0
			for i, p := range path {
				if p == id {
					cycleStart = i
					break
				}
			}
			cycle := path[cycleStart:]
			for _, c := range cycle {
				nodes[c].ParentID = ""
			}
			for _, c := range cycle {
				errs = append(errs, Errorf(CodeCyclicParent, c,
					"node %q is part of a cyclic parent chain %v, treating it as a root node", c, cycle))
			}
		}
		for _, p := range path {
			state[p] = done
		}
	}
	return errs
}

func handleBoundsFrom(nodeID string, handles []Handle) *HandleBounds {
	b := &HandleBounds{}
	for _, h := range handles {
		h.NodeID = nodeID
		if h.Type == HandleSource {
			b.Source = append(b.Source, h)
		} else {
			b.Target = append(b.Target, h)
		}
	}
	return b
}

// depth returns the nesting depth of id. Cycles must already be broken.
func (l *NodeLookup) depth(id string) int {
	d := 0
	n := l.nodes[id]
	for n != nil && n.ParentID != "" {
		d++
		n = l.nodes[n.ParentID]
	}
	return d
}

// topoOrder returns ids with every parent before its children, keeping
// supply order among nodes of the same depth.
func (l *NodeLookup) topoOrder() []string {
	ids := l.IDs()
	depths := make(map[string]int, len(ids))
	for _, id := range ids {
		depths[id] = l.depth(id)
	}
	sort.SliceStable(ids, func(i, j int) bool { return depths[ids[i]] < depths[ids[j]] })
	return ids
}

// UpdateAbsolutePositions recomputes PositionAbsolute and Z for every node
// from the user positions, top-down through the parent forest.
func UpdateAbsolutePositions(l *NodeLookup, opts AdoptOptions) {
	globalExtent := opts.nodeExtent()
	for _, id := range l.topoOrder() {
		n := l.nodes[id]
		dims := n.Dimensions()
		origin := opts.NodeOrigin
		if n.Origin != nil {
			origin = *n.Origin
		}
		pos := geom.GetNodePositionWithOrigin(n.Position, dims, origin)

		var parent *InternalNode
		if n.ParentID != "" {
			parent = l.nodes[n.ParentID]
		}
		if parent != nil {
			pos = pos.Add(parent.Internals.PositionAbsolute)
		}

		if !globalExtent.IsInfinite() {
			pos = geom.ClampPosition(pos, globalExtent, dims)
		}
		switch {
		case n.Extent != nil && n.Extent.Parent && parent != nil:
			if parent.IsMeasured() {
				pos = geom.ClampPosition(pos, geom.ExtentFromRect(parent.Rect()), dims)
			}
		case n.Extent != nil && !n.Extent.Parent:
			ext := n.Extent.Coords
			if parent != nil {
				// coordinate extents of children are relative to the parent
				pa := parent.Internals.PositionAbsolute
				ext = geom.CoordinateExtent{
					{ext[0][0] + pa.X, ext[0][1] + pa.Y},
					{ext[1][0] + pa.X, ext[1][1] + pa.Y},
				}
			}
			pos = geom.ClampPosition(pos, ext, dims)
		}
		n.Internals.PositionAbsolute = pos
		n.Internals.Z = calculateZ(n, parent, opts.ElevateNodesOnSelect)
	}
}

func calculateZ(n, parent *InternalNode, elevate bool) int {
	z := n.ZIndex
	if parent != nil && z < parent.Internals.Z+ZStep {
		z = parent.Internals.Z + ZStep
	}
	if n.Selected && elevate {
		z += SelectedZ
	}
	return z
}
