package store

import (
	"maps"
	"slices"
	"strings"

	"github.com/recera/vango-flow/pkg/flow"
	"github.com/recera/vango-flow/pkg/geom"
	"github.com/recera/vango-flow/pkg/handle"
	"github.com/recera/vango-flow/pkg/reactive"
	"github.com/recera/vango-flow/pkg/viewport"
)

// GetNodes returns a copy of the current nodes.
func (f *Flow) GetNodes() []flow.Node {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nodeLookup.UserNodes()
}

// GetEdges returns a copy of the current edges.
func (f *Flow) GetEdges() []flow.Edge {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.edgeLookup.Edges()
}

// GetNode returns the node with the given id.
func (f *Flow) GetNode(id string) (flow.Node, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodeLookup.Get(id)
	if !ok {
		return flow.Node{}, false
	}
	return n.Node, true
}

// GetInternalNode returns the node with its derived fields.
func (f *Flow) GetInternalNode(id string) (flow.InternalNode, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodeLookup.Get(id)
	if !ok {
		return flow.InternalNode{}, false
	}
	return *n, true
}

// GetEdge returns the edge with the given id.
func (f *Flow) GetEdge(id string) (flow.Edge, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.edgeLookup.Get(id)
}

// SetNodes replaces the nodes. A flow that manages its nodes adopts them;
// a controlled flow hands the host the changes that lead there.
func (f *Flow) SetNodes(nodes []flow.Node) {
	b := f.lock()
	defer f.unlock(b)
	if f.nodesControlled {
		f.applyNodeChanges(flow.DiffNodes(nodes, f.nodeLookup))
		return
	}
	f.adoptNodes(nodes)
	f.maybeFit()
}

// SetEdges replaces the edges, like SetNodes.
func (f *Flow) SetEdges(edges []flow.Edge) {
	b := f.lock()
	defer f.unlock(b)
	if f.edgesControlled {
		f.applyEdgeChanges(flow.DiffEdges(edges, f.edgeLookup))
		return
	}
	f.adoptEdges(edges)
}

// SyncNodes takes new content for a controlled node collection, typically
// after the host applied the changes it was handed.
func (f *Flow) SyncNodes(nodes []flow.Node) {
	b := f.lock()
	defer f.unlock(b)
	f.adoptNodes(nodes)
	f.maybeFit()
}

// SyncEdges takes new content for a controlled edge collection.
func (f *Flow) SyncEdges(edges []flow.Edge) {
	b := f.lock()
	defer f.unlock(b)
	f.adoptEdges(edges)
}

// AddNodes appends nodes through add changes.
func (f *Flow) AddNodes(nodes ...flow.Node) {
	b := f.lock()
	defer f.unlock(b)
	changes := make([]flow.NodeChange, 0, len(nodes))
	for i := range nodes {
		n := nodes[i]
		changes = append(changes, flow.NodeChange{Type: flow.ChangeAdd, ID: n.ID, Item: &n})
	}
	f.applyNodeChanges(changes)
	f.maybeFit()
}

// AddEdges appends edges through add changes.
func (f *Flow) AddEdges(edges ...flow.Edge) {
	b := f.lock()
	defer f.unlock(b)
	changes := make([]flow.EdgeChange, 0, len(edges))
	for i := range edges {
		e := edges[i]
		changes = append(changes, flow.EdgeChange{Type: flow.ChangeAdd, ID: e.ID, Item: &e})
	}
	f.applyEdgeChanges(changes)
}

// DeleteElements removes the deletable nodes among nodeIDs with their
// descendants, the deletable edges among edgeIDs, and every edge touching
// a removed node. It returns what was removed.
func (f *Flow) DeleteElements(nodeIDs, edgeIDs []string) (nodes, edges []string) {
	b := f.lock()
	defer f.unlock(b)
	return f.deleteElements(nodeIDs, edgeIDs)
}

func (f *Flow) deleteElements(nodeIDs, edgeIDs []string) ([]string, []string) {
	nodes, edges := flow.ElementsToRemove(nodeIDs, edgeIDs, f.nodeLookup, f.edgeLookup)
	if len(edges) > 0 {
		changes := make([]flow.EdgeChange, len(edges))
		for i, id := range edges {
			changes[i] = flow.EdgeChange{Type: flow.ChangeRemove, ID: id}
		}
		f.applyEdgeChanges(changes)
	}
	if len(nodes) > 0 {
		changes := make([]flow.NodeChange, len(nodes))
		for i, id := range nodes {
			changes[i] = flow.NodeChange{Type: flow.ChangeRemove, ID: id}
		}
		f.applyNodeChanges(changes)
	}
	return nodes, edges
}

// UpdateNode replaces node id with fn's result through a replace change.
// It reports false for an unknown id.
func (f *Flow) UpdateNode(id string, fn func(n flow.Node) flow.Node) bool {
	b := f.lock()
	defer f.unlock(b)
	n, ok := f.nodeLookup.Get(id)
	if !ok {
		f.report(flow.Errorf(flow.CodeNodeNotFound, id, "node %q not found", id))
		return false
	}
	next := fn(n.Node)
	next.ID = id
	f.applyNodeChanges([]flow.NodeChange{{Type: flow.ChangeReplace, ID: id, Item: &next}})
	return true
}

// UpdateNodeData merges data into the node's data, or replaces it when
// replace is set.
func (f *Flow) UpdateNodeData(id string, data map[string]any, replace bool) bool {
	return f.UpdateNode(id, func(n flow.Node) flow.Node {
		if replace || n.Data == nil {
			n.Data = maps.Clone(data)
			return n
		}
		merged := maps.Clone(n.Data)
		maps.Copy(merged, data)
		n.Data = merged
		return n
	})
}

// UpdateNodeInternals stores measured sizes and handle bounds. Size
// changes are reported as dimensions changes; they are part of the node
// state in both modes.
func (f *Flow) UpdateNodeInternals(updates ...flow.InternalsUpdate) {
	b := f.lock()
	defer f.unlock(b)
	changes := flow.UpdateNodeInternals(f.nodeLookup, updates, f.opts.adoptOptions())
	f.conns.Reindex(f.edgeLookup.Edges(), f.nodeLookup)
	f.nodes.Set(f.nodeLookup.UserNodes())
	if cb := f.opts.OnNodesChange; cb != nil && len(changes) > 0 {
		f.queue(func() { cb(changes) })
	}
	f.maybeFit()
}

// AddSelectedNodes selects exactly the given nodes and unselects all
// edges. Unknown ids are reported and skipped.
func (f *Flow) AddSelectedNodes(ids ...string) {
	b := f.lock()
	defer f.unlock(b)
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !f.nodeLookup.Has(id) {
			f.report(flow.Errorf(flow.CodeInvalidSelectionTarget, id, "cannot select unknown node %q", id))
			continue
		}
		want[id] = true
	}
	f.applyNodeChanges(flow.SelectionChanges(f.nodeLookup.Nodes(), want))
	f.applyEdgeChanges(flow.EdgeSelectionChanges(f.edgeLookup.Edges(), nil))
}

// AddSelectedEdges selects exactly the given edges and unselects all
// nodes.
func (f *Flow) AddSelectedEdges(ids ...string) {
	b := f.lock()
	defer f.unlock(b)
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !f.edgeLookup.Has(id) {
			f.report(flow.Errorf(flow.CodeInvalidSelectionTarget, id, "cannot select unknown edge %q", id))
			continue
		}
		want[id] = true
	}
	f.applyNodeChanges(flow.SelectionChanges(f.nodeLookup.Nodes(), nil))
	f.applyEdgeChanges(flow.EdgeSelectionChanges(f.edgeLookup.Edges(), want))
}

// UnselectAll clears the selection.
func (f *Flow) UnselectAll() {
	b := f.lock()
	defer f.unlock(b)
	f.unselectAll()
}

func (f *Flow) unselectAll() {
	f.applyNodeChanges(flow.SelectionChanges(f.nodeLookup.Nodes(), nil))
	f.applyEdgeChanges(flow.EdgeSelectionChanges(f.edgeLookup.Edges(), nil))
}

// FitView fits the measured, visible nodes (or opts.Nodes) into the
// viewport. It returns false when there is nothing to fit or the viewport
// has no size.
func (f *Flow) FitView(opts FitViewOptions) bool {
	b := f.lock()
	defer f.unlock(b)
	return f.fitView(opts)
}

// FitBounds fits a flow-space rectangle into the viewport.
func (f *Flow) FitBounds(rect geom.Rect, opts FitViewOptions) bool {
	b := f.lock()
	defer f.unlock(b)
	padding := DefaultFitViewPadding
	if opts.Padding != nil {
		padding = *opts.Padding
	}
	return f.pz.FitBounds(rect, padding, viewport.TransitionOptions{Duration: opts.Duration})
}

// ZoomIn zooms in one step around the viewport centre.
func (f *Flow) ZoomIn(opts viewport.TransitionOptions) bool {
	b := f.lock()
	defer f.unlock(b)
	return f.pz.ZoomIn(opts)
}

// ZoomOut zooms out one step around the viewport centre.
func (f *Flow) ZoomOut(opts viewport.TransitionOptions) bool {
	b := f.lock()
	defer f.unlock(b)
	return f.pz.ZoomOut(opts)
}

// ZoomTo zooms to level, clamped to the zoom extent.
func (f *Flow) ZoomTo(level float64, opts viewport.TransitionOptions) bool {
	b := f.lock()
	defer f.unlock(b)
	return f.pz.ZoomTo(level, opts)
}

// GetZoom returns the current zoom.
func (f *Flow) GetZoom() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pz.Zoom()
}

// SetViewport moves the viewport to t.
func (f *Flow) SetViewport(t geom.Transform, opts viewport.TransitionOptions) bool {
	b := f.lock()
	defer f.unlock(b)
	return f.pz.SetViewport(t, opts)
}

// GetViewport returns the current transform.
func (f *Flow) GetViewport() geom.Transform {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pz.Transform()
}

// SetCenter centres the viewport on the flow point (x, y). A zoom of zero
// keeps the current zoom.
func (f *Flow) SetCenter(x, y, zoom float64, opts viewport.TransitionOptions) bool {
	b := f.lock()
	defer f.unlock(b)
	return f.pz.SetCenter(x, y, zoom, opts)
}

// Transitioning reports whether a viewport transition is running.
func (f *Flow) Transitioning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pz.Transitioning()
}

// SetBounds sets the viewport container: its client offset and size.
func (f *Flow) SetBounds(r geom.Rect) {
	b := f.lock()
	defer f.unlock(b)
	f.offset = geom.XY{X: r.X, Y: r.Y}
	f.pz.SetSize(r.Width, r.Height)
	f.maybeFit()
}

// ScreenToFlowPosition converts a client point to flow space, snapped to
// the grid when snap is set.
func (f *Flow) ScreenToFlowPosition(p geom.XY, snap bool) geom.XY {
	f.mu.Lock()
	defer f.mu.Unlock()
	pos := geom.ScreenToFlow(p, f.pz.Transform(), f.offset)
	if snap {
		pos = geom.SnapPosition(pos, f.opts.SnapGrid)
	}
	return pos
}

// FlowToScreenPosition converts a flow point to client coordinates.
func (f *Flow) FlowToScreenPosition(p geom.XY) geom.XY {
	f.mu.Lock()
	defer f.mu.Unlock()
	return geom.FlowToScreen(p, f.pz.Transform(), f.offset)
}

// GetIntersectingNodes returns the visible nodes overlapping node id. With
// partially unset only nodes fully covered count.
func (f *Flow) GetIntersectingNodes(id string, partially bool) []flow.Node {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodeLookup.Get(id)
	if !ok {
		return nil
	}
	return f.nodesIn(n.Rect(), partially, id)
}

// GetNodesInRect returns the visible nodes inside a flow-space rectangle.
func (f *Flow) GetNodesInRect(r geom.Rect, partially bool) []flow.Node {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nodesIn(r, partially, "")
}

func (f *Flow) nodesIn(r geom.Rect, partially bool, skip string) []flow.Node {
	var out []flow.Node
	for _, n := range f.nodeLookup.Nodes() {
		if n.ID == skip || n.Hidden || !n.IsMeasured() {
			continue
		}
		nr := n.Rect()
		area := geom.GetOverlappingArea(nr, r)
		if (partially && area > 0) || area >= nr.Width*nr.Height {
			out = append(out, n.Node)
		}
	}
	return out
}

// GetHandleConnections returns the connections of one handle, ordered by
// edge id.
func (f *Flow) GetHandleConnections(nodeID string, t flow.HandleType, handleID string) []flow.HandleConnection {
	f.mu.Lock()
	defer f.mu.Unlock()
	return sortedConnections(f.conns.Get(flow.HandleKey{NodeID: nodeID, Type: t, HandleID: handleID}))
}

// GetNodeConnections returns the connections of a node, ordered by edge id.
// An empty handle type matches both.
func (f *Flow) GetNodeConnections(nodeID string, t flow.HandleType) []flow.HandleConnection {
	f.mu.Lock()
	defer f.mu.Unlock()
	return sortedConnections(f.conns.NodeConnections(nodeID, t, nil))
}

func sortedConnections(m map[string]flow.HandleConnection) []flow.HandleConnection {
	out := slices.Collect(maps.Values(m))
	slices.SortFunc(out, func(a, b flow.HandleConnection) int { return strings.Compare(a.EdgeID, b.EdgeID) })
	return out
}

// GetOutgoers returns the nodes node id has edges to.
func (f *Flow) GetOutgoers(id string) []flow.Node {
	f.mu.Lock()
	defer f.mu.Unlock()
	return userNodes(flow.GetOutgoers(id, f.nodeLookup, f.edgeLookup.Edges()))
}

// GetIncomers returns the nodes with edges to node id.
func (f *Flow) GetIncomers(id string) []flow.Node {
	f.mu.Lock()
	defer f.mu.Unlock()
	return userNodes(flow.GetIncomers(id, f.nodeLookup, f.edgeLookup.Edges()))
}

// GetConnectedEdges returns the edges touching any of the nodes.
func (f *Flow) GetConnectedEdges(ids ...string) []flow.Edge {
	f.mu.Lock()
	defer f.mu.Unlock()
	return flow.GetConnectedEdges(ids, f.edgeLookup.Edges())
}

func userNodes(nodes []*flow.InternalNode) []flow.Node {
	out := make([]flow.Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Node
	}
	return out
}

// ConnectionState returns the live connection gesture.
func (f *Flow) ConnectionState() handle.ConnectionState {
	return f.connection.Get()
}

// SelectionRect returns the selection rectangle being drawn, in flow
// space.
func (f *Flow) SelectionRect() (geom.Rect, bool) {
	r := f.selection.Get()
	if r == nil {
		return geom.Rect{}, false
	}
	return *r, true
}

// SubscribeNodes calls fn with the nodes after every change.
func (f *Flow) SubscribeNodes(fn func([]flow.Node)) reactive.Unsubscribe {
	return f.nodes.Subscribe(reactive.Listener[[]flow.Node](fn))
}

// SubscribeEdges calls fn with the edges after every change.
func (f *Flow) SubscribeEdges(fn func([]flow.Edge)) reactive.Unsubscribe {
	return f.edges.Subscribe(reactive.Listener[[]flow.Edge](fn))
}

// SubscribeViewport calls fn with the transform after every change.
func (f *Flow) SubscribeViewport(fn func(geom.Transform)) reactive.Unsubscribe {
	return f.viewport.Subscribe(reactive.Listener[geom.Transform](fn))
}

// SubscribeConnection calls fn with the live connection gesture.
func (f *Flow) SubscribeConnection(fn func(handle.ConnectionState)) reactive.Unsubscribe {
	return f.connection.Subscribe(reactive.Listener[handle.ConnectionState](fn))
}

// SubscribeSelectionRect calls fn while a selection rectangle is drawn;
// nil marks its end.
func (f *Flow) SubscribeSelectionRect(fn func(*geom.Rect)) reactive.Unsubscribe {
	return f.selection.Subscribe(reactive.Listener[*geom.Rect](fn))
}

// SubscribeSelectedNodes calls fn with the ids of the selected nodes, only
// when that set changes.
func (f *Flow) SubscribeSelectedNodes(fn func(ids []string)) reactive.Unsubscribe {
	sel := reactive.Select(f.nodes, selectedIDs, slices.Equal[[]string])
	return sel.Subscribe(reactive.Listener[[]string](fn))
}

func selectedIDs(nodes []flow.Node) []string {
	var ids []string
	for _, n := range nodes {
		if n.Selected {
			ids = append(ids, n.ID)
		}
	}
	return ids
}
