package flow

import (
	"fmt"
	"slices"

	"github.com/recera/vango-flow/pkg/geom"
)

// ChangeType is the kind of mutation a change record describes.
type ChangeType string

const (
	ChangeAdd        ChangeType = "add"
	ChangeRemove     ChangeType = "remove"
	ChangeReplace    ChangeType = "replace"
	ChangePosition   ChangeType = "position"
	ChangeDimensions ChangeType = "dimensions"
	ChangeSelect     ChangeType = "select"
)

// NodeChange is one mutation of a node collection.
type NodeChange struct {
	Type ChangeType
	ID   string

	// add / replace
	Item  *Node
	Index *int // insert position for add; nil appends

	// position
	Position         *geom.XY
	PositionAbsolute *geom.XY
	Dragging         *bool

	// dimensions
	Dimensions *geom.Dimensions
	Resizing   *bool
	// SetAttributes also writes Width/Height, not only Measured.
	SetAttributes bool

	// select
	Selected bool
}

// String returns a human-readable representation of the change.
func (c NodeChange) String() string {
	switch c.Type {
	case ChangeAdd:
		return fmt.Sprintf("add(node=%s)", c.itemID())
	case ChangeReplace:
		return fmt.Sprintf("replace(node=%s)", c.itemID())
	case ChangeRemove:
		return fmt.Sprintf("remove(node=%s)", c.ID)
	case ChangePosition:
		if c.Position == nil {
			return fmt.Sprintf("position(node=%s, dragging=%s)", c.ID, boolString(c.Dragging))
		}
		return fmt.Sprintf("position(node=%s, x=%g, y=%g, dragging=%s)", c.ID, c.Position.X, c.Position.Y, boolString(c.Dragging))
	case ChangeDimensions:
		if c.Dimensions == nil {
			return fmt.Sprintf("dimensions(node=%s)", c.ID)
		}
		return fmt.Sprintf("dimensions(node=%s, w=%g, h=%g)", c.ID, c.Dimensions.Width, c.Dimensions.Height)
	case ChangeSelect:
		if c.Selected {
			return fmt.Sprintf("select(node=%s)", c.ID)
		}
		return fmt.Sprintf("unselect(node=%s)", c.ID)
	default:
		return fmt.Sprintf("unknown(node=%s, type=%s)", c.ID, c.Type)
	}
}

func (c NodeChange) itemID() string {
	if c.Item != nil {
		return c.Item.ID
	}
	return c.ID
}

func boolString(b *bool) string {
	if b == nil {
		return "-"
	}
	return fmt.Sprint(*b)
}

// EdgeChange is one mutation of an edge collection.
type EdgeChange struct {
	Type     ChangeType
	ID       string
	Item     *Edge
	Index    *int
	Selected bool
}

// String returns a human-readable representation of the change.
func (c EdgeChange) String() string {
	id := c.ID
	if c.Item != nil && id == "" {
		id = c.Item.ID
	}
	switch c.Type {
	case ChangeSelect:
		if c.Selected {
			return fmt.Sprintf("select(edge=%s)", id)
		}
		return fmt.Sprintf("unselect(edge=%s)", id)
	default:
		return fmt.Sprintf("%s(edge=%s)", c.Type, id)
	}
}

// ApplyNodeChanges returns nodes with changes applied in order. Later
// changes to the same id win. An add with an Index is inserted at that
// position of the collection as it stands at that point of the batch, so
// later changes in the batch can target it. Changes for unknown ids are
// ignored because they can race with removal.
func ApplyNodeChanges(changes []NodeChange, nodes []Node) []Node {
	work := make([]*Node, 0, len(nodes)+len(changes))
	index := make(map[string]int, len(nodes))
	for i := range nodes {
		n := nodes[i]
		index[n.ID] = len(work)
		work = append(work, &n)
	}

	for _, c := range changes {
		switch c.Type {
		case ChangeAdd:
			if c.Item == nil {
				continue
			}
			item := *c.Item
			if i, ok := index[item.ID]; ok && work[i] != nil {
				work[i] = &item
				continue
			}
			if c.Index != nil {
				work = insertLive(work, *c.Index, &item)
				for i, n := range work {
					if n != nil {
						index[n.ID] = i
					}
				}
				continue
			}
			index[item.ID] = len(work)
			work = append(work, &item)
			continue
		}

		i, ok := index[c.ID]
		if !ok || work[i] == nil {
			continue
		}
		n := work[i]
		switch c.Type {
		case ChangeRemove:
			work[i] = nil
			delete(index, c.ID)
		case ChangeReplace:
			if c.Item != nil {
				item := *c.Item
				work[i] = &item
			}
		case ChangePosition:
			if c.Position != nil {
				n.Position = *c.Position
			}
			if c.Dragging != nil {
				n.Dragging = *c.Dragging
			}
		case ChangeDimensions:
			if c.Dimensions != nil {
				d := *c.Dimensions
				n.Measured = &d
				if c.SetAttributes {
					n.Width, n.Height = d.Width, d.Height
				}
			}
		case ChangeSelect:
			n.Selected = c.Selected
		}
	}

	out := make([]Node, 0, len(work))
	for _, n := range work {
		if n != nil {
			out = append(out, *n)
		}
	}
	return out
}

// insertLive inserts item before the at-th non-nil entry of work, or at the
// end when fewer entries are left.
func insertLive[T any](work []*T, at int, item *T) []*T {
	at = max(at, 0)
	pos := len(work)
	live := 0
	for i, p := range work {
		if p == nil {
			continue
		}
		if live == at {
			pos = i
			break
		}
		live++
	}
	return slices.Insert(work, pos, item)
}

// ApplyEdgeChanges returns edges with changes applied in order.
func ApplyEdgeChanges(changes []EdgeChange, edges []Edge) []Edge {
	work := make([]*Edge, 0, len(edges)+len(changes))
	index := make(map[string]int, len(edges))
	for i := range edges {
		e := edges[i]
		index[e.ID] = len(work)
		work = append(work, &e)
	}

	for _, c := range changes {
		if c.Type == ChangeAdd {
			if c.Item == nil {
				continue
			}
			item := *c.Item
			if i, ok := index[item.ID]; ok && work[i] != nil {
				work[i] = &item
				continue
			}
			if c.Index != nil {
				work = insertLive(work, *c.Index, &item)
				for i, e := range work {
					if e != nil {
						index[e.ID] = i
					}
				}
				continue
			}
			index[item.ID] = len(work)
			work = append(work, &item)
			continue
		}
		i, ok := index[c.ID]
		if !ok || work[i] == nil {
			continue
		}
		switch c.Type {
		case ChangeRemove:
			work[i] = nil
			delete(index, c.ID)
		case ChangeReplace:
			if c.Item != nil {
				item := *c.Item
				work[i] = &item
			}
		case ChangeSelect:
			work[i].Selected = c.Selected
		}
	}

	out := make([]Edge, 0, len(work))
	for _, e := range work {
		if e != nil {
			out = append(out, *e)
		}
	}
	return out
}

// SelectionChanges builds select/unselect changes for the nodes whose
// selection differs from the wanted state.
func SelectionChanges(nodes []*InternalNode, selected map[string]bool) []NodeChange {
	var out []NodeChange
	for _, n := range nodes {
		want := selected[n.ID]
		if n.Selected != want {
			out = append(out, NodeChange{Type: ChangeSelect, ID: n.ID, Selected: want})
		}
	}
	return out
}

// EdgeSelectionChanges is SelectionChanges for edges.
func EdgeSelectionChanges(edges []Edge, selected map[string]bool) []EdgeChange {
	var out []EdgeChange
	for _, e := range edges {
		want := selected[e.ID]
		if e.Selected != want {
			out = append(out, EdgeChange{Type: ChangeSelect, ID: e.ID, Selected: want})
		}
	}
	return out
}

// ElementsToRemove resolves a delete request: the requested deletable
// nodes, all their descendants, and every deletable edge that is requested
// or touches a removed node. Deleting a parent removes its descendants even
// when they are not deletable themselves, so no child outlives its parent.
func ElementsToRemove(nodeIDs, edgeIDs []string, nodes *NodeLookup, edges *EdgeLookup) ([]string, []string) {
	removeNodes := make(map[string]bool)
	var nodeOut []string
	for _, id := range nodeIDs {
		n, ok := nodes.Get(id)
		if !ok || !n.IsDeletable() || removeNodes[id] {
			continue
		}
		removeNodes[id] = true
		nodeOut = append(nodeOut, id)
		for _, d := range nodes.Descendants(id) {
			if !removeNodes[d.ID] {
				removeNodes[d.ID] = true
				nodeOut = append(nodeOut, d.ID)
			}
		}
	}

	requested := make(map[string]bool, len(edgeIDs))
	for _, id := range edgeIDs {
		requested[id] = true
	}
	var edgeOut []string
	for _, e := range edges.Edges() {
		touches := removeNodes[e.Source] || removeNodes[e.Target]
		if touches || (requested[e.ID] && e.IsDeletable()) {
			edgeOut = append(edgeOut, e.ID)
		}
	}
	return nodeOut, edgeOut
}
