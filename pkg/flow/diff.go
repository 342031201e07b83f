package flow

// DiffNodes returns the changes that turn the content of prev into next.
// Adds and updates follow the order of next, removals follow the order of
// prev and come last. Fields that did not change produce no record.
//
// Position, dimensions (when next carries a measurement) and selection are
// the tracked fields; any other difference on an existing id is not
// reported.
func DiffNodes(next []Node, prev *NodeLookup) []NodeChange {
	changes := make([]NodeChange, 0)
	seen := make(map[string]bool, len(next))
	for i := range next {
		n := next[i]
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true

		old, ok := prev.Get(n.ID)
		if !ok {
			item := n
			changes = append(changes, NodeChange{Type: ChangeAdd, ID: n.ID, Item: &item})
			continue
		}
		if old.Position != n.Position {
			pos := n.Position
			changes = append(changes, NodeChange{Type: ChangePosition, ID: n.ID, Position: &pos})
		}
		if n.Measured != nil && (old.Measured == nil || *old.Measured != *n.Measured) {
			dims := *n.Measured
			changes = append(changes, NodeChange{Type: ChangeDimensions, ID: n.ID, Dimensions: &dims})
		}
		if old.Selected != n.Selected {
			changes = append(changes, NodeChange{Type: ChangeSelect, ID: n.ID, Selected: n.Selected})
		}
	}
	for _, id := range prev.IDs() {
		if !seen[id] {
			changes = append(changes, NodeChange{Type: ChangeRemove, ID: id})
		}
	}
	return changes
}

// DiffEdges is DiffNodes for edges. Only presence and selection are
// tracked.
func DiffEdges(next []Edge, prev *EdgeLookup) []EdgeChange {
	changes := make([]EdgeChange, 0)
	seen := make(map[string]bool, len(next))
	for i := range next {
		e := next[i]
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true

		old, ok := prev.Get(e.ID)
		if !ok {
			item := e
			changes = append(changes, EdgeChange{Type: ChangeAdd, ID: e.ID, Item: &item})
			continue
		}
		if old.Selected != e.Selected {
			changes = append(changes, EdgeChange{Type: ChangeSelect, ID: e.ID, Selected: e.Selected})
		}
	}
	for _, id := range prev.IDs() {
		if !seen[id] {
			changes = append(changes, EdgeChange{Type: ChangeRemove, ID: id})
		}
	}
	return changes
}
