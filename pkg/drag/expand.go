package drag

import (
	"github.com/recera/vango-flow/pkg/flow"
	"github.com/recera/vango-flow/pkg/geom"
)

// candidate is a child whose bounds may force its parent to grow.
type candidate struct {
	parentID string
	rect     geom.Rect
}

type growth struct {
	parent *flow.InternalNode
	rect   geom.Rect
}

// expandParents grows the parents of dragged nodes that have ExpandParent
// set so the child stays inside. Only one level is handled per call: a
// parent that itself expands its own parent is picked up on the next move,
// once its new size has been applied. The parent and sibling changes are
// appended to changes; the returned map holds the new absolute positions
// of parents that moved.
func (c *Controller) expandParents(changes *[]flow.NodeChange) map[string]geom.XY {
	nodes := c.host.Nodes()
	dragged := make(map[string]bool, len(c.items))
	var cands []candidate
	for _, it := range c.items {
		dragged[it.id] = true
		if it.expand && it.parentID != "" {
			cands = append(cands, candidate{
				parentID: it.parentID,
				rect:     geom.Rect{X: it.lastAbs.X, Y: it.lastAbs.Y, Width: it.dims.Width, Height: it.dims.Height},
			})
		}
	}

	grown := make(map[string]*growth)
	var order []string
	collect := func(cands []candidate) {
		for _, cd := range cands {
			parent, ok := nodes.Get(cd.parentID)
			if !ok || !parent.IsMeasured() {
				continue
			}
			g := grown[parent.ID]
			if g == nil {
				g = &growth{parent: parent, rect: parent.Rect()}
				grown[parent.ID] = g
				order = append(order, parent.ID)
			}
			g.rect = geom.GetBoundsOfRects(g.rect, cd.rect)
		}
	}
	collect(cands)

	// parents grown by an earlier move may now overflow their own parent
	var next []candidate
	for _, id := range order {
		p := grown[id].parent
		if p.ExpandParent && p.ParentID != "" && grown[p.ParentID] == nil {
			next = append(next, candidate{parentID: p.ParentID, rect: p.Rect()})
		}
	}
	level := len(order)
	collect(next)

	moved := make(map[string]geom.XY)
	for i, id := range order {
		g := grown[id]
		p := g.parent
		old := p.Rect()
		if g.rect == old {
			continue
		}
		if i >= level && c.childMoved(p.ID, moved) {
			// retried on the next move, once the child's shift is applied
			continue
		}

		dims := geom.Dimensions{Width: g.rect.Width, Height: g.rect.Height}
		*changes = append(*changes, flow.NodeChange{
			Type:          flow.ChangeDimensions,
			ID:            p.ID,
			Dimensions:    &dims,
			SetAttributes: true,
		})

		shift := geom.XY{X: old.X - g.rect.X, Y: old.Y - g.rect.Y}
		if shift.X == 0 && shift.Y == 0 {
			continue
		}
		origin := c.opts.NodeOrigin
		if p.Origin != nil {
			origin = *p.Origin
		}
		abs := geom.XY{X: g.rect.X, Y: g.rect.Y}
		pos := p.Position.Sub(shift).Add(geom.XY{
			X: origin.X * (dims.Width - old.Width),
			Y: origin.Y * (dims.Height - old.Height),
		})
		moved[p.ID] = abs
		*changes = append(*changes, flow.NodeChange{
			Type:             flow.ChangePosition,
			ID:               p.ID,
			Position:         &pos,
			PositionAbsolute: &abs,
		})

		// the other children keep their place on screen
		for _, child := range nodes.Children(p.ID) {
			if _, shifted := moved[child.ID]; shifted || dragged[child.ID] {
				continue
			}
			cp := child.Position.Add(shift)
			ca := child.Internals.PositionAbsolute
			*changes = append(*changes, flow.NodeChange{
				Type:             flow.ChangePosition,
				ID:               child.ID,
				Position:         &cp,
				PositionAbsolute: &ca,
			})
		}
	}
	return moved
}

func (c *Controller) childMoved(parentID string, moved map[string]geom.XY) bool {
	for _, child := range c.host.Nodes().Children(parentID) {
		if _, ok := moved[child.ID]; ok {
			return true
		}
	}
	return false
}
