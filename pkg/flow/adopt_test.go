package flow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recera/vango-flow/pkg/geom"
)

func sized(id string, x, y, w, h float64) Node {
	return Node{ID: id, Position: geom.XY{X: x, Y: y}, Width: w, Height: h}
}

func TestAdoptNodes_ParentBeforeChild(t *testing.T) {
	// children listed before their parents must still resolve
	grandchild := sized("gc", 5, 5, 10, 10)
	grandchild.ParentID = "c"
	child := sized("c", 10, 20, 50, 50)
	child.ParentID = "p"
	parent := sized("p", 100, 100, 200, 200)

	l := NewNodeLookup()
	errs := AdoptNodes([]Node{grandchild, child, parent}, l, AdoptOptions{})
	require.Empty(t, errs)

	gc, ok := l.Get("gc")
	require.True(t, ok)
	assert.Equal(t, geom.XY{X: 115, Y: 125}, gc.Internals.PositionAbsolute)
	assert.Equal(t, []string{"gc", "c", "p"}, l.IDs())
	assert.Equal(t, 2*ZStep, gc.Internals.Z)
	assert.True(t, l.IsAncestor("p", "gc"))
	assert.Len(t, l.Descendants("p"), 2)
}

func TestAdoptNodes_CyclicParent(t *testing.T) {
	x := sized("X", 0, 0, 10, 10)
	x.ParentID = "Y"
	y := sized("Y", 50, 50, 10, 10)
	y.ParentID = "X"
	tail := sized("T", 1, 1, 5, 5)
	tail.ParentID = "X"

	l := NewNodeLookup()
	errs := AdoptNodes([]Node{x, y, tail}, l, AdoptOptions{})

	require.Len(t, errs, 2)
	for _, err := range errs {
		assert.True(t, errors.Is(err, &Error{Code: CodeCyclicParent}))
	}
	nx, _ := l.Get("X")
	ny, _ := l.Get("Y")
	nt, _ := l.Get("T")
	assert.Empty(t, nx.ParentID)
	assert.Empty(t, ny.ParentID)
	assert.Equal(t, "X", nt.ParentID)
	assert.Equal(t, geom.XY{X: 1, Y: 1}, nt.Internals.PositionAbsolute)
}

func TestAdoptNodes_SelfParent(t *testing.T) {
	n := sized("a", 0, 0, 10, 10)
	n.ParentID = "a"
	l := NewNodeLookup()
	errs := AdoptNodes([]Node{n}, l, AdoptOptions{})
	require.Len(t, errs, 1)
	assert.Equal(t, CodeCyclicParent, errs[0].Code)
}

func TestAdoptNodes_MissingParent(t *testing.T) {
	n := sized("orphan", 7, 8, 10, 10)
	n.ParentID = "ghost"
	l := NewNodeLookup()
	errs := AdoptNodes([]Node{n}, l, AdoptOptions{})
	require.Len(t, errs, 1)
	assert.Equal(t, CodeMissingParent, errs[0].Code)
	assert.Equal(t, "orphan", errs[0].ID)

	got, _ := l.Get("orphan")
	assert.Equal(t, geom.XY{X: 7, Y: 8}, got.Internals.PositionAbsolute)
}

func TestAdoptNodes_PreservesMeasurements(t *testing.T) {
	l := NewNodeLookup()
	AdoptNodes([]Node{{ID: "a"}}, l, AdoptOptions{})
	UpdateNodeInternals(l, []InternalsUpdate{{
		ID:           "a",
		Dimensions:   geom.Dimensions{Width: 120, Height: 40},
		HandleBounds: &HandleBounds{Source: []Handle{{ID: "out", Type: HandleSource}}},
	}}, AdoptOptions{})

	// an unrelated prop update does not carry measurements
	AdoptNodes([]Node{{ID: "a", Data: map[string]any{"label": "A"}}}, l, AdoptOptions{})

	n, _ := l.Get("a")
	require.NotNil(t, n.Measured)
	assert.Equal(t, geom.Dimensions{Width: 120, Height: 40}, *n.Measured)
	require.NotNil(t, n.Internals.HandleBounds)
	assert.Len(t, n.Internals.HandleBounds.Source, 1)
	assert.Equal(t, "A", n.Data["label"])
}

func TestAdoptNodes_GarbageCollects(t *testing.T) {
	l := NewNodeLookup()
	AdoptNodes([]Node{{ID: "a"}, {ID: "b"}}, l, AdoptOptions{})
	AdoptNodes([]Node{{ID: "b"}}, l, AdoptOptions{})
	assert.False(t, l.Has("a"))
	assert.Equal(t, 1, l.Len())
}

func TestAdoptNodes_ParentContainment(t *testing.T) {
	parent := sized("p", 0, 0, 100, 100)
	inside := sized("in", 10, 10, 20, 20)
	outside := sized("out", 500, -40, 30, 30)
	for _, c := range []*Node{&inside, &outside} {
		c.ParentID = "p"
		c.Extent = ParentExtent()
	}
	var nested []Node
	for i := 0; i < 5; i++ {
		n := sized("deep"+string(rune('0'+i)), float64(i*70), float64(-i*70), 40, 40)
		n.ParentID = "p"
		if i > 0 {
			n.ParentID = "deep" + string(rune('0'+i-1))
		}
		n.Extent = ParentExtent()
		nested = append(nested, n)
	}

	l := NewNodeLookup()
	extent := geom.CoordinateExtent{{-50, -50}, {1000, 1000}}
	require.Empty(t, AdoptNodes(append([]Node{outside, inside, parent}, nested...), l, AdoptOptions{NodeExtent: &extent}))

	for _, n := range l.Nodes() {
		if n.ParentID == "" {
			continue
		}
		p, _ := l.Get(n.ParentID)
		pr, cr := p.Rect(), n.Rect()
		assert.GreaterOrEqual(t, cr.X, pr.X, n.ID)
		assert.GreaterOrEqual(t, cr.Y, pr.Y, n.ID)
		assert.LessOrEqual(t, cr.X+cr.Width, pr.X+pr.Width, n.ID)
		assert.LessOrEqual(t, cr.Y+cr.Height, pr.Y+pr.Height, n.ID)
	}
	out, _ := l.Get("out")
	assert.Equal(t, geom.XY{X: 70, Y: 0}, out.Internals.PositionAbsolute)
}

func TestAdoptNodes_GlobalExtentAndOrigin(t *testing.T) {
	extent := geom.CoordinateExtent{{0, 0}, {100, 100}}
	n := sized("a", 200, 50, 20, 20)
	centred := sized("b", 50, 50, 20, 20)
	centred.Origin = &geom.XY{X: 0.5, Y: 0.5}

	l := NewNodeLookup()
	AdoptNodes([]Node{n, centred}, l, AdoptOptions{NodeExtent: &extent})
	a, _ := l.Get("a")
	b, _ := l.Get("b")
	assert.Equal(t, geom.XY{X: 80, Y: 50}, a.Internals.PositionAbsolute)
	assert.Equal(t, geom.XY{X: 40, Y: 40}, b.Internals.PositionAbsolute)
}

func TestAdoptNodes_ZOrder(t *testing.T) {
	parent := sized("p", 0, 0, 100, 100)
	parent.Selected = true
	sel := sized("s", 0, 0, 10, 10)
	sel.ParentID = "p"
	sel.Selected = true
	plain := sized("u", 0, 0, 10, 10)
	plain.ParentID = "p"
	root := sized("r", 0, 0, 10, 10)

	l := NewNodeLookup()
	AdoptNodes([]Node{sel, plain, parent, root}, l, AdoptOptions{ElevateNodesOnSelect: true})

	z := func(id string) int { n, _ := l.Get(id); return n.Internals.Z }
	assert.Equal(t, 0, z("r"))
	assert.Equal(t, SelectedZ, z("p"))
	assert.Greater(t, z("u"), z("p"))
	assert.Greater(t, z("s"), z("u"))

	l2 := NewNodeLookup()
	AdoptNodes([]Node{sel, plain, parent}, l2, AdoptOptions{})
	s2, _ := l2.Get("s")
	u2, _ := l2.Get("u")
	assert.Equal(t, s2.Internals.Z, u2.Internals.Z)
}

func TestUpdateNodeInternals_OnlyChangedDimensions(t *testing.T) {
	l := NewNodeLookup()
	AdoptNodes([]Node{{ID: "a"}, {ID: "b"}}, l, AdoptOptions{})

	changes := UpdateNodeInternals(l, []InternalsUpdate{
		{ID: "a", Dimensions: geom.Dimensions{Width: 10, Height: 10}},
		{ID: "ghost", Dimensions: geom.Dimensions{Width: 10, Height: 10}},
		{ID: "b"},
	}, AdoptOptions{})
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeDimensions, changes[0].Type)

	again := UpdateNodeInternals(l, []InternalsUpdate{
		{ID: "a", Dimensions: geom.Dimensions{Width: 10, Height: 10}},
	}, AdoptOptions{})
	assert.Empty(t, again)
}

func TestGetNodesInside_BorderAndBounds(t *testing.T) {
	l := NewNodeLookup()
	hidden := sized("h", 0, 0, 10, 10)
	hidden.Hidden = true
	AdoptNodes([]Node{
		sized("in", 10, 10, 10, 10),
		sized("edge", 45, 45, 10, 10),
		sized("far", 500, 500, 10, 10),
		{ID: "unmeasured", Position: geom.XY{X: 20, Y: 20}},
		hidden,
	}, l, AdoptOptions{})

	rect := geom.Rect{X: 0, Y: 0, Width: 50, Height: 50}
	ids := func(ns []*InternalNode) []string {
		var out []string
		for _, n := range ns {
			out = append(out, n.ID)
		}
		return out
	}
	assert.Equal(t, []string{"in"}, ids(GetNodesInside(l, rect, false, true)))
	assert.Equal(t, []string{"in", "edge"}, ids(GetNodesInside(l, rect, true, true)))

	bounds, ok := GetNodesBounds(l.Nodes()[:2])
	require.True(t, ok)
	assert.Equal(t, geom.Rect{X: 10, Y: 10, Width: 45, Height: 45}, bounds)
}
