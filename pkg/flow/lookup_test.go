package flow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recera/vango-flow/pkg/geom"
)

func TestGetNodesInside(t *testing.T) {
	hidden := sized("hidden", 0, 0, 10, 10)
	hidden.Hidden = true
	locked := sized("locked", 0, 0, 10, 10)
	locked.Selectable = Bool(false)

	l := NewNodeLookup()
	AdoptNodes([]Node{
		sized("in", 10, 10, 20, 20),
		sized("half", 90, 10, 20, 20),
		sized("out", 200, 200, 20, 20),
		{ID: "unmeasured", Position: geom.XY{X: 20, Y: 20}},
		hidden,
		locked,
	}, l, AdoptOptions{})

	rect := geom.Rect{X: 0, Y: 0, Width: 100, Height: 100}
	ids := func(nodes []*InternalNode) []string {
		var out []string
		for _, n := range nodes {
			out = append(out, n.ID)
		}
		return out
	}
	assert.Equal(t, []string{"in"}, ids(GetNodesInside(l, rect, false, true)))
	assert.Equal(t, []string{"in", "half"}, ids(GetNodesInside(l, rect, true, true)))
}

func TestGetNodesBounds(t *testing.T) {
	l := NewNodeLookup()
	AdoptNodes([]Node{sized("a", -10, 0, 20, 20), sized("b", 50, 40, 10, 10)}, l, AdoptOptions{})

	r, ok := GetNodesBounds(l.Nodes())
	require.True(t, ok)
	assert.Equal(t, geom.Rect{X: -10, Y: 0, Width: 70, Height: 50}, r)

	_, ok = GetNodesBounds(nil)
	assert.False(t, ok)
}

func TestUpdateNodeInternals(t *testing.T) {
	l := NewNodeLookup()
	child := Node{ID: "c", ParentID: "p", Position: geom.XY{X: 5, Y: 5}}
	AdoptNodes([]Node{{ID: "p", Position: geom.XY{X: 100, Y: 0}}, child}, l, AdoptOptions{})

	hb := &HandleBounds{Source: []Handle{{NodeID: "c", Type: HandleSource}}}
	changes := UpdateNodeInternals(l, []InternalsUpdate{
		{ID: "c", Dimensions: geom.Dimensions{Width: 40, Height: 20}, HandleBounds: hb},
		{ID: "gone", Dimensions: geom.Dimensions{Width: 1, Height: 1}},
	}, AdoptOptions{})

	require.Len(t, changes, 1)
	assert.Equal(t, "dimensions(node=c, w=40, h=20)", changes[0].String())
	c, _ := l.Get("c")
	assert.Same(t, hb, c.Internals.HandleBounds)
	assert.Equal(t, geom.Rect{X: 105, Y: 5, Width: 40, Height: 20}, c.Rect())

	// same size again is not a change unless forced
	again := []InternalsUpdate{{ID: "c", Dimensions: geom.Dimensions{Width: 40, Height: 20}}}
	assert.Empty(t, UpdateNodeInternals(l, again, AdoptOptions{}))
	again[0].Force = true
	assert.Len(t, UpdateNodeInternals(l, again, AdoptOptions{}), 1)
}

func TestEdgeLookup(t *testing.T) {
	l := NewEdgeLookup()
	l.AdoptEdges([]Edge{
		{ID: "e", Source: "a", Target: "b"},
		{ID: "f", Source: "b", Target: "c"},
	})
	assert.Equal(t, []string{"e", "f"}, l.IDs())
	e, ok := l.Get("f")
	require.True(t, ok)
	assert.Equal(t, "c", e.Target)
	assert.False(t, l.Has("g"))
}

func TestNodeExtentJSON(t *testing.T) {
	tests := []struct {
		name   string
		extent NodeExtent
		json   string
	}{
		{"parent", NodeExtent{Parent: true}, `"parent"`},
		{"coords", NodeExtent{Coords: geom.CoordinateExtent{{0, 0}, {100, 50}}}, `[[0,0],[100,50]]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.extent)
			require.NoError(t, err)
			assert.JSONEq(t, tt.json, string(data))

			var got NodeExtent
			require.NoError(t, json.Unmarshal([]byte(tt.json), &got))
			assert.Equal(t, tt.extent, got)
		})
	}

	var e NodeExtent
	assert.Error(t, json.Unmarshal([]byte(`"window"`), &e))
	assert.Error(t, json.Unmarshal([]byte(`[1, 2]`), &e))
}
