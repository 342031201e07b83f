package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recera/vango-flow/pkg/flow"
	"github.com/recera/vango-flow/pkg/geom"
	"github.com/recera/vango-flow/pkg/viewport"
)

func box(id string, x, y, w, h float64) flow.Node {
	return flow.Node{ID: id, Position: geom.XY{X: x, Y: y}, Width: w, Height: h}
}

// connectable lays out A at (0,0) and B at (300,0), both 100x50 with a
// target handle "t" on the left edge and a source handle "s" on the right.
func connectable() []flow.Node {
	handles := func() []flow.Handle {
		return []flow.Handle{
			{ID: "t", Type: flow.HandleTarget, Position: flow.Left, X: -5, Y: 20, Width: 10, Height: 10},
			{ID: "s", Type: flow.HandleSource, Position: flow.Right, X: 95, Y: 20, Width: 10, Height: 10},
		}
	}
	a := box("A", 0, 0, 100, 50)
	a.Handles = handles()
	b := box("B", 300, 0, 100, 50)
	b.Handles = handles()
	return []flow.Node{a, b}
}

func newFlow(t *testing.T, opts Options) *Flow {
	t.Helper()
	f, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(f.Close)
	return f
}

func pointer(x, y float64) PointerEvent {
	return PointerEvent{ID: 1, Point: geom.XY{X: x, Y: y}}
}

func node(t *testing.T, f *Flow, id string) flow.Node {
	t.Helper()
	n, ok := f.GetNode(id)
	require.True(t, ok, "node %s", id)
	return n
}

func TestDragOneNode(t *testing.T) {
	a := box("A", 10, 10, 50, 50)
	a.Selected = true
	var batches [][]flow.NodeChange
	f := newFlow(t, Options{
		DefaultNodes:  []flow.Node{a},
		OnNodesChange: func(c []flow.NodeChange) { batches = append(batches, c) },
	})
	var notified int
	f.SubscribeNodes(func([]flow.Node) { notified++ })

	target := f.PointerDown(pointer(20, 20))
	assert.Equal(t, TargetNode, target.Kind)
	f.PointerMove(pointer(25, 17))

	require.Len(t, batches, 1)
	require.Len(t, batches[0], 1)
	assert.Equal(t, "position(node=A, x=15, y=7, dragging=true)", batches[0][0].String())
	assert.Equal(t, 1, notified)
	assert.Equal(t, geom.XY{X: 15, Y: 7}, node(t, f, "A").Position)
	assert.True(t, node(t, f, "A").Dragging)

	f.PointerUp(pointer(25, 17))
	assert.False(t, node(t, f, "A").Dragging)
	assert.Equal(t, geom.XY{X: 15, Y: 7}, node(t, f, "A").Position)
}

func TestPointerCancelKeepsPosition(t *testing.T) {
	f := newFlow(t, Options{DefaultNodes: []flow.Node{box("A", 0, 0, 50, 50)}})

	f.PointerDown(pointer(10, 10))
	f.PointerMove(pointer(40, 10))
	f.PointerCancel(pointer(40, 10))

	n := node(t, f, "A")
	assert.Equal(t, geom.XY{X: 30, Y: 0}, n.Position)
	assert.False(t, n.Dragging)
	assert.True(t, n.Selected)
}

func TestControlledNodesAreReportedOnly(t *testing.T) {
	var got []flow.NodeChange
	f := newFlow(t, Options{
		Nodes:         []flow.Node{box("A", 10, 10, 50, 50)},
		OnNodesChange: func(c []flow.NodeChange) { got = append(got, c...) },
	})

	f.PointerDown(pointer(20, 20))
	f.PointerMove(pointer(30, 20))
	assert.Equal(t, []string{
		"select(node=A)",
		"position(node=A, x=20, y=10, dragging=true)",
	}, changeStrings(got))
	assert.Equal(t, geom.XY{X: 10, Y: 10}, node(t, f, "A").Position)

	f.SyncNodes(flow.ApplyNodeChanges(got, f.GetNodes()))
	assert.Equal(t, geom.XY{X: 20, Y: 10}, node(t, f, "A").Position)

	got = nil
	f.SetNodes(append(f.GetNodes(), box("B", 0, 0, 10, 10)))
	assert.Equal(t, []string{"add(node=B)"}, changeStrings(got))
	assert.Len(t, f.GetNodes(), 1)
}

func TestCallbacksMayReenter(t *testing.T) {
	var f *Flow
	var err error
	f, err = New(Options{
		Nodes: []flow.Node{box("A", 0, 0, 50, 50)},
		OnNodesChange: func(c []flow.NodeChange) {
			f.SyncNodes(flow.ApplyNodeChanges(c, f.GetNodes()))
		},
	})
	require.NoError(t, err)
	defer f.Close()

	f.PointerDown(pointer(10, 10))
	f.PointerMove(pointer(20, 30))
	f.PointerUp(pointer(20, 30))

	n := node(t, f, "A")
	assert.Equal(t, geom.XY{X: 10, Y: 20}, n.Position)
	assert.True(t, n.Selected)
	assert.False(t, n.Dragging)
}

func TestHandleTakesPrecedenceOverDrag(t *testing.T) {
	var conns []flow.Connection
	f := newFlow(t, Options{
		DefaultNodes: connectable(),
		OnConnect:    func(c flow.Connection) { conns = append(conns, c) },
	})

	target := f.PointerDown(pointer(100, 25))
	assert.Equal(t, TargetHandle, target.Kind)
	assert.False(t, f.drag.Active(), "a handle never starts a node drag")
	assert.True(t, f.ConnectionState().InProgress)

	f.PointerMove(pointer(298, 27))
	st := f.ConnectionState()
	require.NotNil(t, st.IsValid)
	assert.True(t, *st.IsValid)

	f.PointerUp(pointer(298, 27))
	want := flow.Connection{Source: "A", SourceHandle: "s", Target: "B", TargetHandle: "t"}
	assert.Equal(t, []flow.Connection{want}, conns)
	assert.False(t, f.ConnectionState().InProgress)
	assert.Equal(t, geom.XY{}, node(t, f, "A").Position)

	edges := f.GetEdges()
	require.Len(t, edges, 1)
	assert.Equal(t, "xy-edge__As-Bt", edges[0].ID)
	hc := f.GetHandleConnections("A", flow.HandleSource, "s")
	require.Len(t, hc, 1)
	assert.Equal(t, want, hc[0].Connection)

	// the same connection again adds no duplicate
	f.PointerDown(pointer(100, 25))
	f.PointerMove(pointer(298, 27))
	f.PointerUp(pointer(298, 27))
	assert.Len(t, conns, 2)
	assert.Len(t, f.GetEdges(), 1)
}

func TestStrictModeRejectsSourceToSource(t *testing.T) {
	var conns int
	f := newFlow(t, Options{
		DefaultNodes: connectable(),
		OnConnect:    func(flow.Connection) { conns++ },
	})

	f.PointerDown(pointer(100, 25))
	f.PointerMove(pointer(400, 25))
	f.PointerUp(pointer(400, 25))

	assert.Zero(t, conns)
	assert.Empty(t, f.GetEdges())
}

func TestClickToConnect(t *testing.T) {
	var conns []flow.Connection
	f := newFlow(t, Options{
		DefaultNodes: connectable(),
		OnConnect:    func(c flow.Connection) { conns = append(conns, c) },
	})

	f.PointerDown(pointer(100, 25))
	f.PointerUp(pointer(100, 25))
	assert.Empty(t, conns)

	f.PointerDown(pointer(300, 25))
	f.PointerUp(pointer(300, 25))
	require.Len(t, conns, 1)
	assert.Equal(t, "B", conns[0].Target)

	// a pane click disarms
	f.PointerDown(pointer(100, 25))
	f.PointerUp(pointer(100, 25))
	f.PointerDown(pointer(200, 200))
	f.PointerUp(pointer(200, 200))
	f.PointerDown(pointer(300, 25))
	f.PointerUp(pointer(300, 25))
	assert.Len(t, conns, 1)
}

func TestConnectionRule(t *testing.T) {
	_, err := New(Options{ConnectionRule: "source =="})
	require.Error(t, err)

	var conns int
	f := newFlow(t, Options{
		DefaultNodes:   connectable(),
		ConnectionRule: "source != target",
		OnConnect:      func(flow.Connection) { conns++ },
	})
	f.PointerDown(pointer(100, 25))
	f.PointerMove(pointer(0, 25))
	st := f.ConnectionState()
	require.NotNil(t, st.IsValid)
	assert.False(t, *st.IsValid)
	f.PointerUp(pointer(0, 25))
	assert.Zero(t, conns)
}

func TestPaneGestures(t *testing.T) {
	a := box("A", 0, 0, 100, 50)
	a.Selected = true
	f := newFlow(t, Options{DefaultNodes: []flow.Node{a}})
	f.SetBounds(geom.Rect{Width: 400, Height: 400})

	assert.Equal(t, TargetPane, f.PointerDown(pointer(200, 200)).Kind)
	f.PointerMove(pointer(250, 220))
	f.PointerUp(pointer(250, 220))
	assert.Equal(t, geom.Transform{X: 50, Y: 20, Zoom: 1}, f.GetViewport())
	assert.True(t, node(t, f, "A").Selected, "a pan keeps the selection")

	f.PointerDown(pointer(300, 300))
	f.PointerUp(pointer(300, 300))
	assert.False(t, node(t, f, "A").Selected, "a pane click clears it")
}

func TestSelectionRectangle(t *testing.T) {
	f := newFlow(t, Options{DefaultNodes: connectable()})
	var rects []*geom.Rect
	f.SubscribeSelectionRect(func(r *geom.Rect) { rects = append(rects, r) })
	var selected [][]string
	f.SubscribeSelectedNodes(func(ids []string) { selected = append(selected, ids) })

	ev := pointer(-20, -20)
	ev.Multi = true
	f.PointerDown(ev)
	ev.Point = geom.XY{X: 150, Y: 80}
	f.PointerMove(ev)

	r, ok := f.SelectionRect()
	require.True(t, ok)
	assert.Equal(t, geom.Rect{X: -20, Y: -20, Width: 170, Height: 100}, r)
	assert.True(t, node(t, f, "A").Selected)
	assert.False(t, node(t, f, "B").Selected)

	f.PointerUp(ev)
	_, ok = f.SelectionRect()
	assert.False(t, ok)
	require.NotEmpty(t, rects)
	assert.Nil(t, rects[len(rects)-1])
	assert.Equal(t, [][]string{{"A"}}, selected)
}

func TestOneGesturePerPointer(t *testing.T) {
	f := newFlow(t, Options{DefaultNodes: []flow.Node{box("A", 0, 0, 50, 50), box("B", 100, 0, 50, 50)}})

	f.PointerDown(pointer(10, 10))
	f.PointerDown(pointer(110, 10))
	second := PointerEvent{ID: 2, Point: geom.XY{X: 110, Y: 10}}
	f.PointerDown(second)
	assert.Equal(t, "A", f.drag.Target())

	f.PointerMove(PointerEvent{ID: 2, Point: geom.XY{X: 200, Y: 10}})
	assert.Equal(t, geom.XY{X: 100}, node(t, f, "B").Position)
}

func TestFitViewTwoNodes(t *testing.T) {
	f := newFlow(t, Options{DefaultNodes: []flow.Node{
		box("A", 0, 0, 100, 100),
		box("B", 300, 0, 100, 100),
	}})
	assert.False(t, f.FitView(FitViewOptions{}), "no viewport size yet")

	f.SetBounds(geom.Rect{Width: 400, Height: 400})
	require.True(t, f.FitView(FitViewOptions{Padding: Padding(0)}))
	assert.Equal(t, geom.Transform{X: 0, Y: 150, Zoom: 1}, f.GetViewport())

	empty := newFlow(t, Options{Width: 400, Height: 400})
	assert.False(t, empty.FitView(FitViewOptions{}))
}

func TestFitViewOnInit(t *testing.T) {
	nodes := []flow.Node{box("A", 0, 0, 100, 100), box("B", 300, 0, 100, 100)}
	f := newFlow(t, Options{DefaultNodes: nodes, Width: 400, Height: 400, FitView: true})
	assertTransform(t, geom.Transform{X: 40, Y: 160, Zoom: 0.8}, f.GetViewport())

	// unmeasured nodes defer the fit to the first measurement
	unmeasured := []flow.Node{{ID: "A"}, {ID: "B", Position: geom.XY{X: 300}}}
	f = newFlow(t, Options{DefaultNodes: unmeasured, Width: 400, Height: 400, FitView: true})
	assert.Equal(t, geom.Identity, f.GetViewport())

	f.UpdateNodeInternals(
		flow.InternalsUpdate{ID: "A", Dimensions: geom.Dimensions{Width: 100, Height: 100}},
		flow.InternalsUpdate{ID: "B", Dimensions: geom.Dimensions{Width: 100, Height: 100}},
	)
	assertTransform(t, geom.Transform{X: 40, Y: 160, Zoom: 0.8}, f.GetViewport())

	f.SetViewport(geom.Identity, viewport.TransitionOptions{})
	f.UpdateNodeInternals(flow.InternalsUpdate{ID: "A", Dimensions: geom.Dimensions{Width: 50, Height: 50}})
	assert.Equal(t, geom.Identity, f.GetViewport(), "the initial fit runs once")
}

func TestZoomIsClamped(t *testing.T) {
	f := newFlow(t, Options{MinZoom: 0.5, MaxZoom: 2})
	for _, level := range []float64{10, 0.01, 1.3, 2, 0.5} {
		f.ZoomTo(level, viewport.TransitionOptions{})
		z := f.GetZoom()
		assert.GreaterOrEqual(t, z, 0.5)
		assert.LessOrEqual(t, z, 2.0)
	}
	f.ZoomTo(10, viewport.TransitionOptions{})
	assert.Equal(t, 2.0, f.GetZoom())
}

func TestTransitionAdvancesOnTick(t *testing.T) {
	now := time.Unix(1000, 0)
	f := newFlow(t, Options{Now: func() time.Time { return now }, Width: 400, Height: 400})
	var moves []geom.Transform
	f.SubscribeViewport(func(t geom.Transform) { moves = append(moves, t) })

	require.True(t, f.ZoomTo(2, viewport.TransitionOptions{Duration: 100 * time.Millisecond}))
	assert.True(t, f.Transitioning())
	assert.Equal(t, 1.0, f.GetZoom())

	f.Tick(now.Add(50 * time.Millisecond))
	assert.Greater(t, f.GetZoom(), 1.0)
	assert.Less(t, f.GetZoom(), 2.0)

	// a user gesture preempts the transition
	f.PointerDown(pointer(10, 10))
	assert.False(t, f.Transitioning())
	f.PointerUp(pointer(10, 10))

	f.ZoomTo(2, viewport.TransitionOptions{Duration: 100 * time.Millisecond})
	f.Tick(now.Add(100 * time.Millisecond))
	assert.Equal(t, 2.0, f.GetZoom())
	assert.False(t, f.Transitioning())
	assert.Len(t, moves, 2)
}

func TestAutoTick(t *testing.T) {
	f := newFlow(t, Options{AutoTick: true, TickInterval: time.Millisecond, Width: 400, Height: 400})
	f.ZoomTo(2, viewport.TransitionOptions{Duration: 20 * time.Millisecond})
	require.Eventually(t, func() bool {
		return !f.Transitioning() && f.GetZoom() == 2
	}, time.Second, 5*time.Millisecond)
}

func TestWheelZoomKeepsPointFixed(t *testing.T) {
	f := newFlow(t, Options{})
	f.SetBounds(geom.Rect{X: 10, Y: 10, Width: 400, Height: 400})
	at := geom.XY{X: 110, Y: 60}
	before := f.ScreenToFlowPosition(at, false)

	require.True(t, f.Wheel(viewport.WheelEvent{Point: at, DeltaY: -100}))
	assert.Greater(t, f.GetZoom(), 1.0)
	after := f.ScreenToFlowPosition(at, false)
	assert.InDelta(t, before.X, after.X, 1e-9)
	assert.InDelta(t, before.Y, after.Y, 1e-9)
}

func TestCoordinateRoundTrip(t *testing.T) {
	f := newFlow(t, Options{})
	f.SetBounds(geom.Rect{X: 20, Y: 30, Width: 400, Height: 400})
	f.SetViewport(geom.Transform{X: 15, Y: -7, Zoom: 1.5}, viewport.TransitionOptions{})

	for _, p := range []geom.XY{{}, {X: 123, Y: 77}, {X: -40.5, Y: 1e4}} {
		back := f.FlowToScreenPosition(f.ScreenToFlowPosition(p, false))
		assert.InDelta(t, p.X, back.X, 1e-9)
		assert.InDelta(t, p.Y, back.Y, 1e-9)
	}
	assert.Equal(t, geom.XY{X: 0, Y: 15}, f.ScreenToFlowPosition(geom.XY{X: 40, Y: 40}, true))
}

func TestDeleteElements(t *testing.T) {
	p := box("P", 0, 0, 200, 200)
	c := box("C", 10, 10, 20, 20)
	c.ParentID = "P"
	keep := box("K", 300, 0, 20, 20)
	keep.Deletable = flow.Bool(false)
	var nodeChanges, edgeChanges []string
	f := newFlow(t, Options{
		DefaultNodes: []flow.Node{p, c, box("D", 400, 0, 20, 20), keep},
		DefaultEdges: []flow.Edge{
			{ID: "e1", Source: "C", Target: "D"},
			{ID: "e2", Source: "D", Target: "K"},
		},
		OnNodesChange: func(c []flow.NodeChange) { nodeChanges = append(nodeChanges, changeStrings(c)...) },
		OnEdgesChange: func(c []flow.EdgeChange) {
			for _, ch := range c {
				edgeChanges = append(edgeChanges, ch.String())
			}
		},
	})

	nodes, edges := f.DeleteElements([]string{"P", "K"}, nil)
	assert.Equal(t, []string{"P", "C"}, nodes)
	assert.Equal(t, []string{"e1"}, edges)
	assert.Equal(t, []string{"remove(node=P)", "remove(node=C)"}, nodeChanges)
	assert.Equal(t, []string{"remove(edge=e1)"}, edgeChanges)
	assert.Len(t, f.GetNodes(), 2)
	assert.Empty(t, f.GetNodeConnections("C", ""))
	assert.Len(t, f.GetNodeConnections("D", flow.HandleSource), 1)

	f.AddSelectedEdges("e2")
	nodes, edges = f.DeleteSelected()
	assert.Empty(t, nodes)
	assert.Equal(t, []string{"e2"}, edges)
	assert.Empty(t, f.GetEdges())
}

func TestErrorsAreReported(t *testing.T) {
	var codes []flow.Code
	onError := func(code flow.Code, _ string) { codes = append(codes, code) }

	x := box("X", 0, 0, 10, 10)
	x.ParentID = "Y"
	y := box("Y", 0, 0, 10, 10)
	y.ParentID = "X"
	f := newFlow(t, Options{DefaultNodes: []flow.Node{x, y}, OnError: onError})
	assert.Contains(t, codes, flow.CodeCyclicParent)
	assert.Empty(t, node(t, f, "X").ParentID)
	assert.Empty(t, node(t, f, "Y").ParentID)

	codes = nil
	f.AddSelectedNodes("X", "missing")
	assert.Equal(t, []flow.Code{flow.CodeInvalidSelectionTarget}, codes)
	assert.True(t, node(t, f, "X").Selected)

	codes = nil
	assert.False(t, f.UpdateNodeData("missing", nil, false))
	assert.Equal(t, []flow.Code{flow.CodeNodeNotFound}, codes)

	codes = nil
	typed := box("T", 0, 0, 10, 10)
	typed.Type = "fancy"
	f = newFlow(t, Options{DefaultNodes: []flow.Node{typed}, NodeTypes: []string{"default"}, OnError: onError})
	f.SetNodes(f.GetNodes())
	assert.Equal(t, []flow.Code{flow.CodeUnknownNodeType}, codes)
}

func TestDanglingEdgesAreSilent(t *testing.T) {
	var codes []flow.Code
	f := newFlow(t, Options{
		DefaultNodes: []flow.Node{box("A", 0, 0, 10, 10)},
		DefaultEdges: []flow.Edge{{ID: "e1", Source: "A", Target: "ghost"}},
		OnError:      func(code flow.Code, _ string) { codes = append(codes, code) },
	})
	assert.Empty(t, codes)
	assert.Empty(t, f.GetNodeConnections("A", ""))

	f.AddNodes(box("ghost", 50, 0, 10, 10))
	assert.Len(t, f.GetNodeConnections("A", ""), 1, "edges are indexed once their nodes exist")
}

func TestBatchNotifiesOnce(t *testing.T) {
	f := newFlow(t, Options{})
	var notified int
	f.SubscribeNodes(func([]flow.Node) { notified++ })

	f.Batch(func() {
		f.AddNodes(box("A", 0, 0, 10, 10))
		f.AddNodes(box("B", 20, 0, 10, 10))
		f.UpdateNodeData("A", map[string]any{"label": "a"}, false)
	})
	assert.Equal(t, 1, notified)
	assert.Len(t, f.GetNodes(), 2)

	f.AddNodes(box("C", 40, 0, 10, 10))
	f.AddNodes(box("D", 60, 0, 10, 10))
	assert.Equal(t, 3, notified)
}

func TestUpdateNodeData(t *testing.T) {
	a := box("A", 0, 0, 10, 10)
	a.Data = map[string]any{"label": "a", "n": 1}
	f := newFlow(t, Options{DefaultNodes: []flow.Node{a}})

	require.True(t, f.UpdateNodeData("A", map[string]any{"n": 2}, false))
	assert.Equal(t, map[string]any{"label": "a", "n": 2}, node(t, f, "A").Data)
	assert.Equal(t, 1, a.Data["n"], "the caller's map is not mutated")

	require.True(t, f.UpdateNodeData("A", map[string]any{"x": true}, true))
	assert.Equal(t, map[string]any{"x": true}, node(t, f, "A").Data)
}

func TestIntersectingNodes(t *testing.T) {
	f := newFlow(t, Options{DefaultNodes: []flow.Node{
		box("A", 0, 0, 100, 100),
		box("B", 50, 50, 100, 100),
		box("C", 10, 10, 20, 20),
		box("D", 500, 500, 10, 10),
	}})

	ids := func(nodes []flow.Node) []string {
		var out []string
		for _, n := range nodes {
			out = append(out, n.ID)
		}
		return out
	}
	assert.Equal(t, []string{"B", "C"}, ids(f.GetIntersectingNodes("A", true)))
	assert.Equal(t, []string{"C"}, ids(f.GetIntersectingNodes("A", false)))
	assert.Equal(t, []string{"D"}, ids(f.GetNodesInRect(geom.Rect{X: 400, Y: 400, Width: 200, Height: 200}, false)))
	assert.Nil(t, f.GetIntersectingNodes("missing", true))
}

func TestGraphQueries(t *testing.T) {
	f := newFlow(t, Options{
		DefaultNodes: []flow.Node{box("A", 0, 0, 10, 10), box("B", 20, 0, 10, 10), box("C", 40, 0, 10, 10)},
		DefaultEdges: []flow.Edge{
			{ID: "ab", Source: "A", Target: "B"},
			{ID: "cb", Source: "C", Target: "B"},
		},
	})
	assert.Len(t, f.GetIncomers("B"), 2)
	assert.Len(t, f.GetOutgoers("A"), 1)
	assert.Len(t, f.GetConnectedEdges("A"), 1)

	hc := f.GetNodeConnections("B", flow.HandleTarget)
	require.Len(t, hc, 2)
	assert.Equal(t, "ab", hc[0].EdgeID)
	assert.Equal(t, "cb", hc[1].EdgeID)
}

func assertTransform(t *testing.T, want, got geom.Transform) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-9, "x")
	assert.InDelta(t, want.Y, got.Y, 1e-9, "y")
	assert.InDelta(t, want.Zoom, got.Zoom, 1e-9, "zoom")
}

func changeStrings(changes []flow.NodeChange) []string {
	out := make([]string, len(changes))
	for i, c := range changes {
		out[i] = c.String()
	}
	return out
}
