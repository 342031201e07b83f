// Package store is the state container of one diagram. A Flow owns the
// node and edge lookups, the viewport and the gesture controllers, and is
// the only writer of them. Subscribers are notified once per operation,
// after the flow's lock is released.
package store

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/recera/vango-flow/pkg/drag"
	"github.com/recera/vango-flow/pkg/flow"
	"github.com/recera/vango-flow/pkg/geom"
	"github.com/recera/vango-flow/pkg/handle"
	"github.com/recera/vango-flow/pkg/reactive"
	"github.com/recera/vango-flow/pkg/scheduler"
	"github.com/recera/vango-flow/pkg/viewport"
)

// Flow is one diagram. All methods are safe for concurrent use.
type Flow struct {
	id   string
	opts Options
	log  *log.Logger

	mu              sync.Mutex
	nodesControlled bool
	edgesControlled bool

	nodeLookup *flow.NodeLookup
	edgeLookup *flow.EdgeLookup
	conns      *flow.ConnectionLookup

	pz      *viewport.PanZoom
	drag    *drag.Controller
	sel     *drag.Selection
	connect *handle.Controller

	gestures map[int]*gesture
	offset   geom.XY
	fitted   bool
	reported map[string]bool

	// pending host callbacks, run after unlock
	pending []func()

	scope      *reactive.Scope
	nodes      *reactive.State[[]flow.Node]
	edges      *reactive.State[[]flow.Edge]
	viewport   *reactive.State[geom.Transform]
	connection *reactive.State[handle.ConnectionState]
	selection  *reactive.State[*geom.Rect]

	sched *scheduler.Scheduler
	task  *scheduler.Task
}

// host adapts a Flow to the controller Host interfaces. Its methods are
// called with f.mu held.
type host Flow

func (h *host) Nodes() *flow.NodeLookup { return h.nodeLookup }

func (h *host) Edges() []flow.Edge { return h.edgeLookup.Edges() }

func (h *host) Transform() geom.Transform { return h.pz.Transform() }

func (h *host) Size() (float64, float64) { return h.pz.Size() }

func (h *host) PanBy(d geom.XY) bool { return h.pz.PanBy(d) }

// New creates a flow. It fails only when the connection rule does not
// compile.
func New(opts Options) (*Flow, error) {
	o := opts.withDefaults()
	f := &Flow{
		opts:            o,
		id:              uuid.NewString(),
		nodesControlled: o.Nodes != nil,
		edgesControlled: o.Edges != nil,
		nodeLookup:      flow.NewNodeLookup(),
		edgeLookup:      flow.NewEdgeLookup(),
		conns:           flow.NewConnectionLookup(),
		gestures:        make(map[int]*gesture),
		reported:        make(map[string]bool),
		scope:           reactive.NewScope(),
	}
	f.log = o.Logger.With("flow", f.id[:8])
	f.nodes = reactive.NewState[[]flow.Node](nil, f.scope)
	f.edges = reactive.NewState[[]flow.Edge](nil, f.scope)
	f.viewport = reactive.NewState(geom.Identity, f.scope)
	f.connection = reactive.NewState(handle.ConnectionState{}, f.scope)
	f.selection = reactive.NewState[*geom.Rect](nil, f.scope)

	validator := o.IsValidConnection
	if o.ConnectionRule != "" {
		rule, err := handle.CompileRule(o.ConnectionRule)
		if err != nil {
			return nil, err
		}
		validator = both(validator, rule.Validator(
			func() *flow.NodeLookup { return f.nodeLookup },
			func(err error) { f.report(flow.Errorf(flow.CodeConnectionRule, "", "%v", err)) },
		))
	}

	vo := o.viewportOptions()
	vo.OnChange = f.viewportChanged
	f.pz = viewport.New(vo)
	f.viewport.Set(f.pz.Transform())

	h := (*host)(f)
	f.drag = drag.New(h, o.dragOptions())
	f.sel = drag.NewSelection(h, o.SelectionMode, on(o.ElementsSelectable))
	f.connect = handle.New(h, handle.Options{
		Mode:              o.ConnectionMode,
		Radius:            o.ConnectionRadius,
		NodesConnectable:  on(o.NodesConnectable),
		IsValidConnection: validator,
	})

	nodes, edges := o.DefaultNodes, o.DefaultEdges
	if f.nodesControlled {
		nodes = o.Nodes
	}
	if f.edgesControlled {
		edges = o.Edges
	}

	b := f.lock()
	f.adoptNodes(nodes)
	f.adoptEdges(edges)
	f.maybeFit()
	f.unlock(b)

	if o.AutoTick {
		f.sched = scheduler.NewScheduler(o.TickInterval)
		f.sched.SetDefaultErrorHandler(func(_ *scheduler.Task, err interface{}) bool {
			f.log.Error("tick panicked", "err", err)
			return false
		})
		f.task = f.sched.Schedule(func(now time.Time) bool {
			f.Tick(now)
			return false
		})
		f.sched.Start()
	}
	f.log.Debug("flow created", "nodes", len(nodes), "edges", len(edges),
		"controlled", f.nodesControlled || f.edgesControlled)
	return f, nil
}

func both(a, b handle.Validator) handle.Validator {
	if a == nil {
		return b
	}
	return func(c flow.Connection) bool { return a(c) && b(c) }
}

// ID returns the flow's unique id.
func (f *Flow) ID() string { return f.id }

// Close stops the AutoTick scheduler and any running transition.
func (f *Flow) Close() {
	if f.sched != nil {
		f.task.Cancel()
		f.sched.Stop()
	}
	b := f.lock()
	defer f.unlock(b)
	f.pz.Cancel()
}

// Batch runs fn and notifies subscribers once at the end, however many
// operations fn performs. Host callbacks still run after each operation.
func (f *Flow) Batch(fn func()) {
	f.scope.RunBatch(fn)
}

// Tick advances time-based state: viewport transitions, the debounced end
// of wheel zooms and auto-pan while dragging near the border.
func (f *Flow) Tick(now time.Time) {
	b := f.lock()
	defer f.unlock(b)
	f.pz.Tick(now)
	f.applyResult(f.drag.AutoPan())
}

// lock takes the flow lock and opens a notification batch. Writes made
// before the matching unlock reach subscribers once.
func (f *Flow) lock() *reactive.Batch {
	f.mu.Lock()
	return f.scope.Begin()
}

func (f *Flow) unlock(b *reactive.Batch) {
	f.scope.Release(b)
	calls := f.pending
	f.pending = nil
	f.mu.Unlock()

	if b != nil {
		b.Commit()
	}
	for _, fn := range calls {
		fn()
	}
}

// queue schedules a host callback for after unlock.
func (f *Flow) queue(fn func()) {
	f.pending = append(f.pending, fn)
}

func (f *Flow) report(errs ...*flow.Error) {
	for _, err := range errs {
		if err == nil {
			continue
		}
		if h := f.opts.OnError; h != nil {
			code, msg := err.Code, err.Message
			f.queue(func() { h(code, msg) })
			continue
		}
		f.log.Warn(err.Message, "code", err.Code, "id", err.ID)
	}
}

func (f *Flow) viewportChanged(t geom.Transform) {
	f.viewport.Set(t)
	if cb := f.opts.OnMove; cb != nil {
		f.queue(func() { cb(t) })
	}
}

// adoptNodes makes nodes the content of the node lookup and publishes it.
func (f *Flow) adoptNodes(nodes []flow.Node) {
	f.report(flow.AdoptNodes(nodes, f.nodeLookup, f.opts.adoptOptions())...)
	f.checkTypes()
	f.conns.Reindex(f.edgeLookup.Edges(), f.nodeLookup)
	f.nodes.Set(f.nodeLookup.UserNodes())
}

func (f *Flow) adoptEdges(edges []flow.Edge) {
	f.edgeLookup.AdoptEdges(edges)
	f.conns.Reindex(f.edgeLookup.Edges(), f.nodeLookup)
	f.edges.Set(f.edgeLookup.Edges())
}

// checkTypes reports each node id with an unregistered type once.
func (f *Flow) checkTypes() {
	if len(f.opts.NodeTypes) == 0 {
		return
	}
	for _, n := range f.nodeLookup.Nodes() {
		if n.Type == "" || slices.Contains(f.opts.NodeTypes, n.Type) {
			continue
		}
		key := n.ID + "\x00" + n.Type
		if f.reported[key] {
			continue
		}
		f.reported[key] = true
		f.report(flow.Errorf(flow.CodeUnknownNodeType, n.ID,
			"node type %q not found, using the default node", n.Type))
	}
}

// applyNodeChanges reports changes to the host and, for an uncontrolled
// collection, applies them.
func (f *Flow) applyNodeChanges(changes []flow.NodeChange) {
	if len(changes) == 0 {
		return
	}
	if cb := f.opts.OnNodesChange; cb != nil {
		f.queue(func() { cb(changes) })
	}
	if f.nodesControlled {
		return
	}
	f.adoptNodes(flow.ApplyNodeChanges(changes, f.nodeLookup.UserNodes()))
}

func (f *Flow) applyEdgeChanges(changes []flow.EdgeChange) {
	if len(changes) == 0 {
		return
	}
	if cb := f.opts.OnEdgesChange; cb != nil {
		f.queue(func() { cb(changes) })
	}
	if f.edgesControlled {
		return
	}
	f.adoptEdges(flow.ApplyEdgeChanges(changes, f.edgeLookup.Edges()))
}

func (f *Flow) applyResult(res drag.Result) {
	f.applyNodeChanges(res.Nodes)
	f.applyEdgeChanges(res.Edges)
}

// completeConnection hands c to the host and, for uncontrolled edges, adds
// an edge unless one with the same endpoints exists.
func (f *Flow) completeConnection(c flow.Connection) {
	f.log.Debug("connect", "source", c.Source, "target", c.Target)
	if cb := f.opts.OnConnect; cb != nil {
		f.queue(func() { cb(c) })
	}
	if f.edgesControlled {
		return
	}
	id := flow.EdgeID(c)
	if f.edgeLookup.Has(id) {
		return
	}
	for _, e := range f.edgeLookup.Edges() {
		if flow.ConnectionOf(e) == c {
			return
		}
	}
	e := flow.Edge{
		ID:           id,
		Source:       c.Source,
		SourceHandle: c.SourceHandle,
		Target:       c.Target,
		TargetHandle: c.TargetHandle,
	}
	f.applyEdgeChanges([]flow.EdgeChange{{Type: flow.ChangeAdd, ID: id, Item: &e}})
}

// fitRects returns the bounds of the nodes FitView considers.
func (f *Flow) fitRects(opts FitViewOptions) []geom.Rect {
	var nodes []*flow.InternalNode
	if len(opts.Nodes) > 0 {
		for _, id := range opts.Nodes {
			if n, ok := f.nodeLookup.Get(id); ok {
				nodes = append(nodes, n)
			}
		}
	} else {
		nodes = f.nodeLookup.Nodes()
	}
	rects := make([]geom.Rect, 0, len(nodes))
	for _, n := range nodes {
		if !n.IsMeasured() || (n.Hidden && !opts.IncludeHidden) {
			continue
		}
		rects = append(rects, n.Rect())
	}
	return rects
}

func (f *Flow) fitView(opts FitViewOptions) bool {
	padding := DefaultFitViewPadding
	if opts.Padding != nil {
		padding = *opts.Padding
	}
	return f.pz.FitView(f.fitRects(opts), viewport.FitViewOptions{
		Padding:  padding,
		MinZoom:  opts.MinZoom,
		MaxZoom:  opts.MaxZoom,
		Duration: opts.Duration,
	})
}

// maybeFit runs the one-off fit requested by Options.FitView once every
// visible node is measured.
func (f *Flow) maybeFit() {
	if !f.opts.FitView || f.fitted {
		return
	}
	for _, n := range f.nodeLookup.Nodes() {
		if !n.Hidden && !n.IsMeasured() {
			return
		}
	}
	if f.fitView(f.opts.FitViewOptions) {
		f.fitted = true
		f.log.Debug("initial fit", "transform", fmt.Sprintf("%+v", f.pz.Transform()))
	}
}
