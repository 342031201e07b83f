// Package tui is a terminal host for a flow. It measures nodes in
// terminal cells, feeds keyboard and mouse input to the store and draws
// the diagram with lipgloss.
package tui

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/recera/vango-flow/internal/document"
	"github.com/recera/vango-flow/internal/idgen"
	"github.com/recera/vango-flow/pkg/flow"
	"github.com/recera/vango-flow/pkg/geom"
	"github.com/recera/vango-flow/pkg/store"
	"github.com/recera/vango-flow/pkg/viewport"
)

// One terminal cell covers CellWidth x CellHeight screen pixels.
const (
	CellWidth  = 8.0
	CellHeight = 16.0
)

const (
	// FrameInterval is the tick rate driving transitions and auto-pan.
	FrameInterval = 16 * time.Millisecond
	// PanStep is the distance in cells a pan key moves the view.
	PanStep = 4
	// WheelDelta is the scroll amount of one wheel notch.
	WheelDelta = 100.0

	zoomDuration = 150 * time.Millisecond
	maxNotes     = 5
)

// Messages
type tickMsg time.Time

// DocumentMsg replaces the flow content, typically after the document
// file changed on disk.
type DocumentMsg struct {
	Doc *document.Document
	Err error
}

// notes collects the flow's reported errors. It is shared by all copies
// of a Model and written from whichever goroutine runs the flow callback.
type notes struct {
	mu    sync.Mutex
	lines []string
}

func (n *notes) report(code flow.Code, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lines = append(n.lines, fmt.Sprintf("%s: %s", code, msg))
	if len(n.lines) > maxNotes {
		n.lines = n.lines[len(n.lines)-maxNotes:]
	}
}

func (n *notes) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.lines) == 0 {
		return ""
	}
	return n.lines[len(n.lines)-1]
}

// Model is the bubbletea model of the flow viewer.
type Model struct {
	flow  *store.Flow
	notes *notes
	keys  KeyMap
	help  help.Model
	title string
	grid  [2]float64

	width    int
	height   int
	status   string
	quitting bool
}

// New creates the flow described by opts and a model showing it. The
// model reports flow errors in its status line; an OnError already in
// opts still receives them.
func New(opts store.Options, title string) (Model, error) {
	n := &notes{}
	if prev := opts.OnError; prev != nil {
		opts.OnError = func(code flow.Code, msg string) {
			n.report(code, msg)
			prev(code, msg)
		}
	} else {
		opts.OnError = n.report
	}
	f, err := store.New(opts)
	if err != nil {
		return Model{}, err
	}

	grid := opts.SnapGrid
	if grid[0] <= 0 || grid[1] <= 0 {
		grid = [2]float64{15, 15}
	}
	m := Model{
		flow:  f,
		notes: n,
		keys:  DefaultKeyMap,
		help:  help.New(),
		title: title,
		grid:  grid,
	}
	m.measure()
	return m, nil
}

// Flow returns the flow the model shows.
func (m Model) Flow() *store.Flow { return m.flow }

func tick() tea.Cmd {
	return tea.Tick(FrameInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts the frame ticker.
func (m Model) Init() tea.Cmd {
	return tick()
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.resize()
		return m, nil

	case tickMsg:
		m.flow.Tick(time.Time(msg))
		return m, tick()

	case DocumentMsg:
		m.load(msg)
		return m, nil

	case tea.MouseMsg:
		m.handleMouse(msg)
		m.measure()
		return m, nil

	case tea.KeyMsg:
		cmd := m.handleKey(msg)
		m.measure()
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		m.flow.Close()
		return tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.resize()

	case key.Matches(msg, m.keys.Up):
		m.pan(0, PanStep)
	case key.Matches(msg, m.keys.Down):
		m.pan(0, -PanStep)
	case key.Matches(msg, m.keys.Left):
		m.pan(PanStep, 0)
	case key.Matches(msg, m.keys.Right):
		m.pan(-PanStep, 0)

	case key.Matches(msg, m.keys.MoveUp):
		m.nudge(0, -m.grid[1])
	case key.Matches(msg, m.keys.MoveDown):
		m.nudge(0, m.grid[1])
	case key.Matches(msg, m.keys.MoveLeft):
		m.nudge(-m.grid[0], 0)
	case key.Matches(msg, m.keys.MoveRight):
		m.nudge(m.grid[0], 0)

	case key.Matches(msg, m.keys.ZoomIn):
		m.flow.ZoomIn(viewport.TransitionOptions{Duration: zoomDuration})
	case key.Matches(msg, m.keys.ZoomOut):
		m.flow.ZoomOut(viewport.TransitionOptions{Duration: zoomDuration})
	case key.Matches(msg, m.keys.Fit):
		m.flow.FitView(store.FitViewOptions{Duration: 2 * zoomDuration})

	case key.Matches(msg, m.keys.Next):
		m.selectNext()
	case key.Matches(msg, m.keys.Add):
		m.addNode()
	case key.Matches(msg, m.keys.Delete):
		nodes, edges := m.flow.DeleteSelected()
		if len(nodes)+len(edges) > 0 {
			m.status = fmt.Sprintf("deleted %d nodes, %d edges", len(nodes), len(edges))
		}
	case key.Matches(msg, m.keys.Cancel):
		m.flow.CancelConnection()
		m.flow.UnselectAll()
	}
	return nil
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	ev := store.PointerEvent{Point: cellCenter(msg.X, msg.Y), Multi: msg.Shift}
	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.flow.Wheel(viewport.WheelEvent{Point: ev.Point, DeltaY: -WheelDelta, Ctrl: msg.Ctrl})
	case msg.Button == tea.MouseButtonWheelDown:
		m.flow.Wheel(viewport.WheelEvent{Point: ev.Point, DeltaY: WheelDelta, Ctrl: msg.Ctrl})
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		m.flow.PointerDown(ev)
	case msg.Action == tea.MouseActionMotion:
		m.flow.PointerMove(ev)
	case msg.Action == tea.MouseActionRelease:
		m.flow.PointerUp(ev)
	}
}

func (m *Model) load(msg DocumentMsg) {
	if msg.Err != nil {
		m.status = "reload failed: " + msg.Err.Error()
		return
	}
	m.flow.Batch(func() {
		m.flow.SetNodes(msg.Doc.Nodes)
		m.flow.SetEdges(msg.Doc.Edges)
		if v := msg.Doc.Viewport; v != nil {
			m.flow.SetViewport(*v, viewport.TransitionOptions{})
		}
	})
	m.measure()
	m.status = fmt.Sprintf("loaded %d nodes, %d edges", len(msg.Doc.Nodes), len(msg.Doc.Edges))
}

// resize gives the flow the pixel size of the canvas area.
func (m *Model) resize() {
	h := m.canvasHeight()
	if m.width <= 0 || h <= 0 {
		return
	}
	m.flow.SetBounds(geom.Rect{Width: float64(m.width) * CellWidth, Height: float64(h) * CellHeight})
}

func (m Model) canvasHeight() int {
	footer := 1 + strings.Count(m.help.View(m.keys), "\n") + 1
	return m.height - footer
}

func (m *Model) pan(dx, dy int) {
	t := m.flow.GetViewport()
	t.X += float64(dx) * CellWidth
	t.Y += float64(dy) * CellHeight
	m.flow.SetViewport(t, viewport.TransitionOptions{})
}

// nudge moves every selected node by d flow units.
func (m *Model) nudge(dx, dy float64) {
	m.flow.Batch(func() {
		for _, n := range m.flow.GetNodes() {
			if !n.Selected || !n.IsDraggable(true) {
				continue
			}
			m.flow.UpdateNode(n.ID, func(n flow.Node) flow.Node {
				n.Position = n.Position.Add(geom.XY{X: dx, Y: dy})
				return n
			})
		}
	})
}

func (m *Model) selectNext() {
	var ids []string
	current := -1
	for _, n := range m.flow.GetNodes() {
		if n.Hidden {
			continue
		}
		if n.Selected && current < 0 {
			current = len(ids)
		}
		ids = append(ids, n.ID)
	}
	if len(ids) == 0 {
		return
	}
	next := ids[(current+1)%len(ids)]
	m.flow.AddSelectedNodes(next)
	m.status = "selected " + next
}

// addNode adds a node at the centre of the view, snapped to the grid.
func (m *Model) addNode() {
	id, err := idgen.Unique(idgen.NodePrefix, func(id string) bool {
		_, ok := m.flow.GetNode(id)
		return ok
	})
	if err != nil {
		m.status = err.Error()
		return
	}
	w, h := float64(m.width)*CellWidth, float64(m.canvasHeight())*CellHeight
	pos := m.flow.ScreenToFlowPosition(geom.XY{X: w / 2, Y: h / 2}, true)
	m.flow.AddNodes(flow.Node{
		ID:       id,
		Position: pos,
		Data:     map[string]any{"label": id},
	})
	m.status = "added " + id
}

// measure sizes unmeasured nodes from their labels and gives nodes without
// handles a target handle on the left and a source handle on the right.
func (m Model) measure() {
	var updates []flow.InternalsUpdate
	for _, n := range m.flow.GetNodes() {
		in, ok := m.flow.GetInternalNode(n.ID)
		if !ok || n.Hidden {
			continue
		}
		if in.IsMeasured() && in.Internals.HandleBounds != nil {
			continue
		}
		d := in.Dimensions()
		if d.IsZero() {
			d = labelSize(label(n))
		}
		u := flow.InternalsUpdate{ID: n.ID, Dimensions: d}
		if in.Internals.HandleBounds == nil {
			u.HandleBounds = defaultHandles(n.ID, d)
		}
		updates = append(updates, u)
	}
	if len(updates) > 0 {
		m.flow.UpdateNodeInternals(updates...)
	}
}

func label(n flow.Node) string {
	if s, ok := n.Data["label"].(string); ok && s != "" {
		return s
	}
	return n.ID
}

func labelSize(s string) geom.Dimensions {
	cells := max(len([]rune(s))+4, 10)
	return geom.Dimensions{Width: float64(cells) * CellWidth, Height: 3 * CellHeight}
}

func defaultHandles(nodeID string, d geom.Dimensions) *flow.HandleBounds {
	y := d.Height/2 - CellHeight/2
	return &flow.HandleBounds{
		Target: []flow.Handle{{
			NodeID: nodeID, Type: flow.HandleTarget, Position: flow.Left,
			X: 0, Y: y, Width: CellWidth, Height: CellHeight,
		}},
		Source: []flow.Handle{{
			NodeID: nodeID, Type: flow.HandleSource, Position: flow.Right,
			X: d.Width - CellWidth, Y: y, Width: CellWidth, Height: CellHeight,
		}},
	}
}

// selectedIDs returns the selected node ids in declaration order.
func (m Model) selectedIDs() []string {
	var ids []string
	for _, n := range m.flow.GetNodes() {
		if n.Selected {
			ids = append(ids, n.ID)
		}
	}
	return slices.Clip(ids)
}
