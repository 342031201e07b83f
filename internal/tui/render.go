package tui

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/recera/vango-flow/pkg/flow"
	"github.com/recera/vango-flow/pkg/geom"
)

// Style definitions
var (
	primaryColor   = lipgloss.Color("#3b82f6")
	secondaryColor = lipgloss.Color("#64748b")
	successColor   = lipgloss.Color("#10b981")
	warningColor   = lipgloss.Color("#f59e0b")
	errorColor     = lipgloss.Color("#ef4444")
	mutedColor     = lipgloss.Color("#94a3b8")

	styles = map[cellKind]lipgloss.Style{
		cellEmpty:        lipgloss.NewStyle(),
		cellEdge:         lipgloss.NewStyle().Foreground(secondaryColor),
		cellSelectedEdge: lipgloss.NewStyle().Foreground(primaryColor),
		cellNode:         lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")),
		cellSelectedNode: lipgloss.NewStyle().Foreground(primaryColor).Bold(true),
		cellHandle:       lipgloss.NewStyle().Foreground(warningColor),
		cellConnection:   lipgloss.NewStyle().Foreground(successColor),
		cellInvalid:      lipgloss.NewStyle().Foreground(errorColor),
		cellSelection:    lipgloss.NewStyle().Foreground(mutedColor),
	}

	statusStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor)
)

type cellKind uint8

const (
	cellEmpty cellKind = iota
	cellEdge
	cellSelectedEdge
	cellNode
	cellSelectedNode
	cellHandle
	cellConnection
	cellInvalid
	cellSelection
)

// canvas is a grid of terminal cells.
type canvas struct {
	w, h  int
	runes [][]rune
	kinds [][]cellKind
}

func newCanvas(w, h int) *canvas {
	c := &canvas{w: w, h: h, runes: make([][]rune, h), kinds: make([][]cellKind, h)}
	for y := range h {
		c.runes[y] = []rune(strings.Repeat(" ", w))
		c.kinds[y] = make([]cellKind, w)
	}
	return c
}

func (c *canvas) set(x, y int, r rune, k cellKind) {
	if x < 0 || y < 0 || x >= c.w || y >= c.h {
		return
	}
	c.runes[y][x] = r
	c.kinds[y][x] = k
}

// line draws a straight line between two cells (Bresenham).
func (c *canvas) line(x0, y0, x1, y1 int, r rune, k cellKind) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := sign(x1-x0), sign(y1-y0)
	e := dx + dy
	for steps := 0; steps <= c.w+c.h+dx-dy; steps++ {
		c.set(x0, y0, r, k)
		if x0 == x1 && y0 == y1 {
			return
		}
		if e2 := 2 * e; e2 >= dy {
			e += dy
			x0 += sx
		} else {
			e += dx
			y0 += sy
		}
	}
}

// box draws a rounded box and clears its inside.
func (c *canvas) box(x0, y0, x1, y1 int, k cellKind) {
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			r := ' '
			switch {
			case y == y0 && x == x0:
				r = '╭'
			case y == y0 && x == x1:
				r = '╮'
			case y == y1 && x == x0:
				r = '╰'
			case y == y1 && x == x1:
				r = '╯'
			case y == y0 || y == y1:
				r = '─'
			case x == x0 || x == x1:
				r = '│'
			}
			c.set(x, y, r, k)
		}
	}
}

// frame draws the outline of a rectangle with r.
func (c *canvas) frame(x0, y0, x1, y1 int, r rune, k cellKind) {
	c.line(x0, y0, x1, y0, r, k)
	c.line(x0, y1, x1, y1, r, k)
	c.line(x0, y0, x0, y1, r, k)
	c.line(x1, y0, x1, y1, r, k)
}

func (c *canvas) text(x, y int, s string, width int, k cellKind) {
	for i, r := range []rune(s) {
		if i >= width {
			return
		}
		c.set(x+i, y, r, k)
	}
}

// render joins runs of equally styled cells into lipgloss renders.
func (c *canvas) render() string {
	var b strings.Builder
	for y := range c.h {
		if y > 0 {
			b.WriteByte('\n')
		}
		start := 0
		for x := 1; x <= c.w; x++ {
			if x < c.w && c.kinds[y][x] == c.kinds[y][start] {
				continue
			}
			b.WriteString(styles[c.kinds[y][start]].Render(string(c.runes[y][start:x])))
			start = x
		}
	}
	return b.String()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}

// toCell maps a screen pixel to the cell containing it.
func toCell(p geom.XY) (int, int) {
	return int(math.Floor(p.X / CellWidth)), int(math.Floor(p.Y / CellHeight))
}

// cellCenter maps a cell to the screen pixel at its centre.
func cellCenter(x, y int) geom.XY {
	return geom.XY{X: (float64(x) + 0.5) * CellWidth, Y: (float64(y) + 0.5) * CellHeight}
}

// View renders the canvas, the status line and the key help.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	h := m.canvasHeight()
	if m.width <= 0 || h <= 0 {
		return ""
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.draw(m.width, h).render(),
		m.statusLine(),
		m.help.View(m.keys),
	)
}

func (m Model) draw(w, h int) *canvas {
	c := newCanvas(w, h)
	t := m.flow.GetViewport()
	screen := func(p geom.XY) (int, int) { return toCell(geom.FlowToScreen(p, t, geom.XY{})) }

	nodes := make([]flow.InternalNode, 0)
	for _, n := range m.flow.GetNodes() {
		if in, ok := m.flow.GetInternalNode(n.ID); ok && !n.Hidden && in.IsMeasured() {
			nodes = append(nodes, in)
		}
	}
	slices.SortStableFunc(nodes, func(a, b flow.InternalNode) int {
		return cmp.Compare(a.Internals.Z, b.Internals.Z)
	})
	byID := make(map[string]flow.InternalNode, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	for _, e := range m.flow.GetEdges() {
		src, ok1 := byID[e.Source]
		dst, ok2 := byID[e.Target]
		if e.Hidden || !ok1 || !ok2 {
			continue
		}
		x0, y0 := screen(anchor(src, flow.HandleSource, e.SourceHandle))
		x1, y1 := screen(anchor(dst, flow.HandleTarget, e.TargetHandle))
		k, r := cellEdge, '·'
		if e.Selected {
			k, r = cellSelectedEdge, '•'
		}
		c.line(x0, y0, x1, y1, r, k)
	}

	for _, n := range nodes {
		r := n.Rect()
		x0, y0 := screen(geom.XY{X: r.X, Y: r.Y})
		x1, y1 := screen(geom.XY{X: r.X + r.Width, Y: r.Y + r.Height})
		x1, y1 = max(x1-1, x0+1), max(y1-1, y0+1)
		k := cellNode
		if n.Selected {
			k = cellSelectedNode
		}
		c.box(x0, y0, x1, y1, k)
		c.text(x0+2, y0+(y1-y0)/2, label(n.Node), x1-x0-3, k)

		if hb := n.Internals.HandleBounds; hb != nil {
			for _, hd := range slices.Concat(hb.Target, hb.Source) {
				hx, hy := screen(geom.XY{X: r.X, Y: r.Y}.Add(hd.Center()))
				glyph := '○'
				if hd.Type == flow.HandleSource {
					glyph = '●'
				}
				c.set(hx, hy, glyph, cellHandle)
			}
		}
	}

	if cs := m.flow.ConnectionState(); cs.InProgress {
		k := cellConnection
		if cs.IsValid != nil && !*cs.IsValid {
			k = cellInvalid
		}
		x0, y0 := screen(cs.From)
		x1, y1 := screen(cs.To)
		c.line(x0, y0, x1, y1, '┄', k)
	}

	if sr, ok := m.flow.SelectionRect(); ok {
		x0, y0 := screen(geom.XY{X: sr.X, Y: sr.Y})
		x1, y1 := screen(geom.XY{X: sr.X + sr.Width, Y: sr.Y + sr.Height})
		c.frame(x0, y0, x1, y1, '┈', cellSelection)
	}
	return c
}

// anchor returns the flow position an edge attaches to: the centre of the
// named handle, of the first handle of that type, or of the node side.
func anchor(n flow.InternalNode, t flow.HandleType, id string) geom.XY {
	r := n.Rect()
	if hb := n.Internals.HandleBounds; hb != nil {
		hs := hb.Of(t)
		for _, h := range hs {
			if h.ID == id {
				return geom.XY{X: r.X, Y: r.Y}.Add(h.Center())
			}
		}
		if id == "" && len(hs) > 0 {
			return geom.XY{X: r.X, Y: r.Y}.Add(hs[0].Center())
		}
	}
	if t == flow.HandleSource {
		return geom.XY{X: r.X + r.Width, Y: r.Y + r.Height/2}
	}
	return geom.XY{X: r.X, Y: r.Y + r.Height/2}
}

func (m Model) statusLine() string {
	parts := []string{
		fmt.Sprintf("zoom %d%%", int(math.Round(m.flow.GetZoom()*100))),
		fmt.Sprintf("%d nodes", len(m.flow.GetNodes())),
		fmt.Sprintf("%d edges", len(m.flow.GetEdges())),
	}
	if sel := m.selectedIDs(); len(sel) > 0 {
		parts = append(parts, "selected "+strings.Join(sel, ","))
	}
	if m.status != "" {
		parts = append(parts, m.status)
	}
	line := titleStyle.Render(m.title) + " " + statusStyle.Render(strings.Join(parts, " · "))
	if note := m.notes.last(); note != "" {
		line += " " + errorStyle.Render(note)
	}
	return line
}
