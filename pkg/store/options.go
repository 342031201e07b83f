package store

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/recera/vango-flow/pkg/drag"
	"github.com/recera/vango-flow/pkg/flow"
	"github.com/recera/vango-flow/pkg/geom"
	"github.com/recera/vango-flow/pkg/handle"
	"github.com/recera/vango-flow/pkg/viewport"
)

// DefaultFitViewPadding is the padding used when FitViewOptions.Padding is
// nil.
const DefaultFitViewPadding = 0.1

// DefaultTickInterval is the frame interval of AutoTick.
const DefaultTickInterval = 16 * time.Millisecond

// Options configure a Flow. Nil flags take their documented default.
type Options struct {
	// Nodes and Edges make the collection controlled: the flow reports
	// changes through the callbacks and only takes new content from
	// SyncNodes / SyncEdges. DefaultNodes and DefaultEdges seed a
	// collection the flow manages itself.
	Nodes        []flow.Node
	Edges        []flow.Edge
	DefaultNodes []flow.Node
	DefaultEdges []flow.Edge

	NodeOrigin      geom.XY
	NodeExtent      *geom.CoordinateExtent
	TranslateExtent *geom.CoordinateExtent
	MinZoom         float64
	MaxZoom         float64
	DefaultViewport geom.Transform

	// Width and Height are the viewport size in screen pixels. They are
	// usually set later with SetBounds.
	Width  float64
	Height float64

	// FitView fits the view once, as soon as the viewport has a size and
	// every visible node is measured.
	FitView        bool
	FitViewOptions FitViewOptions

	ConnectionMode   flow.ConnectionMode
	ConnectionRadius float64
	// ConnectionRule is a CEL expression checked for every candidate
	// connection. See handle.CompileRule.
	ConnectionRule string
	// ConnectOnClick enables click-to-connect. Default true.
	ConnectOnClick *bool

	SnapToGrid bool
	SnapGrid   [2]float64
	// NodeDragThreshold is the click distance in pixels. Zero means
	// drag.DefaultThreshold; a negative value starts drags immediately.
	NodeDragThreshold float64

	// Default true.
	SelectNodesOnDrag    *bool
	NodesDraggable       *bool
	NodesConnectable     *bool
	ElementsSelectable   *bool
	ElevateNodesOnSelect *bool
	ZoomOnScroll         *bool
	PanOnDrag            *bool
	AutoPanOnDrag        *bool

	PanOnScroll      bool
	PanOnScrollSpeed float64
	// SelectionOnDrag draws a selection rectangle on a pane drag instead
	// of panning. A pane drag with the multi modifier always selects.
	SelectionOnDrag bool
	SelectionMode   drag.SelectionMode

	// NodeTypes lists the known node types. When set, nodes of any other
	// type are reported once with CodeUnknownNodeType.
	NodeTypes []string

	OnNodesChange     func(changes []flow.NodeChange)
	OnEdgesChange     func(changes []flow.EdgeChange)
	OnConnect         func(c flow.Connection)
	OnMove            func(t geom.Transform)
	OnError           flow.ErrorHandler
	IsValidConnection handle.Validator

	// Logger receives debug output and, without OnError, warnings.
	Logger *log.Logger

	// AutoTick runs Tick from a scheduler goroutine. Without it the host
	// calls Tick every frame.
	AutoTick     bool
	TickInterval time.Duration
	Now          func() time.Time
}

// FitViewOptions control FitView.
type FitViewOptions struct {
	// Padding is a fraction of the viewport below 1, pixels otherwise.
	// nil means DefaultFitViewPadding.
	Padding *float64
	// Nodes limits the fit to these ids; empty fits every visible node.
	Nodes         []string
	IncludeHidden bool
	MinZoom       float64
	MaxZoom       float64
	Duration      time.Duration
}

// Padding returns a pointer to p, for FitViewOptions.
func Padding(p float64) *float64 { return &p }

func (o Options) withDefaults() Options {
	d := o
	if d.ConnectionMode == "" {
		d.ConnectionMode = flow.ConnectionStrict
	}
	if d.ConnectionRadius <= 0 {
		d.ConnectionRadius = handle.DefaultRadius
	}
	if d.SnapGrid[0] <= 0 || d.SnapGrid[1] <= 0 {
		d.SnapGrid = [2]float64{15, 15}
	}
	if d.NodeDragThreshold == 0 {
		d.NodeDragThreshold = drag.DefaultThreshold
	}
	if d.SelectionMode == "" {
		d.SelectionMode = drag.SelectionFull
	}
	if d.MinZoom <= 0 {
		d.MinZoom = viewport.DefaultMinZoom
	}
	if d.MaxZoom <= 0 {
		d.MaxZoom = viewport.DefaultMaxZoom
	}
	if d.DefaultViewport.Zoom == 0 {
		d.DefaultViewport = geom.Identity
	}
	if d.TickInterval <= 0 {
		d.TickInterval = DefaultTickInterval
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return d
}

func on(v *bool) bool {
	if v == nil {
		return true
	}
	return *v
}

func (o Options) adoptOptions() flow.AdoptOptions {
	return flow.AdoptOptions{
		NodeOrigin:           o.NodeOrigin,
		NodeExtent:           o.NodeExtent,
		ElevateNodesOnSelect: on(o.ElevateNodesOnSelect),
	}
}

func (o Options) dragOptions() drag.Options {
	threshold := o.NodeDragThreshold
	if threshold < 0 {
		threshold = 0
	}
	return drag.Options{
		Threshold:          threshold,
		SnapToGrid:         o.SnapToGrid,
		SnapGrid:           o.SnapGrid,
		NodeExtent:         o.NodeExtent,
		NodeOrigin:         o.NodeOrigin,
		SelectNodesOnDrag:  on(o.SelectNodesOnDrag),
		NodesDraggable:     on(o.NodesDraggable),
		ElementsSelectable: on(o.ElementsSelectable),
		AutoPanOnDrag:      on(o.AutoPanOnDrag),
	}
}

func (o Options) viewportOptions() viewport.Options {
	return viewport.Options{
		MinZoom:          o.MinZoom,
		MaxZoom:          o.MaxZoom,
		TranslateExtent:  o.TranslateExtent,
		Width:            o.Width,
		Height:           o.Height,
		Initial:          o.DefaultViewport,
		ZoomOnScroll:     on(o.ZoomOnScroll),
		PanOnScroll:      o.PanOnScroll,
		PanOnScrollSpeed: o.PanOnScrollSpeed,
		Now:              o.Now,
	}
}
