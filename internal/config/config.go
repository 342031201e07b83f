// Package config loads flow settings from flow.yaml, flow.toml or
// flow.json and turns them into store options.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/recera/vango-flow/pkg/drag"
	"github.com/recera/vango-flow/pkg/flow"
	"github.com/recera/vango-flow/pkg/geom"
	"github.com/recera/vango-flow/pkg/handle"
	"github.com/recera/vango-flow/pkg/store"
	"github.com/recera/vango-flow/pkg/viewport"
)

// FileNames are the config files Load looks for in a directory, in order.
var FileNames = []string{"flow.yaml", "flow.yml", "flow.toml", "flow.json"}

// Config represents a flow config file
type Config struct {
	// Viewport configuration
	Viewport ViewportConfig `json:"viewport" yaml:"viewport" toml:"viewport"`

	// Connection configuration
	Connection ConnectionConfig `json:"connection" yaml:"connection" toml:"connection"`

	// Drag configuration
	Drag DragConfig `json:"drag" yaml:"drag" toml:"drag"`

	// Selection configuration
	Selection SelectionConfig `json:"selection" yaml:"selection" toml:"selection"`

	// NodeTypes lists the registered node types
	NodeTypes []string `json:"nodeTypes,omitempty" yaml:"nodeTypes,omitempty" toml:"nodeTypes,omitempty"`
}

// ViewportConfig contains pan and zoom settings
type ViewportConfig struct {
	MinZoom float64 `json:"minZoom,omitempty" yaml:"minZoom,omitempty" toml:"minZoom,omitempty"`
	MaxZoom float64 `json:"maxZoom,omitempty" yaml:"maxZoom,omitempty" toml:"maxZoom,omitempty"`

	// Whether to fit the view once every node is measured
	FitView bool `json:"fitView" yaml:"fitView" toml:"fitView"`

	// Fit padding, a fraction of the viewport below 1 or pixels
	FitPadding float64 `json:"fitPadding,omitempty" yaml:"fitPadding,omitempty" toml:"fitPadding,omitempty"`

	// TranslateExtent bounds panning, as [[x1, y1], [x2, y2]]
	TranslateExtent *[2][2]float64 `json:"translateExtent,omitempty" yaml:"translateExtent,omitempty" toml:"translateExtent,omitempty"`

	ZoomOnScroll     bool    `json:"zoomOnScroll" yaml:"zoomOnScroll" toml:"zoomOnScroll"`
	PanOnScroll      bool    `json:"panOnScroll,omitempty" yaml:"panOnScroll,omitempty" toml:"panOnScroll,omitempty"`
	PanOnScrollSpeed float64 `json:"panOnScrollSpeed,omitempty" yaml:"panOnScrollSpeed,omitempty" toml:"panOnScrollSpeed,omitempty"`
	PanOnDrag        bool    `json:"panOnDrag" yaml:"panOnDrag" toml:"panOnDrag"`
}

// ConnectionConfig contains connection settings
type ConnectionConfig struct {
	// Mode is "strict" or "loose"
	Mode   string  `json:"mode,omitempty" yaml:"mode,omitempty" toml:"mode,omitempty"`
	Radius float64 `json:"radius,omitempty" yaml:"radius,omitempty" toml:"radius,omitempty"`

	// Rule is a CEL expression every new connection must satisfy
	Rule string `json:"rule,omitempty" yaml:"rule,omitempty" toml:"rule,omitempty"`

	ConnectOnClick bool `json:"connectOnClick" yaml:"connectOnClick" toml:"connectOnClick"`
}

// DragConfig contains node drag settings
type DragConfig struct {
	Draggable   bool       `json:"draggable" yaml:"draggable" toml:"draggable"`
	Threshold   float64    `json:"threshold,omitempty" yaml:"threshold,omitempty" toml:"threshold,omitempty"`
	SnapToGrid  bool       `json:"snapToGrid,omitempty" yaml:"snapToGrid,omitempty" toml:"snapToGrid,omitempty"`
	SnapGrid    [2]float64 `json:"snapGrid,omitempty" yaml:"snapGrid,omitempty" toml:"snapGrid,omitempty"`
	AutoPan     bool       `json:"autoPan" yaml:"autoPan" toml:"autoPan"`
	NodeOrigin  [2]float64 `json:"nodeOrigin,omitempty" yaml:"nodeOrigin,omitempty" toml:"nodeOrigin,omitempty"`
	Connectable bool       `json:"connectable" yaml:"connectable" toml:"connectable"`
}

// SelectionConfig contains selection settings
type SelectionConfig struct {
	Selectable   bool `json:"selectable" yaml:"selectable" toml:"selectable"`
	SelectOnDrag bool `json:"selectOnDrag" yaml:"selectOnDrag" toml:"selectOnDrag"`
	Elevate      bool `json:"elevate" yaml:"elevate" toml:"elevate"`

	// Mode is "full" or "partial"
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty" toml:"mode,omitempty"`

	// Whether a pane drag draws a selection rectangle instead of panning
	RectOnDrag bool `json:"rectOnDrag,omitempty" yaml:"rectOnDrag,omitempty" toml:"rectOnDrag,omitempty"`
}

// Find returns the first config file in dir, or "" when there is none.
func Find(dir string) string {
	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Load loads configuration from path. A directory is searched for one of
// FileNames; when none exists the default configuration is returned.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		path = Find(path)
		if path == "" {
			return DefaultConfig(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return config, nil
}

// Parse decodes data in the format named by ext and applies defaults.
func Parse(data []byte, ext string) (*Config, error) {
	// Decode over the defaults so absent booleans keep them
	config := DefaultConfig()
	var err error
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	case ".toml":
		_, err = toml.Decode(string(data), config)
	case ".json":
		err = json.Unmarshal(data, config)
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, err
	}

	applyDefaults(config)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save writes configuration to path in the format its extension names.
func Save(config *Config, path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(config)
	case ".toml":
		var b strings.Builder
		err = toml.NewEncoder(&b).Encode(config)
		data = []byte(b.String())
	case ".json":
		data, err = json.MarshalIndent(config, "", "  ")
	default:
		return fmt.Errorf("config: unsupported format %q", filepath.Ext(path))
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Viewport: ViewportConfig{
			MinZoom:      viewport.DefaultMinZoom,
			MaxZoom:      viewport.DefaultMaxZoom,
			FitPadding:   store.DefaultFitViewPadding,
			ZoomOnScroll: true,
			PanOnDrag:    true,
		},
		Connection: ConnectionConfig{
			Mode:           string(flow.ConnectionStrict),
			Radius:         handle.DefaultRadius,
			ConnectOnClick: true,
		},
		Drag: DragConfig{
			Draggable:   true,
			Threshold:   drag.DefaultThreshold,
			SnapGrid:    [2]float64{15, 15},
			AutoPan:     true,
			Connectable: true,
		},
		Selection: SelectionConfig{
			Selectable:   true,
			SelectOnDrag: true,
			Elevate:      true,
			Mode:         string(drag.SelectionFull),
		},
	}
}

// applyDefaults applies default values to missing configuration
func applyDefaults(config *Config) {
	defaults := DefaultConfig()

	if config.Viewport.MinZoom == 0 {
		config.Viewport.MinZoom = defaults.Viewport.MinZoom
	}
	if config.Viewport.MaxZoom == 0 {
		config.Viewport.MaxZoom = defaults.Viewport.MaxZoom
	}
	if config.Connection.Mode == "" {
		config.Connection.Mode = defaults.Connection.Mode
	}
	if config.Connection.Radius == 0 {
		config.Connection.Radius = defaults.Connection.Radius
	}
	if config.Drag.SnapGrid[0] <= 0 || config.Drag.SnapGrid[1] <= 0 {
		config.Drag.SnapGrid = defaults.Drag.SnapGrid
	}
	if config.Selection.Mode == "" {
		config.Selection.Mode = defaults.Selection.Mode
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error
	if c.Viewport.MinZoom <= 0 || c.Viewport.MaxZoom < c.Viewport.MinZoom {
		errs = append(errs, fmt.Errorf("viewport: invalid zoom range [%g, %g]", c.Viewport.MinZoom, c.Viewport.MaxZoom))
	}
	switch flow.ConnectionMode(c.Connection.Mode) {
	case flow.ConnectionStrict, flow.ConnectionLoose:
	default:
		errs = append(errs, fmt.Errorf("connection: unknown mode %q", c.Connection.Mode))
	}
	switch drag.SelectionMode(c.Selection.Mode) {
	case drag.SelectionFull, drag.SelectionPartial:
	default:
		errs = append(errs, fmt.Errorf("selection: unknown mode %q", c.Selection.Mode))
	}
	if e := c.Viewport.TranslateExtent; e != nil && (e[1][0] < e[0][0] || e[1][1] < e[0][1]) {
		errs = append(errs, errors.New("viewport: translateExtent corners are reversed"))
	}
	return errors.Join(errs...)
}

// ToOptions returns the store options the configuration describes.
// Collections and callbacks are left to the caller.
func (c *Config) ToOptions() store.Options {
	v, conn, d, sel := c.Viewport, c.Connection, c.Drag, c.Selection
	opts := store.Options{
		MinZoom: v.MinZoom,
		MaxZoom: v.MaxZoom,
		FitView: v.FitView,
		FitViewOptions: store.FitViewOptions{
			Padding: store.Padding(v.FitPadding),
		},
		PanOnScroll:      v.PanOnScroll,
		PanOnScrollSpeed: v.PanOnScrollSpeed,
		ZoomOnScroll:     flow.Bool(v.ZoomOnScroll),
		PanOnDrag:        flow.Bool(v.PanOnDrag),

		ConnectionMode:   flow.ConnectionMode(conn.Mode),
		ConnectionRadius: conn.Radius,
		ConnectionRule:   conn.Rule,
		ConnectOnClick:   flow.Bool(conn.ConnectOnClick),

		NodesDraggable:    flow.Bool(d.Draggable),
		NodesConnectable:  flow.Bool(d.Connectable),
		NodeDragThreshold: d.Threshold,
		SnapToGrid:        d.SnapToGrid,
		SnapGrid:          d.SnapGrid,
		AutoPanOnDrag:     flow.Bool(d.AutoPan),
		NodeOrigin:        geom.XY{X: d.NodeOrigin[0], Y: d.NodeOrigin[1]},

		ElementsSelectable:   flow.Bool(sel.Selectable),
		SelectNodesOnDrag:    flow.Bool(sel.SelectOnDrag),
		ElevateNodesOnSelect: flow.Bool(sel.Elevate),
		SelectionMode:        drag.SelectionMode(sel.Mode),
		SelectionOnDrag:      sel.RectOnDrag,

		NodeTypes: c.NodeTypes,
	}
	if e := v.TranslateExtent; e != nil {
		ext := geom.CoordinateExtent(*e)
		opts.TranslateExtent = &ext
	}
	return opts
}
