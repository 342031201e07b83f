package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recera/vango-flow/internal/config"
	"github.com/recera/vango-flow/internal/document"
	"github.com/recera/vango-flow/pkg/flow"
	"github.com/recera/vango-flow/pkg/geom"
	"github.com/recera/vango-flow/pkg/store"
)

// loadOptions reads the config named by --config and the document at
// path and returns store options seeded with the document.
func loadOptions(cmd *cobra.Command, path string) (store.Options, *document.Document, error) {
	logger := loggerFromContext(cmd.Context())

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return store.Options{}, nil, fmt.Errorf("failed to load config: %w", err)
	}

	doc, err := document.Load(path)
	if err != nil {
		return store.Options{}, nil, err
	}
	logger.Debug("loaded document", "path", path, "nodes", len(doc.Nodes), "edges", len(doc.Edges))

	opts := cfg.ToOptions()
	opts.DefaultNodes = doc.Nodes
	opts.DefaultEdges = doc.Edges
	opts.Logger = logger
	if doc.Viewport != nil {
		opts.DefaultViewport = *doc.Viewport
	}
	return opts, doc, nil
}

// measureDefaults gives every visible node without a size the default
// size, as a renderer would after its first layout pass. Hidden nodes are
// never measured, so with hidden set they get the size as explicit
// width and height instead.
func measureDefaults(f *store.Flow, size geom.Dimensions, hidden bool) {
	var updates []flow.InternalsUpdate
	f.Batch(func() {
		for _, n := range f.GetNodes() {
			if !n.Dimensions().IsZero() {
				continue
			}
			if !n.Hidden {
				updates = append(updates, flow.InternalsUpdate{ID: n.ID, Dimensions: size})
				continue
			}
			if hidden {
				f.UpdateNode(n.ID, func(node flow.Node) flow.Node {
					node.Width, node.Height = size.Width, size.Height
					return node
				})
			}
		}
		if len(updates) > 0 {
			f.UpdateNodeInternals(updates...)
		}
	})
}
