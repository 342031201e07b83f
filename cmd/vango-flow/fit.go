package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recera/vango-flow/internal/document"
	"github.com/recera/vango-flow/pkg/geom"
	"github.com/recera/vango-flow/pkg/store"
)

func newFitCommand() *cobra.Command {
	var (
		width, height    float64
		nodeW, nodeH     float64
		padding          float64
		minZoom, maxZoom float64
		includeHidden    bool
		write            bool
	)

	cmd := &cobra.Command{
		Use:   "fit <document>",
		Short: "Print the viewport that fits every node into a screen",
		Long: `Compute the viewport that fits the document's nodes into a screen of the
given size and print it as JSON. Nodes without a size are measured with
--node-width x --node-height. With --write the viewport is stored in the
document.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, doc, err := loadOptions(cmd, args[0])
			if err != nil {
				return err
			}
			opts.Width, opts.Height = width, height

			f, err := store.New(opts)
			if err != nil {
				return err
			}
			defer f.Close()
			measureDefaults(f, geom.Dimensions{Width: nodeW, Height: nodeH}, includeHidden)

			fitOpts := store.FitViewOptions{IncludeHidden: includeHidden, MinZoom: minZoom, MaxZoom: maxZoom}
			if cmd.Flags().Changed("padding") {
				fitOpts.Padding = store.Padding(padding)
			}
			if !f.FitView(fitOpts) && len(f.GetNodes()) > 0 {
				loggerFromContext(cmd.Context()).Warn("viewport unchanged", "nodes", len(f.GetNodes()))
			}

			vp := f.GetViewport()
			out, err := json.Marshal(vp)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if write {
				doc.Viewport = &vp
				return document.Save(doc, args[0])
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&width, "width", 1280, "screen width in pixels")
	cmd.Flags().Float64Var(&height, "height", 720, "screen height in pixels")
	cmd.Flags().Float64Var(&nodeW, "node-width", 150, "width of nodes without a size")
	cmd.Flags().Float64Var(&nodeH, "node-height", 40, "height of nodes without a size")
	cmd.Flags().Float64Var(&padding, "padding", store.DefaultFitViewPadding, "padding, a fraction of the screen below 1 or pixels")
	cmd.Flags().Float64Var(&minZoom, "min-zoom", 0, "lowest zoom the fit may use")
	cmd.Flags().Float64Var(&maxZoom, "max-zoom", 0, "highest zoom the fit may use")
	cmd.Flags().BoolVar(&includeHidden, "include-hidden", false, "fit hidden nodes too")
	cmd.Flags().BoolVar(&write, "write", false, "store the viewport in the document")

	return cmd
}
