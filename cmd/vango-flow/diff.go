package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/recera/vango-flow/internal/document"
	"github.com/recera/vango-flow/pkg/flow"
)

func newDiffCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <old> <new>",
		Short: "Print the change records turning one document into another",
		Long: `Compare two flow documents and print the node and edge change records
that turn the first into the second, one per line: + for additions,
- for removals and ~ for moves, resizes and selection changes.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prev, err := document.Load(args[0])
			if err != nil {
				return err
			}
			next, err := document.Load(args[1])
			if err != nil {
				return err
			}

			nodes, edges := diffDocuments(prev, next)
			w := cmd.OutOrStdout()
			if len(nodes)+len(edges) == 0 {
				subtle.Fprintln(w, "no changes")
				return nil
			}
			for _, c := range nodes {
				printChange(w, c.Type, "node", c.String())
			}
			for _, c := range edges {
				printChange(w, c.Type, "edge", c.String())
			}
			return nil
		},
	}
	return cmd
}

// diffDocuments returns the changes that turn prev into next.
func diffDocuments(prev, next *document.Document) ([]flow.NodeChange, []flow.EdgeChange) {
	nodes := flow.NewNodeLookup()
	flow.AdoptNodes(prev.Nodes, nodes, flow.AdoptOptions{})
	edges := flow.NewEdgeLookup()
	edges.AdoptEdges(prev.Edges)
	return flow.DiffNodes(next.Nodes, nodes), flow.DiffEdges(next.Edges, edges)
}

func printChange(w io.Writer, t flow.ChangeType, kind, text string) {
	switch t {
	case flow.ChangeAdd:
		good.Fprintf(w, "+ %s %s\n", kind, text)
	case flow.ChangeRemove:
		bad.Fprintf(w, "- %s %s\n", kind, text)
	default:
		warn.Fprintf(w, "~ %s %s\n", kind, text)
	}
}
