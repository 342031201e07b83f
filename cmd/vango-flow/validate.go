package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recera/vango-flow/pkg/flow"
	"github.com/recera/vango-flow/pkg/store"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <document>",
		Short: "Check a document for problems the flow would report",
		Long: `Load a document the way the viewer does and print every problem the flow
reports: missing or cyclic parents, unknown node types and connection rule
errors. Edges pointing at missing nodes are not problems; they are skipped
when drawing. Exits non-zero when any problem is found.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, doc, err := loadOptions(cmd, args[0])
			if err != nil {
				return err
			}

			var problems []*flow.Error
			opts.OnError = func(code flow.Code, msg string) {
				problems = append(problems, &flow.Error{Code: code, Message: msg})
			}
			f, err := store.New(opts)
			if err != nil {
				return fmt.Errorf("invalid connection rule: %w", err)
			}
			f.Close()

			w := cmd.OutOrStdout()
			for _, p := range problems {
				bad.Fprintf(w, "✗ %s ", p.Code)
				fmt.Fprintln(w, p.Message)
			}
			if len(problems) > 0 {
				return fmt.Errorf("%s: %d problems", args[0], len(problems))
			}
			brand.Fprint(w, "✓ ")
			fmt.Fprintf(w, "%s: %d nodes, %d edges\n", args[0], len(doc.Nodes), len(doc.Edges))
			return nil
		},
	}
	return cmd
}
