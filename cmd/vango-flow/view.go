package main

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/recera/vango-flow/internal/document"
	"github.com/recera/vango-flow/internal/tui"
)

func newViewCommand() *cobra.Command {
	var (
		watch   bool
		save    bool
		logFile string
	)

	cmd := &cobra.Command{
		Use:   "view <document>",
		Short: "Open a flow document in the terminal viewer",
		Long: `Open a flow document in the terminal viewer. Nodes can be dragged and
connected with the mouse; the keyboard pans, zooms and edits the selection.
With --watch the document is reloaded whenever it changes on disk.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, _, err := loadOptions(cmd, args[0])
			if err != nil {
				return err
			}

			// stderr belongs to the terminal UI
			opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
			if logFile != "" {
				f, err := openLog(logFile)
				if err != nil {
					return err
				}
				defer f.Close()
				opts.Logger = newLogger(f, loggerFromContext(cmd.Context()).GetLevel())
			}

			doc, err := tui.Run(cmd.Context(), opts, tui.RunOptions{Path: args[0], Watch: watch})
			if err != nil {
				return err
			}
			if save {
				return document.Save(doc, args[0])
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "reload the document when it changes")
	cmd.Flags().BoolVar(&save, "save", false, "write the edited document back on exit")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file")

	return cmd
}
