package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/recera/vango-flow/pkg/reactive"
	"github.com/recera/vango-flow/pkg/scheduler"
)

var (
	version = "0.1.0-preview"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "vango-flow",
		Short: "vango-flow - node-link diagrams in the terminal",
		Long: `vango-flow views, fits, diffs and validates flow documents: node and edge
lists stored as JSON or YAML. Behaviour is tuned with a flow.yaml, flow.toml
or flow.json config file.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := log.InfoLevel
			if verbose {
				level = log.DebugLevel
			}
			logger := newLogger(cmd.ErrOrStderr(), level)
			if verbose {
				debug := func(args ...interface{}) { logger.Debug(fmt.Sprint(args...)) }
				reactive.SetDebugLog(debug)
				scheduler.SetDebugLog(debug)
			}
			cmd.SetContext(withLogger(cmd.Context(), logger))
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringP("config", "c", ".", "config file, or directory holding flow.yaml / flow.toml / flow.json")

	// Add commands
	rootCmd.AddCommand(newViewCommand())
	rootCmd.AddCommand(newFitCommand())
	rootCmd.AddCommand(newDiffCommand())
	rootCmd.AddCommand(newValidateCommand())

	return rootCmd
}
