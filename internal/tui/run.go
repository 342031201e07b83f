package tui

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/recera/vango-flow/internal/document"
	"github.com/recera/vango-flow/pkg/store"
)

// RunOptions configure Run.
type RunOptions struct {
	// Path is the document shown in the title and, with Watch, reloaded
	// whenever it changes.
	Path  string
	Watch bool
}

// Run starts the viewer for a flow built from opts and blocks until the
// user quits. It returns the nodes and edges as they were on exit.
func Run(ctx context.Context, opts store.Options, ro RunOptions) (*document.Document, error) {
	// Check if we're in a TTY
	if !isatty() {
		return nil, fmt.Errorf("not running in a terminal")
	}

	model, err := New(opts, ro.Path)
	if err != nil {
		return nil, err
	}
	defer model.Flow().Close()

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	if ro.Watch && ro.Path != "" {
		wctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			err := document.Watch(wctx, ro.Path, func(doc *document.Document, err error) {
				p.Send(DocumentMsg{Doc: doc, Err: err})
			})
			if err != nil {
				p.Send(DocumentMsg{Err: err})
			}
		}()
	}

	if _, err := p.Run(); err != nil {
		return nil, fmt.Errorf("TUI error: %w", err)
	}

	f := model.Flow()
	vp := f.GetViewport()
	return &document.Document{Nodes: f.GetNodes(), Edges: f.GetEdges(), Viewport: &vp}, nil
}

func isatty() bool {
	fileInfo, _ := os.Stdout.Stat()
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
