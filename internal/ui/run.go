package ui

import (
	"context"
	"io"
	"log"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/DaanHessen/measures-tui/internal/audio"
	"github.com/DaanHessen/measures-tui/internal/engine"
	"github.com/DaanHessen/measures-tui/internal/exhibit"
	"github.com/DaanHessen/measures-tui/internal/util"
)

// Options wires the program's collaborators.
type Options struct {
	Exhibit  exhibit.Exhibit
	Config   util.Config
	Flags    engine.FlagStore
	Progress ProgressRecorder
	Bus      *audio.Bus
	Logger   *log.Logger
	// Start overrides the exhibit's entry route.
	Start string
}

// Run boots the TUI program and blocks until it exits.
func Run(ctx context.Context, opts Options) error {
	if opts.Logger == nil {
		if opts.Config.LogFile != "" {
			f, err := tea.LogToFile(opts.Config.LogFile, "measures")
			if err != nil {
				return errors.Wrap(err, "open log file")
			}
			defer f.Close()
			opts.Logger = log.Default()
		} else {
			// stderr would tear the alt screen
			opts.Logger = log.New(io.Discard, "", 0)
		}
	}
	m := newModel(ctx, opts, newTeaScheduler())
	program := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())
	_, err := program.Run()
	m.dispose()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
