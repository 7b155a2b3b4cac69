package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"wavefront/internal/driver"
	"wavefront/internal/sir"
	"wavefront/internal/ui"
)

type translateOutcome struct {
	out *driver.Output
	err error
}

func runTranslateWithUI(ctx context.Context, title string, mod *sir.Module, req driver.Request) (*driver.Output, error) {
	names := make([]string, len(mod.Funcs))
	for i, fn := range mod.Funcs {
		if fn != nil {
			names[i] = fn.Name
		}
	}
	events := make(chan driver.Event, 256)
	outcomeCh := make(chan translateOutcome, 1)

	go func() {
		req.Progress = driver.Tee(req.Progress, driver.ChannelSink{Ch: events})
		out, err := driver.TranslateModule(ctx, mod, req)
		outcomeCh <- translateOutcome{out: out, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, names, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stderr))
	_, uiErr := program.Run()
	go func() {
		// the view may quit before the last event
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.out, uiErr
	}
	return outcome.out, outcome.err
}
