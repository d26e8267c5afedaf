package ui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
)

// Run shows job in the terminal until it finishes or the user quits.
// It returns the job's own error so callers can map it to an exit code.
func Run(ctx context.Context, job Job) (Outcome, error) {
	m := NewModel(ctx, job)
	prog := tea.NewProgram(m, tea.WithContext(ctx))
	final, err := prog.Run()
	m.cancel()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return Outcome{}, err
	}
	fm, ok := final.(Model)
	if !ok || !fm.job.done {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		return Outcome{}, errors.New("download interrupted")
	}
	return fm.job.outcome, fm.job.err
}
