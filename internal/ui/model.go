package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"snipserve/internal/progress"
)

// pollInterval is how often the view samples the tracker.
const pollInterval = 150 * time.Millisecond

type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	tracker *progress.Tracker
	work    Work
	job     jobState

	width  int
	styles Styles
}

func NewModel(ctx context.Context, job Job) Model {
	c, cancel := context.WithCancel(ctx)
	sty := defaultStyles()
	return Model{
		ctx:     c,
		cancel:  cancel,
		tracker: progress.NewTracker(),
		work:    job.Work,
		job:     newJobState(job, sty),
		styles:  sty,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.job.spinner.Tick, m.startCmd(), pollCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.cancel()
			m.job.err = context.Canceled
			m.job.done = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tickMsg:
		if m.job.done {
			return m, nil
		}
		m.job.state = m.tracker.Snapshot()
		return m, pollCmd()
	case doneMsg:
		m.job.done = true
		m.job.err = msg.Err
		m.job.outcome = msg.Outcome
		m.job.state = m.tracker.Snapshot()
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.job.spinner, cmd = m.job.spinner.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	return m.viewHeader() + "\n\n" + m.viewJob() + "\n"
}

// startCmd runs the download off the UI goroutine; its doneMsg ends the program.
func (m Model) startCmd() tea.Cmd {
	return func() tea.Msg {
		out, err := m.work(m.ctx, m.tracker)
		return doneMsg{Outcome: out, Err: err}
	}
}

func pollCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg { return tickMsg{} })
}
