package ui

import (
	"context"

	bubblesprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"

	"snipserve/internal/progress"
)

// Outcome is what a finished download left on disk.
type Outcome struct {
	Path  string
	Bytes int64
}

// Work performs one download, reporting through tr. It must return once ctx is cancelled.
type Work func(ctx context.Context, tr *progress.Tracker) (Outcome, error)

// Job is the single download shown by the TUI.
type Job struct {
	URL   string
	Label string // e.g. "mp3" or "mp4 720p"
	Work  Work
}

type jobState struct {
	url   string
	label string
	state progress.State
	done  bool
	err   error

	outcome Outcome

	spinner spinner.Model
	bar     bubblesprogress.Model
}

func newJobState(job Job, styles Styles) jobState {
	sp := spinner.New()
	sp.Style = styles.Spinner
	bar := bubblesprogress.New(
		bubblesprogress.WithDefaultGradient(),
		bubblesprogress.WithWidth(40),
	)
	return jobState{
		url:     job.URL,
		label:   job.Label,
		state:   progress.Idle(),
		spinner: sp,
		bar:     bar,
	}
}
