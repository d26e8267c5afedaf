package ui

import (
	"fmt"
	"path/filepath"
	"strings"

	"snipserve/internal/progress"
	"snipserve/internal/util/format"
)

func (m Model) viewHeader() string {
	title := m.styles.Title.Render("snipserve")
	sub := m.styles.Subtitle.Render(m.job.label + " • q: quit")
	return title + "  " + sub
}

func (m Model) viewJob() string {
	js := m.job
	st := js.state

	left := m.styles.JobTitle.Render(truncate(js.url, 56))
	stage := m.styles.statusStyle(st.Status).Render(string(st.Status))

	var bar string
	switch {
	case js.done && js.err == nil:
		bar = m.styles.Success.Render("✓ done")
	case js.done:
		bar = m.styles.Error.Render("✗ failed")
	case st.Status == progress.StatusDownloading && st.Progress > 0:
		bar = fmt.Sprintf("%s %5.1f%%", js.bar.ViewAs(st.Progress/100.0), st.Progress)
	default:
		bar = m.styles.Spinner.Render(js.spinner.View()) + " " + m.styles.Faint.Render(waitingLabel(st.Status))
	}

	line1 := left + "  " + stage
	line3 := m.styles.JobInfo.Render(m.infoLine())
	return m.styles.Box.Render(line1 + "\n" + bar + "\n" + line3)
}

// infoLine shows transfer figures while running and the result afterwards.
func (m Model) infoLine() string {
	js := m.job
	if js.done {
		if js.err != nil {
			return js.err.Error()
		}
		return fmt.Sprintf("Saved: %s (%s)", filepath.Base(js.outcome.Path), format.HumanizeBytes(js.outcome.Bytes))
	}
	var parts []string
	if js.state.Speed > 0 {
		parts = append(parts, format.HumanizeRate(js.state.Speed))
	}
	if js.state.ETA > 0 {
		parts = append(parts, "ETA "+format.ClockETA(js.state.ETA))
	}
	return strings.Join(parts, " • ")
}

func waitingLabel(st progress.Status) string {
	switch st {
	case progress.StatusConverting:
		return "converting to mp3"
	case progress.StatusDownloading:
		return "downloading"
	default:
		return "resolving"
	}
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if n <= 0 || len(rs) <= n {
		return s
	}
	return string(rs[:n-1]) + "…"
}
