package ui

import (
	"github.com/charmbracelet/lipgloss"

	"snipserve/internal/progress"
)

type Styles struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	JobTitle  lipgloss.Style
	JobInfo   lipgloss.Style
	Success   lipgloss.Style
	Error     lipgloss.Style
	Faint     lipgloss.Style
	Box       lipgloss.Style
	Spinner   lipgloss.Style
	StageWait lipgloss.Style
	StageDL   lipgloss.Style
	StageConv lipgloss.Style
}

func defaultStyles() Styles {
	base := lipgloss.NewStyle()
	return Styles{
		Title:     base.Bold(true).Foreground(lipgloss.Color("#7D56F4")),
		Subtitle:  base.Faint(true),
		JobTitle:  base.Foreground(lipgloss.Color("#A3A3A3")),
		JobInfo:   base.Foreground(lipgloss.Color("#D1D5DB")),
		Success:   base.Foreground(lipgloss.Color("#22C55E")),
		Error:     base.Foreground(lipgloss.Color("#EF4444")),
		Faint:     base.Faint(true),
		Box:       base.Padding(0, 1),
		Spinner:   base.Foreground(lipgloss.Color("#22D3EE")),
		StageWait: base.Foreground(lipgloss.Color("#60A5FA")),
		StageDL:   base.Foreground(lipgloss.Color("#06B6D4")),
		StageConv: base.Foreground(lipgloss.Color("#D946EF")),
	}
}

// statusStyle picks the colour for a tracker status.
func (s Styles) statusStyle(st progress.Status) lipgloss.Style {
	switch st {
	case progress.StatusDownloading:
		return s.StageDL
	case progress.StatusConverting:
		return s.StageConv
	case progress.StatusFinished:
		return s.Success
	case progress.StatusError:
		return s.Error
	default:
		return s.StageWait
	}
}
