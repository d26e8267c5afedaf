package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"snipserve/internal/progress"
)

func newTestModel(work Work) Model {
	return NewModel(context.Background(), Job{URL: "https://youtu.be/abc", Label: "mp3", Work: work})
}

func TestModel_PollsTracker(t *testing.T) {
	m := newTestModel(nil)
	m.tracker.Reset("job-1")
	m.tracker.Downloading(progress.Sample{Downloaded: 50, Total: 200, Speed: 2048, ETA: 75})

	next, cmd := m.Update(tickMsg{})
	got := next.(Model)
	if cmd == nil {
		t.Fatal("tick should schedule the next poll")
	}
	if got.job.state.Status != progress.StatusDownloading || got.job.state.Progress != 25 {
		t.Fatalf("state = %+v", got.job.state)
	}
	view := got.View()
	for _, want := range []string{"downloading", "25.0%", "ETA 1:15"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestModel_Done(t *testing.T) {
	tests := []struct {
		name string
		msg  doneMsg
		want string
	}{
		{name: "saved", msg: doneMsg{Outcome: Outcome{Path: "/tmp/out/My Song.mp3", Bytes: 2048}}, want: "Saved: My Song.mp3 (2.0 KB)"},
		{name: "failed", msg: doneMsg{Err: errors.New("ffmpeg not found")}, want: "ffmpeg not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, cmd := newTestModel(nil).Update(tt.msg)
			got := next.(Model)
			if !got.job.done {
				t.Fatal("job not marked done")
			}
			if cmd == nil {
				t.Fatal("done should quit the program")
			}
			if _, ok := cmd().(tea.QuitMsg); !ok {
				t.Error("done did not return tea.Quit")
			}
			if !strings.Contains(got.View(), tt.want) {
				t.Errorf("view missing %q:\n%s", tt.want, got.View())
			}
		})
	}
}

func TestModel_QuitCancelsWork(t *testing.T) {
	m := newTestModel(nil)
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	got := next.(Model)
	if got.ctx.Err() == nil {
		t.Error("quit did not cancel the work context")
	}
	if !errors.Is(got.job.err, context.Canceled) {
		t.Errorf("err = %v", got.job.err)
	}

	// Polls after completion stop rescheduling.
	if _, cmd := got.Update(tickMsg{}); cmd != nil {
		t.Error("tick after done should not reschedule")
	}
}

func TestModel_StartRunsWork(t *testing.T) {
	m := newTestModel(func(ctx context.Context, tr *progress.Tracker) (Outcome, error) {
		tr.Reset("job-1")
		tr.Finish()
		return Outcome{Path: "a.mp4", Bytes: 1}, nil
	})
	msg := m.startCmd()()
	done, ok := msg.(doneMsg)
	if !ok || done.Err != nil || done.Outcome.Path != "a.mp4" {
		t.Fatalf("msg = %#v", msg)
	}
	if st := m.tracker.Snapshot(); st.Status != progress.StatusFinished {
		t.Errorf("tracker status = %s", st.Status)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abc", 4); got != "abc" {
		t.Errorf("truncate = %q", got)
	}
}
