package progress

import (
	"sync"
	"time"
)

// downloadCeiling keeps the percentage below 100 until the operation
// finishes, so 100 always coincides with StatusFinished.
const downloadCeiling = 99

// Tracker holds the progress of one operation at a time. All methods are safe
// for concurrent use; one mutex guards the whole record so a reader never sees
// fields from two different operations.
//
// Within an operation the status only moves forward:
// starting → downloading* → converting? → finished | error.
// Calls that would move it backwards are ignored until the next Reset.
type Tracker struct {
	mu      sync.Mutex
	st      State
	endedAt time.Time
	now     func() time.Time
}

// NewTracker returns an idle tracker.
func NewTracker() *Tracker {
	return &Tracker{st: Idle(), now: time.Now}
}

// Reset starts a new operation.
func (t *Tracker) Reset(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.st = State{JobID: jobID, Status: StatusStarting}
	t.endedAt = time.Time{}
}

// Downloading records a byte-count observation. Percent never decreases and
// stays unchanged when the sample carries no usable total.
func (t *Tracker) Downloading(s Sample) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.st.Status {
	case StatusStarting, StatusDownloading:
	default:
		return
	}
	t.st.Status = StatusDownloading
	t.st.Started = true
	if pct, ok := s.percent(); ok {
		pct = clamp(pct, 0, downloadCeiling)
		if pct > t.st.Progress {
			t.st.Progress = pct
		}
	}
	t.st.Speed = nonNegative(s.Speed)
	if s.ETA > 0 {
		t.st.ETA = s.ETA
	} else {
		t.st.ETA = 0
	}
}

// Converting marks the transcode step. Progress is pinned at 99 until Finish.
func (t *Tracker) Converting() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.st.Status.Terminal() || t.st.Status == StatusIdle {
		return
	}
	t.st.Status = StatusConverting
	t.st.Progress = downloadCeiling
	t.st.Speed = 0
	t.st.ETA = 0
}

// Finish marks the operation complete at 100%.
func (t *Tracker) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.st.Status.Terminal() || t.st.Status == StatusIdle {
		return
	}
	t.st.Status = StatusFinished
	t.st.Progress = 100
	t.st.Speed = 0
	t.st.ETA = 0
	t.endedAt = t.now()
}

// Fail marks the operation failed. Progress is left where it was so pollers
// can see how far it got.
func (t *Tracker) Fail() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.st.Status.Terminal() {
		return
	}
	t.st.Status = StatusError
	t.st.Speed = 0
	t.st.ETA = 0
	t.endedAt = t.now()
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st
}

// running reports whether an operation has started and not yet ended.
func (t *Tracker) running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st.Status != StatusIdle && !t.st.Status.Terminal()
}

// endedBefore reports whether the operation reached a terminal state before cutoff.
func (t *Tracker) endedBefore(cutoff time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st.Status.Terminal() && !t.endedAt.IsZero() && t.endedAt.Before(cutoff)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
