package progress

// Status identifies the phase of a download operation.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusStarting    Status = "starting"
	StatusDownloading Status = "downloading"
	StatusConverting  Status = "converting"
	StatusFinished    Status = "finished"
	StatusError       Status = "error"
)

// Terminal reports whether no further progress can follow s within one operation.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusError
}

// State is the externally visible record of one operation.
type State struct {
	JobID    string  `json:"job_id"`
	Progress float64 `json:"progress"` // 0..100
	Status   Status  `json:"status"`
	Speed    float64 `json:"speed"` // bytes/s, 0 when unknown
	ETA      int64   `json:"eta"`   // seconds, 0 when unknown
	Started  bool    `json:"started"`
}

// Idle is the state reported before any operation has run.
func Idle() State {
	return State{Status: StatusIdle}
}

// Sample is one progress observation from a fetch or transcode loop.
// Zero means unknown for every field.
type Sample struct {
	Downloaded int64
	Total      int64   // exact size
	Estimate   int64   // approximate size when the exact one is unknown
	Percent    float64 // reported percentage, used only when no byte totals are known
	Speed      float64 // bytes/s
	ETA        int64   // seconds
}

// percent derives the completion percentage of s, or ok=false when it cannot be known.
func (s Sample) percent() (float64, bool) {
	switch {
	case s.Total > 0:
		return float64(s.Downloaded) / float64(s.Total) * 100, true
	case s.Estimate > 0:
		return float64(s.Downloaded) / float64(s.Estimate) * 100, true
	case s.Percent > 0:
		return s.Percent, true
	default:
		return 0, false
	}
}
