package encoder

import (
	"strconv"
	"strings"
	"time"
)

// Tick is one block of ffmpeg -progress output.
type Tick struct {
	OutTime   time.Duration
	Speed     string // e.g. "12.3x"
	TotalSize int64
	Done      bool // progress=end
}

// ProgressState accumulates key=value lines from ffmpeg -progress until a
// "progress=" marker closes the block.
type ProgressState struct {
	OutTimeUs int64
	SpeedStr  string
	TotalSize int64
}

// UpdateFromLine feeds one line. It returns a Tick, ok=true when the line
// closed a block.
func (ps *ProgressState) UpdateFromLine(line string) (Tick, bool) {
	key, val, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found {
		return Tick{}, false
	}
	key = strings.TrimSpace(key)
	val = strings.TrimSpace(val)

	switch key {
	case "out_time_us", "out_time_ms":
		// Both keys carry microseconds; out_time_ms is misnamed upstream.
		if v, err := strconv.ParseInt(val, 10, 64); err == nil && v >= 0 {
			ps.OutTimeUs = v
		}
	case "speed":
		ps.SpeedStr = val
	case "total_size":
		if v, err := strconv.ParseInt(val, 10, 64); err == nil {
			ps.TotalSize = v
		}
	case "progress":
		return Tick{
			OutTime:   time.Duration(ps.OutTimeUs) * time.Microsecond,
			Speed:     ps.SpeedStr,
			TotalSize: ps.TotalSize,
			Done:      val == "end",
		}, true
	}
	return Tick{}, false
}
