package format

import "strconv"

// HumanizeBytes converts a byte count into a human-readable string (e.g., "1.5 MB").
func HumanizeBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	// Use a fixed buffer to avoid allocation
	var buf [20]byte
	frac := float64(b) / float64(div)
	s := strconv.AppendFloat(buf[:0], frac, 'f', 1, 64)
	suffix := []string{"KB", "MB", "GB", "TB"}[exp]
	return string(s) + " " + suffix
}
// HumanizeRate renders a bytes-per-second figure, e.g. "1.5 MB/s". Zero or
// negative rates render as "-".
func HumanizeRate(bps float64) string {
	if bps <= 0 {
		return "-"
	}
	return HumanizeBytes(int64(bps)) + "/s"
}

// ClockETA renders whole seconds as M:SS or H:MM:SS.
func ClockETA(sec int64) string {
	if sec < 0 {
		sec = 0
	}
	h, m, s := sec/3600, (sec%3600)/60, sec%60
	if h > 0 {
		return strconv.FormatInt(h, 10) + ":" + pad2(m) + ":" + pad2(s)
	}
	return strconv.FormatInt(m, 10) + ":" + pad2(s)
}

func pad2(v int64) string {
	if v < 10 {
		return "0" + strconv.FormatInt(v, 10)
	}
	return strconv.FormatInt(v, 10)
}
