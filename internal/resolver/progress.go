package resolver

import (
	"math"
	"strconv"
	"strings"
	"time"

	"snipserve/internal/progress"
)

// progressMarker prefixes the lines produced by progressTemplate.
const progressMarker = "snipserve-progress"

// progressTemplate makes yt-dlp print raw byte counts instead of rounded,
// human-formatted figures. Missing values are printed as "NA".
const progressTemplate = "download:" + progressMarker +
	" %(progress.downloaded_bytes)s %(progress.total_bytes)s %(progress.total_bytes_estimate)s" +
	" %(progress.speed)s %(progress.eta)s"

// ParseProgress parses one yt-dlp output line into a progress sample.
// It understands the template above and the default
// "[download]  45.2% of 10.00MiB at  1.50MiB/s ETA 00:04" form.
func ParseProgress(line string) (progress.Sample, bool) {
	line = strings.TrimSpace(line)
	if rest, ok := strings.CutPrefix(line, progressMarker); ok {
		return parseTemplateLine(rest)
	}
	if rest, ok := strings.CutPrefix(line, "[download]"); ok {
		return parseDefaultLine(strings.TrimSpace(rest))
	}
	return progress.Sample{}, false
}

func parseTemplateLine(rest string) (progress.Sample, bool) {
	f := strings.Fields(rest)
	if len(f) != 5 {
		return progress.Sample{}, false
	}
	s := progress.Sample{
		Downloaded: num(f[0]),
		Total:      num(f[1]),
		Estimate:   num(f[2]),
		Speed:      toFloat(f[3]),
		ETA:        num(f[4]),
	}
	if s.Downloaded == 0 && s.Total == 0 && s.Estimate == 0 {
		return s, false
	}
	return s, true
}

func parseDefaultLine(rest string) (progress.Sample, bool) {
	idx := strings.Index(rest, "%")
	if idx == -1 {
		return progress.Sample{}, false
	}
	pct, err := strconv.ParseFloat(strings.TrimSpace(rest[:idx]), 64)
	if err != nil {
		return progress.Sample{}, false
	}
	s := progress.Sample{Percent: pct}

	// "of ~ 10.00MiB" marks an estimate
	if i := strings.Index(rest, " of "); i != -1 {
		sizePart := strings.TrimSpace(rest[i+4:])
		approx := strings.HasPrefix(sizePart, "~")
		sizePart = strings.TrimSpace(strings.TrimPrefix(sizePart, "~"))
		if n, ok := parseSize(firstField(sizePart)); ok {
			done := int64(math.Round(float64(n) * pct / 100))
			if approx {
				s.Estimate = n
			} else {
				s.Total = n
			}
			s.Downloaded = done
		}
	}
	if i := strings.Index(rest, " at "); i != -1 {
		speed := strings.TrimSuffix(firstField(rest[i+4:]), "/s")
		if n, ok := parseSize(speed); ok {
			s.Speed = float64(n)
		}
	}
	if i := strings.Index(rest, "ETA "); i != -1 {
		if d, err := parseETA(firstField(rest[i+4:])); err == nil {
			s.ETA = int64(d / time.Second)
		}
	}
	return s, true
}

// parseSize converts "10.00MiB", "512KiB" or "1.2GB" to bytes.
func parseSize(s string) (int64, bool) {
	units := []struct {
		suffix string
		mult   float64
	}{
		{"TiB", 1 << 40}, {"GiB", 1 << 30}, {"MiB", 1 << 20}, {"KiB", 1 << 10},
		{"TB", 1e12}, {"GB", 1e9}, {"MB", 1e6}, {"KB", 1e3}, {"kB", 1e3},
		{"B", 1},
	}
	for _, u := range units {
		if v, ok := strings.CutSuffix(s, u.suffix); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil || f < 0 {
				return 0, false
			}
			return int64(f * u.mult), true
		}
	}
	return 0, false
}

// parseETA parses duration strings like "00:04", "01:23:45", etc.
func parseETA(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, err
		}
		total = total*60 + n
	}
	if len(parts) > 3 {
		return 0, strconv.ErrRange
	}
	return time.Duration(total) * time.Second, nil
}

func firstField(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

// num parses an integer or float field, treating "NA" and "None" as 0.
func num(s string) int64 {
	f := toFloat(s)
	if f <= 0 {
		return 0
	}
	return int64(f)
}

func toFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
