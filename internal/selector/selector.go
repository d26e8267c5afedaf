// Package selector maps quality labels to yt-dlp format expressions.
package selector

import (
	"fmt"
	"strconv"
	"strings"

	"snipserve/internal/model"
)

const (
	bestMuxed  = "best[ext=mp4][acodec!=none][vcodec!=none]/best"
	bestMerged = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"
	audioOnly  = "bestaudio/best"
)

// SelectFormat returns the format expression for quality. Without a transcoder
// only pre-muxed streams are requested, since separate video and audio could
// not be merged. Unknown labels select the same expression as "best".
func SelectFormat(quality string, transcoderAvailable bool) string {
	h := HeightBound(quality)
	if h == 0 {
		if transcoderAvailable {
			return bestMerged
		}
		return bestMuxed
	}
	if transcoderAvailable {
		return fmt.Sprintf("bestvideo[height<=%d][ext=mp4]+bestaudio[ext=m4a]/best[height<=%d]", h, h)
	}
	return fmt.Sprintf("best[height<=%d][ext=mp4][acodec!=none][vcodec!=none]", h)
}

// AudioFormat is the expression used for the audio path.
func AudioFormat() string {
	return audioOnly
}

// HeightBound returns the pixel height cap for quality, or 0 for best and unknown labels.
func HeightBound(quality string) int {
	q := model.NormalizeQuality(quality)
	if q == model.QualityBest {
		return 0
	}
	h, err := strconv.Atoi(strings.TrimSuffix(q, "p"))
	if err != nil {
		return 0
	}
	return h
}

// NeedsMerge reports whether expr asks for separate streams joined with '+'.
func NeedsMerge(expr string) bool {
	return strings.Contains(expr, "+")
}
