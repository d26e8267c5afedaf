package media

import (
	"strings"

	"snipserve/internal/util"
)

const fallbackTitle = "download"

// VideoFilename builds the attachment name for a streamed video:
// the sanitized form of "<title>_<quality>.mp4".
func VideoFilename(title, quality string) string {
	if util.SanitizeFilename(title) == "" {
		title = fallbackTitle
	}
	return util.SanitizeFilename(title + "_" + quality + ".mp4")
}

// AudioFilename builds the attachment name for a transcoded track: "<title>.mp3".
func AudioFilename(title string) string {
	base := util.SanitizeFilename(title)
	if base == "" {
		base = fallbackTitle
	}
	return base + ".mp3"
}

// ContentDisposition renders an attachment header value. Names produced by
// VideoFilename and AudioFilename never need escaping; anything else has
// quotes and backslashes stripped.
func ContentDisposition(filename string) string {
	clean := strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r < 0x20 {
			return -1
		}
		return r
	}, filename)
	return `attachment; filename="` + clean + `"`
}
