package model

import "strconv"

// FormatType selects the output container of a download.
type FormatType string

const (
	FormatVideo FormatType = "video" // MP4 streamed straight from the source
	FormatAudio FormatType = "audio" // MP3 transcoded by ffmpeg
)

// ParseFormatType maps the HTTP "format" parameter. "mp4" (or empty) is video;
// everything else is audio.
func ParseFormatType(s string) FormatType {
	switch s {
	case "", "mp4", "video":
		return FormatVideo
	default:
		return FormatAudio
	}
}

// Quality labels understood by the format selector.
const (
	QualityBest  = "best"
	Quality2160p = "2160p"
	Quality1440p = "1440p"
	Quality1080p = "1080p"
	Quality720p  = "720p"
	Quality480p  = "480p"
	Quality360p  = "360p"
)

// Qualities lists the known labels, tallest first, with best last.
var Qualities = []string{Quality2160p, Quality1440p, Quality1080p, Quality720p, Quality480p, Quality360p, QualityBest}

// NormalizeQuality returns q when it is a known label and "best" otherwise.
func NormalizeQuality(q string) string {
	for _, k := range Qualities {
		if q == k {
			return q
		}
	}
	return QualityBest
}

// MediaRequest is one download request.
type MediaRequest struct {
	URL     string
	Format  FormatType
	Quality string
	JobID   string
}

// VideoInfo is the metadata returned by /api/video-info.
type VideoInfo struct {
	Title        string  `json:"title"`
	Author       string  `json:"author"`
	ThumbnailURL string  `json:"thumbnail_url"`
	Duration     float64 `json:"duration"`
	Views        int64   `json:"views"`
}

// Metadata defaults for fields the source omitted.
const (
	UnknownTitle  = "Unknown Title"
	UnknownAuthor = "Unknown Author"
)

// WithDefaults fills empty text fields with their placeholders.
func (v VideoInfo) WithDefaults() VideoInfo {
	if v.Title == "" {
		v.Title = UnknownTitle
	}
	if v.Author == "" {
		v.Author = UnknownAuthor
	}
	if v.Duration < 0 {
		v.Duration = 0
	}
	if v.Views < 0 {
		v.Views = 0
	}
	return v
}

// FileSize is a byte count that renders as "Unknown" in JSON when negative.
type FileSize int64

// UnknownSize marks a format whose size the source did not report.
const UnknownSize FileSize = -1

func (s FileSize) MarshalJSON() ([]byte, error) {
	if s < 0 {
		return []byte(`"Unknown"`), nil
	}
	return strconv.AppendInt(nil, int64(s), 10), nil
}

// FormatOption is one entry of /api/formats.
type FormatOption struct {
	Height   int      `json:"height"`
	Quality  string   `json:"quality"`
	FileSize FileSize `json:"filesize"`
}

// BestOption is the synthetic entry appended to every format list.
var BestOption = FormatOption{Height: 0, Quality: QualityBest, FileSize: UnknownSize}

// ResolvedStream is a direct media URL ready to be fetched.
type ResolvedStream struct {
	URL     string
	Title   string
	Headers map[string]string
	Size    int64 // 0 when unknown
}

// FetchedFile is media already written to local disk by the resolver.
type FetchedFile struct {
	Path  string
	Title string
	Size  int64
}
