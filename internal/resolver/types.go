package resolver

import "snipserve/internal/model"

// YTDLPInfo mirrors fields from yt-dlp --dump-json output that we care about.
type YTDLPInfo struct {
	ID               string            `json:"id"`
	Title            string            `json:"title"`
	Uploader         string            `json:"uploader"`
	Channel          string            `json:"channel"`
	Thumbnail        string            `json:"thumbnail"`
	Duration         float64           `json:"duration"`
	ViewCount        int64             `json:"view_count"`
	URL              string            `json:"url"`
	Ext              string            `json:"ext"`
	ACodec           string            `json:"acodec"`
	VCodec           string            `json:"vcodec"`
	Filesize         int64             `json:"filesize"`
	FilesizeApprox   int64             `json:"filesize_approx"`
	HTTPHeaders      map[string]string `json:"http_headers"`
	Formats          []YTDLPFormat     `json:"formats"`
	RequestedFormats []YTDLPFormat     `json:"requested_formats"`
}

// YTDLPFormat is one entry of "formats" or "requested_formats".
type YTDLPFormat struct {
	FormatID       string            `json:"format_id"`
	URL            string            `json:"url"`
	Ext            string            `json:"ext"`
	Height         int               `json:"height"`
	ACodec         string            `json:"acodec"`
	VCodec         string            `json:"vcodec"`
	Filesize       int64             `json:"filesize"`
	FilesizeApprox int64             `json:"filesize_approx"`
	HTTPHeaders    map[string]string `json:"http_headers"`
}

func (f YTDLPFormat) hasAudio() bool { return codecPresent(f.ACodec) }
func (f YTDLPFormat) hasVideo() bool { return codecPresent(f.VCodec) }

// codecPresent treats "none" as absent. An empty codec means yt-dlp did not
// say, which for muxed progressive formats usually means both are present.
func codecPresent(c string) bool {
	return c != "none"
}

func (f YTDLPFormat) size() int64 {
	if f.Filesize > 0 {
		return f.Filesize
	}
	return f.FilesizeApprox
}

// VideoInfo converts the metadata, applying defaults for missing fields.
func (i YTDLPInfo) VideoInfo() model.VideoInfo {
	author := i.Uploader
	if author == "" {
		author = i.Channel
	}
	return model.VideoInfo{
		Title:        i.Title,
		Author:       author,
		ThumbnailURL: i.Thumbnail,
		Duration:     i.Duration,
		Views:        i.ViewCount,
	}.WithDefaults()
}

// RawFormat is the backend-neutral view of one available format.
type RawFormat struct {
	Ext      string
	Height   int
	HasAudio bool
	HasVideo bool
	Size     int64 // 0 when unknown
}

func (i YTDLPInfo) rawFormats() []RawFormat {
	out := make([]RawFormat, 0, len(i.Formats))
	for _, f := range i.Formats {
		out = append(out, RawFormat{
			Ext:      f.Ext,
			Height:   f.Height,
			HasAudio: f.hasAudio(),
			HasVideo: f.hasVideo(),
			Size:     f.size(),
		})
	}
	return out
}
