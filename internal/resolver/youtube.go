package resolver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/kkdai/youtube/v2"

	"snipserve/internal/fetch"
	"snipserve/internal/mediaerr"
	"snipserve/internal/model"
	"snipserve/internal/progress"
	"snipserve/internal/selector"
	"snipserve/internal/util"
)

// YouTube talks to YouTube's player API directly. It is the second path for
// YouTube URLs when yt-dlp fails.
type YouTube struct {
	client *youtube.Client
}

// NewYouTube returns a backend using hc, or the shared fetch client when nil.
func NewYouTube(hc *http.Client) *YouTube {
	if hc == nil {
		hc = fetch.DefaultHTTPClient()
	}
	return &YouTube{client: &youtube.Client{HTTPClient: hc}}
}

func (y *YouTube) Name() string { return "youtube" }

func (y *YouTube) Supports(u *url.URL) bool {
	return util.DetectPlatform(u) == util.PlatformYouTube && util.YouTubeID(u) != ""
}

func (y *YouTube) video(ctx context.Context, op, rawURL string) (*youtube.Video, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, mediaerr.Resolution(op, err)
	}
	id := util.YouTubeID(u)
	if id == "" {
		return nil, mediaerr.Resolution(op, errors.New("no video id in URL"))
	}
	v, err := y.client.GetVideoContext(ctx, id)
	if err != nil {
		return nil, classifyYouTube(op, err)
	}
	return v, nil
}

func (y *YouTube) Metadata(ctx context.Context, rawURL string) (model.VideoInfo, error) {
	v, err := y.video(ctx, "metadata", rawURL)
	if err != nil {
		return model.VideoInfo{}, err
	}
	return model.VideoInfo{
		Title:        v.Title,
		Author:       v.Author,
		ThumbnailURL: bestThumbnail(v.Thumbnails),
		Duration:     v.Duration.Seconds(),
		Views:        int64(v.Views),
	}.WithDefaults(), nil
}

func (y *YouTube) Formats(ctx context.Context, rawURL string) ([]RawFormat, error) {
	v, err := y.video(ctx, "list formats", rawURL)
	if err != nil {
		return nil, err
	}
	return youtubeRawFormats(v.Formats), nil
}

// Stream picks the tallest muxed mp4 within the quality's height bound.
func (y *YouTube) Stream(ctx context.Context, rawURL string, sel Selection) (model.ResolvedStream, error) {
	const op = "resolve stream"
	v, err := y.video(ctx, op, rawURL)
	if err != nil {
		return model.ResolvedStream{}, err
	}
	f := pickMuxed(v.Formats, selector.HeightBound(sel.Quality))
	if f == nil {
		return model.ResolvedStream{}, mediaerr.FormatUnavailable(op, errors.New("no muxed mp4 within the requested height"))
	}
	streamURL, err := y.client.GetStreamURLContext(ctx, v, f)
	if err != nil {
		return model.ResolvedStream{}, classifyYouTube(op, err)
	}
	return model.ResolvedStream{URL: streamURL, Title: v.Title, Size: int64(f.ContentLength)}, nil
}

// Fetch downloads the best audio format into dir. sel.Expr is ignored; this
// backend only serves the audio path.
func (y *YouTube) Fetch(ctx context.Context, rawURL string, sel Selection, dir, token string, onProgress func(progress.Sample)) (model.FetchedFile, error) {
	const op = "fetch"
	v, err := y.video(ctx, op, rawURL)
	if err != nil {
		return model.FetchedFile{}, err
	}
	f := pickAudio(v.Formats)
	if f == nil {
		return model.FetchedFile{}, mediaerr.FormatUnavailable(op, errors.New("no audio format"))
	}
	rc, size, err := y.client.GetStreamContext(ctx, v, f)
	if err != nil {
		return model.FetchedFile{}, classifyYouTube(op, err)
	}
	body := fetch.NewProgressReader(rc, size, onProgress, nil)
	defer body.Close()

	path := filepath.Join(dir, token+"."+mimeExt(f.MimeType))
	out, err := os.Create(path)
	if err != nil {
		return model.FetchedFile{}, mediaerr.Storage(op, err)
	}
	if _, err := io.Copy(out, body); err != nil {
		out.Close()
		if ctx.Err() != nil {
			return model.FetchedFile{}, mediaerr.ClientDisconnect(op, ctx.Err())
		}
		return model.FetchedFile{}, mediaerr.Resolution(op, err)
	}
	if err := out.Close(); err != nil {
		return model.FetchedFile{}, mediaerr.Storage(op, err)
	}
	return model.FetchedFile{Path: path, Title: v.Title, Size: body.BytesRead()}, nil
}

func youtubeRawFormats(formats youtube.FormatList) []RawFormat {
	out := make([]RawFormat, 0, len(formats))
	for _, f := range formats {
		out = append(out, RawFormat{
			Ext:      mimeExt(f.MimeType),
			Height:   f.Height,
			HasAudio: f.AudioChannels > 0,
			HasVideo: strings.HasPrefix(f.MimeType, "video/"),
			Size:     int64(f.ContentLength),
		})
	}
	return out
}

// pickMuxed returns the tallest mp4 with audio whose height is at most bound
// (0 = unbounded).
func pickMuxed(formats youtube.FormatList, bound int) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if !strings.HasPrefix(f.MimeType, "video/mp4") || f.AudioChannels == 0 || f.Height == 0 {
			continue
		}
		if bound > 0 && f.Height > bound {
			continue
		}
		if best == nil || f.Height > best.Height {
			best = f
		}
	}
	return best
}

// pickAudio prefers audio-only formats, mp4 over others, then the highest bitrate.
func pickAudio(formats youtube.FormatList) *youtube.Format {
	var best *youtube.Format
	score := func(f *youtube.Format) (int, int) {
		s := 0
		if strings.HasPrefix(f.MimeType, "audio/") {
			s += 2
		}
		if strings.Contains(f.MimeType, "mp4") {
			s++
		}
		return s, f.Bitrate
	}
	for i := range formats {
		f := &formats[i]
		if f.AudioChannels == 0 {
			continue
		}
		if best == nil {
			best = f
			continue
		}
		fs, fb := score(f)
		bs, bb := score(best)
		if fs > bs || (fs == bs && fb > bb) {
			best = f
		}
	}
	return best
}

func bestThumbnail(th youtube.Thumbnails) string {
	var (
		best string
		area uint64
	)
	for _, t := range th {
		if a := uint64(t.Width) * uint64(t.Height); best == "" || a > area {
			best, area = t.URL, a
		}
	}
	return best
}

func mimeExt(mime string) string {
	switch {
	case strings.HasPrefix(mime, "audio/mp4"):
		return "m4a"
	case strings.HasPrefix(mime, "audio/webm"), strings.HasPrefix(mime, "video/webm"):
		return "webm"
	case strings.HasPrefix(mime, "video/mp4"):
		return "mp4"
	default:
		return "bin"
	}
}

// classifyYouTube maps client errors to kinds. Videos that cannot be played
// at all exhaust this backend, leaving the remaining attempts to yt-dlp.
func classifyYouTube(op string, err error) error {
	var playability *youtube.ErrPlayabiltyStatus
	switch {
	case errors.Is(err, context.Canceled):
		return mediaerr.ClientDisconnect(op, err)
	case errors.Is(err, youtube.ErrLoginRequired),
		errors.Is(err, youtube.ErrVideoPrivate),
		errors.Is(err, youtube.ErrNotPlayableInEmbed),
		errors.As(err, &playability):
		return &mediaerr.Error{Kind: mediaerr.ErrFormatUnavailable, Op: op, Err: err, Detail: "video not playable"}
	default:
		return mediaerr.Resolution(op, err)
	}
}
