package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"snipserve/internal/fetch"
	"snipserve/internal/mediaerr"
	"snipserve/internal/model"
	"snipserve/internal/progress"
	"snipserve/internal/util"
)

// titleMarker prefixes the title line printed once the download is moved into place.
const titleMarker = "snipserve-title"

// YTDLP drives the yt-dlp (or youtube-dl) binary.
type YTDLP struct {
	Path       string
	FFmpegPath string // passed as --ffmpeg-location when set
	Runner     util.CmdRunner
	Trace      func(cmdline string)
}

func (y *YTDLP) Name() string { return "yt-dlp" }

// Supports accepts every http(s) URL; yt-dlp decides what it can extract.
func (y *YTDLP) Supports(*url.URL) bool { return y.Path != "" }

func (y *YTDLP) runner() util.CmdRunner {
	if y.Runner == nil {
		return util.NewDefaultRunner()
	}
	return y.Runner
}

func (y *YTDLP) commonArgs() []string {
	args := []string{
		"--no-playlist",
		"--no-warnings",
		"--user-agent", fetch.UserAgent,
		"--add-header", "Accept-Language:en-us,en;q=0.5",
		"--socket-timeout", "30",
	}
	if y.FFmpegPath != "" {
		args = append(args, "--ffmpeg-location", y.FFmpegPath)
	}
	return args
}

func (y *YTDLP) Metadata(ctx context.Context, rawURL string) (model.VideoInfo, error) {
	info, err := y.dumpJSON(ctx, "metadata", rawURL, "")
	if err != nil {
		return model.VideoInfo{}, err
	}
	return info.VideoInfo(), nil
}

func (y *YTDLP) Formats(ctx context.Context, rawURL string) ([]RawFormat, error) {
	info, err := y.dumpJSON(ctx, "list formats", rawURL, "")
	if err != nil {
		return nil, err
	}
	return info.rawFormats(), nil
}

// Stream resolves sel.Expr to one URL. For a merge plan the first requested
// format that carries both audio and video is used; when there is none the
// result is FormatUnavailable so the caller can fall back to a muxed expression.
func (y *YTDLP) Stream(ctx context.Context, rawURL string, sel Selection) (model.ResolvedStream, error) {
	const op = "resolve stream"
	info, err := y.dumpJSON(ctx, op, rawURL, sel.Expr)
	if err != nil {
		return model.ResolvedStream{}, err
	}

	if len(info.RequestedFormats) > 0 {
		for _, f := range info.RequestedFormats {
			if f.URL != "" && f.hasAudio() && f.hasVideo() {
				return model.ResolvedStream{URL: f.URL, Title: info.Title, Headers: f.HTTPHeaders, Size: f.size()}, nil
			}
		}
		return model.ResolvedStream{}, mediaerr.FormatUnavailable(op, errors.New("selection resolves to separate audio and video streams"))
	}
	if info.URL == "" {
		return model.ResolvedStream{}, mediaerr.FormatUnavailable(op, errors.New("no stream URL returned"))
	}
	size := info.Filesize
	if size <= 0 {
		size = info.FilesizeApprox
	}
	return model.ResolvedStream{URL: info.URL, Title: info.Title, Headers: info.HTTPHeaders, Size: size}, nil
}

// Fetch downloads into dir/<token>.<ext>, reporting progress from yt-dlp's output.
func (y *YTDLP) Fetch(ctx context.Context, rawURL string, sel Selection, dir, token string, onProgress func(progress.Sample)) (model.FetchedFile, error) {
	const op = "fetch"
	var (
		mu    sync.Mutex
		title string
	)
	onLine := func(line string) {
		if t, ok := strings.CutPrefix(strings.TrimSpace(line), titleMarker); ok {
			mu.Lock()
			title = strings.TrimSpace(t)
			mu.Unlock()
			return
		}
		if onProgress == nil {
			return
		}
		if s, ok := ParseProgress(line); ok {
			onProgress(s)
		}
	}

	args := []string{
		"-f", sel.Expr,
		"-o", filepath.Join(dir, token+".%(ext)s"),
		"--no-simulate",
		"--progress",
		"--newline",
		"--progress-template", progressTemplate,
		"--print", "after_move:" + titleMarker + " %(title)s",
	}
	args = append(args, y.commonArgs()...)
	args = append(args, "--", rawURL)

	res, err := y.runner().Run(ctx, util.CmdSpec{
		Path:       y.Path,
		Args:       args,
		Trace:      y.Trace,
		StdoutLine: onLine,
		StderrLine: onLine,
	})
	if err != nil {
		return model.FetchedFile{}, classify(op, err, res.Stderr)
	}

	path, err := SelectDownloadedFile(dir, token)
	if err != nil {
		return model.FetchedFile{}, mediaerr.Resolution(op, err)
	}
	size, err := util.FileSize(path)
	if err != nil {
		return model.FetchedFile{}, mediaerr.Storage(op, err)
	}
	mu.Lock()
	defer mu.Unlock()
	return model.FetchedFile{Path: path, Title: title, Size: size}, nil
}

func (y *YTDLP) dumpJSON(ctx context.Context, op, rawURL, expr string) (YTDLPInfo, error) {
	args := []string{"--dump-json"}
	if expr != "" {
		args = append(args, "-f", expr)
	}
	args = append(args, y.commonArgs()...)
	args = append(args, "--", rawURL)

	res, runErr := y.runner().Run(ctx, util.CmdSpec{
		Path:  y.Path,
		Args:  args,
		Trace: y.Trace,
	})
	if runErr != nil && len(res.Stdout) == 0 {
		return YTDLPInfo{}, classify(op, runErr, res.Stderr)
	}
	info, err := decodeInfo(res.Stdout)
	if err != nil {
		return YTDLPInfo{}, mediaerr.Resolution(op, err)
	}
	return info, nil
}

// decodeInfo reads the info JSON from stdout. yt-dlp may print more than one
// object, so on a failed decode the last parseable line wins.
func decodeInfo(stdout []byte) (YTDLPInfo, error) {
	data := strings.TrimSpace(string(stdout))
	var info YTDLPInfo
	err := json.NewDecoder(strings.NewReader(data)).Decode(&info)
	if err == nil {
		return info, nil
	}
	lines := strings.Split(data, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		var tmp YTDLPInfo
		if json.Unmarshal([]byte(line), &tmp) == nil && (tmp.ID != "" || tmp.Title != "") {
			return tmp, nil
		}
	}
	return YTDLPInfo{}, fmt.Errorf("parse metadata JSON: %w", err)
}

// classify maps a failed yt-dlp run to an error kind, keeping the last line
// of stderr as the message.
func classify(op string, err error, stderr []byte) error {
	msg := lastLine(stderr)
	if msg != "" {
		err = fmt.Errorf("%w: %s", err, msg)
	}
	if strings.Contains(string(stderr), "Requested format is not available") {
		return mediaerr.FormatUnavailable(op, err)
	}
	return mediaerr.Resolution(op, err)
}

func lastLine(b []byte) string {
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
