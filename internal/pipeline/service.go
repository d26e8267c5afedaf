// Package pipeline orchestrates a download: resolve, fetch, optionally
// transcode, and hand back a body the caller streams to the client.
package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"snipserve/internal/encoder"
	"snipserve/internal/fetch"
	"snipserve/internal/mediaerr"
	"snipserve/internal/model"
	"snipserve/internal/progress"
	"snipserve/internal/resolver"
	"snipserve/internal/selector"
	"snipserve/internal/tempfile"
	"snipserve/internal/util"
	"snipserve/internal/util/media"
)

const (
	ContentTypeVideo = "video/mp4"
	ContentTypeAudio = "audio/mpeg"
)

// outputSuffix names the transcoder output next to the fetched input.
const outputSuffix = ".out.mp3"

// Resolver is the subset of *resolver.Resolver the service needs.
type Resolver interface {
	Metadata(ctx context.Context, rawURL string) (model.VideoInfo, error)
	ListFormats(ctx context.Context, rawURL string, transcoderAvailable bool) ([]model.FormatOption, error)
	ResolveStream(ctx context.Context, rawURL string, sel resolver.Selection) (model.ResolvedStream, error)
	FetchToFile(ctx context.Context, rawURL string, sel resolver.Selection, dir, token string, onProgress func(progress.Sample)) (model.FetchedFile, error)
}

// Fetcher opens direct media URLs.
type Fetcher interface {
	Open(ctx context.Context, rawURL string, extra map[string]string) (*fetch.Stream, error)
}

// Service runs download operations.
type Service struct {
	dlPath       string
	ffmpegPath   string
	runner       util.CmdRunner
	resolver     Resolver
	fetcher      Fetcher
	temp         *tempfile.Manager
	log          *zap.Logger
	cleanupDelay time.Duration
	trace        func(string)
}

// Option configures a Service.
type Option func(*Service)

// WithDownloaderPath sets the downloader (yt-dlp/youtube-dl) binary path.
func WithDownloaderPath(p string) Option {
	return func(s *Service) {
		s.dlPath = p
	}
}

// WithFFmpegPath sets the ffmpeg binary path. Empty means no transcoder.
func WithFFmpegPath(p string) Option {
	return func(s *Service) {
		s.ffmpegPath = p
	}
}

// WithRunner injects a custom command runner (useful for testing).
func WithRunner(r util.CmdRunner) Option {
	return func(s *Service) {
		s.runner = r
	}
}

// WithResolver replaces the default yt-dlp + YouTube resolver.
func WithResolver(r Resolver) Option {
	return func(s *Service) {
		s.resolver = r
	}
}

// WithFetcher replaces the default HTTP fetcher.
func WithFetcher(f Fetcher) Option {
	return func(s *Service) {
		s.fetcher = f
	}
}

// WithTempManager sets where audio downloads and conversions live.
func WithTempManager(m *tempfile.Manager) Option {
	return func(s *Service) {
		s.temp = m
	}
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		s.log = l
	}
}

// WithCleanupDelay sets how long a converted file may outlive its response.
func WithCleanupDelay(d time.Duration) Option {
	return func(s *Service) {
		s.cleanupDelay = d
	}
}

// WithTrace receives every subprocess command line before it starts.
func WithTrace(fn func(cmdline string)) Option {
	return func(s *Service) {
		s.trace = fn
	}
}

// NewService constructs a Service, filling in defaults for missing components.
func NewService(opts ...Option) *Service {
	s := &Service{}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.runner == nil {
		s.runner = util.NewDefaultRunner()
	}
	if s.cleanupDelay <= 0 {
		s.cleanupDelay = tempfile.DefaultCleanupDelay
	}
	if s.fetcher == nil {
		s.fetcher = fetch.NewClient(nil)
	}
	if s.resolver == nil {
		s.resolver = resolver.New(s.log,
			&resolver.YTDLP{Path: s.dlPath, FFmpegPath: s.ffmpegPath, Runner: s.runner, Trace: s.trace},
			resolver.NewYouTube(nil),
		)
	}
	return s
}

// TranscoderAvailable reports whether ffmpeg was found.
func (s *Service) TranscoderAvailable() bool {
	return s.ffmpegPath != ""
}

// Info returns metadata for rawURL.
func (s *Service) Info(ctx context.Context, rawURL string) (model.VideoInfo, error) {
	return s.resolver.Metadata(ctx, rawURL)
}

// Formats lists the qualities that can be requested for rawURL.
func (s *Service) Formats(ctx context.Context, rawURL string) ([]model.FormatOption, error) {
	return s.resolver.ListFormats(ctx, rawURL, s.TranscoderAvailable())
}

// Result is a ready-to-stream download. The caller must Close Body.
type Result struct {
	JobID       string
	Filename    string
	ContentType string
	Size        int64 // -1 when unknown
	Body        io.ReadCloser
}

// Execute runs one download and reports into tr, which the caller has already
// Reset. On error every temp file of the operation is gone and tr ends in
// StatusError. For video the tracker finishes when Body reaches EOF; for audio
// it finishes before Execute returns.
func (s *Service) Execute(ctx context.Context, req model.MediaRequest, tr *progress.Tracker) (res *Result, err error) {
	if tr == nil {
		tr = progress.NewTracker()
		tr.Reset(req.JobID)
	}
	log := s.log.With(
		zap.String("job_id", req.JobID),
		zap.String("format", string(req.Format)),
		zap.String("quality", req.Quality),
	)
	defer func() {
		if err != nil {
			tr.Fail()
			log.Warn("download failed", zap.String("url", req.URL), zap.Error(err))
		}
	}()

	if _, verr := util.ValidateURL(req.URL); verr != nil {
		return nil, mediaerr.Resolution("validate", verr)
	}
	log.Info("download started", zap.String("url", req.URL))

	switch req.Format {
	case model.FormatAudio:
		res, err = s.audio(ctx, req, tr, log)
	default:
		res, err = s.video(ctx, req, tr, log)
	}
	if err != nil {
		return nil, err
	}
	res.JobID = req.JobID
	log.Info("download ready", zap.String("filename", res.Filename), zap.Int64("size", res.Size))
	return res, nil
}

func (s *Service) video(ctx context.Context, req model.MediaRequest, tr *progress.Tracker, log *zap.Logger) (*Result, error) {
	quality := model.NormalizeQuality(req.Quality)
	transcoder := s.TranscoderAvailable()
	sel := resolver.Selection{
		Expr:       selector.SelectFormat(quality, transcoder),
		Quality:    quality,
		Transcoder: transcoder,
	}

	st, err := s.resolver.ResolveStream(ctx, req.URL, sel)
	if errors.Is(err, mediaerr.ErrFormatUnavailable) && selector.NeedsMerge(sel.Expr) {
		log.Info("no single stream for merge plan, retrying with muxed formats", zap.Error(err))
		sel.Expr = selector.SelectFormat(quality, false)
		sel.Transcoder = false
		st, err = s.resolver.ResolveStream(ctx, req.URL, sel)
	}
	if err != nil {
		return nil, err
	}

	stream, err := s.fetcher.Open(ctx, st.URL, st.Headers)
	if err != nil {
		return nil, err
	}
	total := stream.Size
	if total <= 0 {
		total = st.Size
	}
	return &Result{
		Filename:    media.VideoFilename(st.Title, quality),
		ContentType: ContentTypeVideo,
		Size:        stream.Size,
		Body:        fetch.NewProgressReader(stream.Body, total, tr.Downloading, tr.Finish),
	}, nil
}

func (s *Service) audio(ctx context.Context, req model.MediaRequest, tr *progress.Tracker, log *zap.Logger) (*Result, error) {
	if !s.TranscoderAvailable() {
		return nil, mediaerr.Conversion("transcode", errors.New("ffmpeg not found"), nil)
	}
	if s.temp == nil {
		return nil, mediaerr.Storage("allocate", errors.New("no temp directory configured"))
	}

	// The output gets its own stem so an extractor that already picked
	// an mp3 stream cannot land on the same path.
	outPath, token := s.temp.Allocate(outputSuffix)
	fail := func(err error) (*Result, error) {
		s.temp.RemoveMatching(token)
		return nil, err
	}

	sel := resolver.Selection{Expr: selector.AudioFormat(), Quality: model.QualityBest, Transcoder: true}
	fetched, err := s.resolver.FetchToFile(ctx, req.URL, sel, s.temp.Dir(), token, tr.Downloading)
	if err != nil {
		return fail(err)
	}

	tr.Converting()
	log.Debug("converting", zap.String("input", fetched.Path), zap.Int64("input_size", fetched.Size))
	out, err := encoder.TranscodeMP3(ctx, fetched.Path, outPath, encoder.Options{
		FFmpegPath: s.ffmpegPath,
		Runner:     s.runner,
		Trace:      s.trace,
		OnTick: func(tk encoder.Tick) {
			log.Debug("transcode progress",
				zap.Duration("out_time", tk.OutTime),
				zap.String("speed", tk.Speed),
				zap.Int64("size", tk.TotalSize),
				zap.Bool("done", tk.Done),
			)
		},
	})
	_ = s.temp.Remove(fetched.Path)
	if err != nil {
		return fail(err)
	}

	f, err := os.Open(out.Path)
	if err != nil {
		return fail(mediaerr.Storage("open output", err))
	}
	tr.Finish()

	stop := s.temp.ScheduleDeferredCleanup(out.Path, s.cleanupDelay)
	return &Result{
		Filename:    media.AudioFilename(fetched.Title),
		ContentType: ContentTypeAudio,
		Size:        out.Bytes,
		Body:        &stopOnClose{ReadCloser: s.temp.AttachStreamCloseCleanup(f, out.Path), stop: stop},
	}, nil
}

// stopOnClose cancels the deferred cleanup once the body has been closed,
// since closing already removed the file.
type stopOnClose struct {
	io.ReadCloser
	stop func()
}

func (c *stopOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.stop()
	return err
}
