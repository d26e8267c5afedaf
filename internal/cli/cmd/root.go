package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"snipserve/internal/config"
	"snipserve/internal/dirs"
	"snipserve/internal/logging"
	"snipserve/internal/mediaerr"
	"snipserve/internal/pipeline"
	"snipserve/internal/tempfile"
	"snipserve/internal/util/deps"
)

const (
	ExitOK             = 0
	ExitCLIError       = 1
	ExitMissingDep     = 2
	ExitDownloadError  = 3
	ExitTranscodeError = 4
	ExitStorageError   = 5
	ExitInterrupted    = 130
)

// ExitError wraps an error with a process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// exitFor maps a pipeline error onto the exit code of its kind.
func exitFor(err error) *ExitError {
	code := ExitCLIError
	switch mediaerr.KindOf(err) {
	case mediaerr.ErrResolution, mediaerr.ErrFormatUnavailable:
		code = ExitDownloadError
	case mediaerr.ErrConversion:
		code = ExitTranscodeError
	case mediaerr.ErrStorage:
		code = ExitStorageError
	case mediaerr.ErrClientDisconnect:
		code = ExitInterrupted
	default:
		if errors.Is(err, context.Canceled) {
			code = ExitInterrupted
		}
	}
	return &ExitError{Code: code, Err: err}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "snipserve",
		Short:         "Download video and audio from YouTube and friends",
		Long:          "snipserve fetches media through yt-dlp (or a built-in YouTube client), streams MP4 straight from the source and converts audio to MP3 with ffmpeg. Run 'snipserve serve' for the HTTP service or 'snipserve get <url>' for a one-off download.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.Init(cmd.Root()); err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.BoolP("verbose", "v", false, "Debug logging and full subprocess command lines")
	pf.String("dl-binary", "", "Path to yt-dlp or youtube-dl")
	pf.String("ffmpeg-path", "", "Path to ffmpeg")
	pf.String("temp-dir", "", "Directory for intermediate files (default: a fresh OS temp dir)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newGetCmd())
	root.AddCommand(newInfoCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newCompletionCmd())

	return root
}

// Execute runs the CLI with the provided context.
func Execute(ctx context.Context) error {
	root := newRootCmd()
	return root.ExecuteContext(ctx)
}

// env is the wiring shared by the commands that download.
type env struct {
	cfg    config.Config
	log    *zap.Logger
	dlPath string
	ffmpeg deps.FFmpegLocation
	temp   *tempfile.Manager
	svc    *pipeline.Service
}

// newEnv loads the configuration and builds the logger, temp manager and
// pipeline. Missing external tools are logged, not fatal: the built-in
// YouTube client still works without yt-dlp and only MP3 needs ffmpeg.
// With cacheTemp set and no temp dir configured, working files go under the
// user cache dir instead of the OS temp dir.
func newEnv(cacheTemp bool) (*env, error) {
	cfg := config.Load(viper.GetViper())
	log, err := logging.New(cfg.Verbose)
	if err != nil {
		return nil, &ExitError{Code: ExitCLIError, Err: err}
	}

	dlPath, derr := deps.FindDownloader(cfg.DLBinary)
	if derr != nil {
		log.Warn("downloader not found, falling back to the built-in YouTube client", zap.Error(derr))
	}
	ff, ferr := deps.FindFFmpeg(cfg.FFmpegPath)
	if ferr != nil {
		log.Warn("ffmpeg not found, MP3 downloads are disabled", zap.Error(ferr))
	}

	base := cfg.TempDir
	if base == "" && cacheTemp {
		if b, err := dirs.TempBaseDir(); err == nil {
			base = b
		}
	}
	temp, err := tempfile.New(base, log)
	if err != nil {
		return nil, &ExitError{Code: ExitStorageError, Err: err}
	}

	opts := []pipeline.Option{
		pipeline.WithDownloaderPath(dlPath),
		pipeline.WithFFmpegPath(ff.Path),
		pipeline.WithTempManager(temp),
		pipeline.WithLogger(log),
		pipeline.WithCleanupDelay(cfg.CleanupDelay),
	}
	if cfg.Verbose {
		opts = append(opts, pipeline.WithTrace(func(line string) {
			log.Debug("exec", zap.String("cmd", line))
		}))
	}

	return &env{
		cfg:    cfg,
		log:    log,
		dlPath: dlPath,
		ffmpeg: ff,
		temp:   temp,
		svc:    pipeline.NewService(opts...),
	}, nil
}

func (e *env) close() {
	if err := e.temp.Shutdown(); err != nil {
		e.log.Warn("temp cleanup failed", zap.Error(err))
	}
	_ = e.log.Sync()
}
