package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"snipserve/internal/api"
	"snipserve/internal/config"
	"snipserve/internal/progress"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "serve",
		Short:         "Run the HTTP download service",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config.BindFlags(viper.GetViper(), cmd.Flags())
			e, err := newEnv(false)
			if err != nil {
				return err
			}
			defer e.close()
			return serve(cmd.Context(), e)
		},
	}
	fs := cmd.Flags()
	fs.String("addr", ":5000", "Listen address")
	fs.String("static-dir", "./static", "Directory holding index.html and assets")
	fs.Duration("cleanup-delay", 5*time.Minute, "Delete an unread MP3 this long after it is ready")
	fs.Float64("rate-limit", 2, "Downloads per second per client IP (0 disables)")
	fs.Int("rate-burst", 5, "Burst size for --rate-limit")
	fs.Duration("progress-ttl", progress.DefaultTTL, "How long finished jobs stay queryable")
	return cmd
}

func serve(ctx context.Context, e *env) error {
	if !e.cfg.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.Options{
		Service:   e.svc,
		Registry:  progress.NewRegistry(e.cfg.ProgressTTL),
		FFmpeg:    e.ffmpeg,
		StaticDir: e.cfg.StaticDir,
		RateLimit: e.cfg.RateLimit,
		RateBurst: e.cfg.RateBurst,
		Logger:    e.log,
	})

	// No read/write timeouts: downloads stream for as long as the media lasts.
	srv := &http.Server{
		Addr:              e.cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	e.log.Info("listening",
		zap.String("addr", e.cfg.Addr),
		zap.String("temp_dir", e.temp.Dir()),
		zap.Bool("ffmpeg", e.ffmpeg.Path != ""),
		zap.Bool("yt_dlp", e.dlPath != ""),
	)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return &ExitError{Code: ExitCLIError, Err: err}
		}
		return nil
	case <-ctx.Done():
	}

	e.log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		e.log.Warn("graceful shutdown failed", zap.Error(err))
		return srv.Close()
	}
	return nil
}
