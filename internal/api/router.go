// Package api exposes the download service over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"snipserve/internal/model"
	"snipserve/internal/pipeline"
	"snipserve/internal/progress"
	"snipserve/internal/util/deps"
)

// HeaderJobID carries the id a client passes to /api/progress?job=.
const HeaderJobID = "X-Job-ID"

// Downloader is what the handlers need from *pipeline.Service.
type Downloader interface {
	Execute(ctx context.Context, req model.MediaRequest, tr *progress.Tracker) (*pipeline.Result, error)
	Info(ctx context.Context, rawURL string) (model.VideoInfo, error)
	Formats(ctx context.Context, rawURL string) ([]model.FormatOption, error)
}

// Options configures the router.
type Options struct {
	Service   Downloader
	Registry  *progress.Registry
	FFmpeg    deps.FFmpegLocation // zero value: not installed
	StaticDir string
	RateLimit float64 // downloads per second per client IP; 0 disables
	RateBurst int
	Logger    *zap.Logger
}

type handlers struct {
	svc      Downloader
	registry *progress.Registry
	ffmpeg   deps.FFmpegLocation
	static   string
	log      *zap.Logger
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(opts Options) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	reg := opts.Registry
	if reg == nil {
		reg = progress.NewRegistry(0)
	}
	h := &handlers{
		svc:      opts.Service,
		registry: reg,
		ffmpeg:   opts.FFmpeg,
		static:   opts.StaticDir,
		log:      log,
	}

	r := gin.New()
	r.Use(recovery(log), requestLogger(log), cors())

	api := r.Group("/api")
	{
		download := []gin.HandlerFunc{}
		if opts.RateLimit > 0 {
			download = append(download, rateLimit(newIPLimiter(opts.RateLimit, opts.RateBurst)))
		}
		download = append(download, h.download)

		api.GET("/download", download...)
		api.GET("/video-info", h.videoInfo)
		api.GET("/formats", h.formats)
		api.GET("/progress", h.progress)
		api.GET("/check-ffmpeg", h.checkFFmpeg)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	h.mountStatic(r)
	return r
}
