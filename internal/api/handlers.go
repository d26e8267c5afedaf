package api

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"snipserve/internal/fetch"
	"snipserve/internal/mediaerr"
	"snipserve/internal/model"
	"snipserve/internal/util/media"
)

func (h *handlers) download(c *gin.Context) {
	jobID, tr := h.registry.Start(c.Query("job"))
	c.Header(HeaderJobID, jobID)

	req := model.MediaRequest{
		URL:     c.Query("url"),
		Format:  model.ParseFormatType(c.Query("format")),
		Quality: c.DefaultQuery("quality", model.QualityBest),
		JobID:   jobID,
	}
	res, err := h.svc.Execute(c.Request.Context(), req, tr)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer res.Body.Close()

	c.Header("Content-Type", res.ContentType)
	c.Header("Content-Disposition", media.ContentDisposition(res.Filename))
	if res.Size >= 0 {
		c.Header("Content-Length", strconv.FormatInt(res.Size, 10))
	}
	c.Status(http.StatusOK)

	n, err := fetch.Copy(c.Writer, res.Body)
	log := h.log.With(zap.String("job_id", jobID), zap.Int64("bytes", n))
	switch {
	case err == nil:
		log.Info("download sent", zap.String("filename", res.Filename))
	case errors.Is(err, mediaerr.ErrClientDisconnect):
		// Nobody will read the rest, so the job ends here and can be swept.
		tr.Fail()
		log.Info("client went away mid-stream", zap.Error(err))
	default:
		tr.Fail()
		log.Warn("stream aborted", zap.Error(err))
	}
}

func (h *handlers) videoInfo(c *gin.Context) {
	info, err := h.svc.Info(c.Request.Context(), c.Query("url"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *handlers) formats(c *gin.Context) {
	list, err := h.svc.Formats(c.Request.Context(), c.Query("url"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *handlers) progress(c *gin.Context) {
	id := c.Query("job")
	if id == "" {
		c.JSON(http.StatusOK, h.registry.Latest())
		return
	}
	tr, ok := h.registry.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown job"})
		return
	}
	c.JSON(http.StatusOK, tr.Snapshot())
}

func (h *handlers) checkFFmpeg(c *gin.Context) {
	body := gin.H{"ffmpeg_installed": h.ffmpeg.Path != ""}
	if h.ffmpeg.Path != "" && !h.ffmpeg.InPATH {
		body["ffmpeg_path"] = h.ffmpeg.Path
	}
	c.JSON(http.StatusOK, body)
}

// fail reports err as 400 {"error": ...}. A client that already went away
// gets nothing.
func (h *handlers) fail(c *gin.Context, err error) {
	if errors.Is(err, mediaerr.ErrClientDisconnect) {
		h.log.Info("client went away", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.Abort()
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (h *handlers) mountStatic(r *gin.Engine) {
	if h.static == "" {
		return
	}
	r.Static("/static", h.static)
	r.GET("/", h.staticFile("index.html", http.StatusNotFound))
	r.GET("/style.css", h.staticFile("style.css", http.StatusNotFound))
	r.GET("/favicon.ico", h.staticFile("favicon.ico", http.StatusNoContent))
}

// staticFile serves name from the static dir, or answers missing when absent.
func (h *handlers) staticFile(name string, missing int) gin.HandlerFunc {
	path := filepath.Join(h.static, name)
	return func(c *gin.Context) {
		if fi, err := os.Stat(path); err != nil || fi.IsDir() {
			c.Status(missing)
			return
		}
		c.File(path)
	}
}
