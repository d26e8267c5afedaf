// Package resolver turns a page URL into metadata, a direct media URL, or a
// local file, using yt-dlp first and falling back to other backends.
package resolver

import (
	"context"
	"errors"
	"net/url"
	"time"

	"go.uber.org/zap"

	"snipserve/internal/mediaerr"
	"snipserve/internal/model"
	"snipserve/internal/progress"
	"snipserve/internal/util"
)

// Selection is what the caller wants out of a source.
type Selection struct {
	Expr       string // yt-dlp format expression
	Quality    string // label the expression was built from
	Transcoder bool   // whether ffmpeg is available to merge or convert
}

// Backend is one way of reaching a media source.
type Backend interface {
	Name() string
	Supports(u *url.URL) bool
	Metadata(ctx context.Context, rawURL string) (model.VideoInfo, error)
	Formats(ctx context.Context, rawURL string) ([]RawFormat, error)
	Stream(ctx context.Context, rawURL string, sel Selection) (model.ResolvedStream, error)
	Fetch(ctx context.Context, rawURL string, sel Selection, dir, token string, onProgress func(progress.Sample)) (model.FetchedFile, error)
}

const (
	DefaultAttempts = 3
	DefaultBackoff  = 200 * time.Millisecond
)

// Resolver runs every operation under one retry policy, cycling through the
// backends that support the URL.
type Resolver struct {
	backends []Backend
	attempts int
	backoff  time.Duration
	log      *zap.Logger
}

// New returns a resolver over backends, tried in the given order.
func New(log *zap.Logger, backends ...Backend) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		backends: backends,
		attempts: DefaultAttempts,
		backoff:  DefaultBackoff,
		log:      log,
	}
}

// Metadata returns title, author and friends for rawURL.
func (r *Resolver) Metadata(ctx context.Context, rawURL string) (model.VideoInfo, error) {
	return do(ctx, r, "metadata", rawURL, func(b Backend, u string) (model.VideoInfo, error) {
		return b.Metadata(ctx, u)
	})
}

// ListFormats returns the mp4 heights available for rawURL, tallest first,
// followed by the "best" entry.
func (r *Resolver) ListFormats(ctx context.Context, rawURL string, transcoderAvailable bool) ([]model.FormatOption, error) {
	raw, err := do(ctx, r, "list formats", rawURL, func(b Backend, u string) ([]RawFormat, error) {
		return b.Formats(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	return BuildFormatList(raw, transcoderAvailable), nil
}

// ResolveStream returns a single direct URL carrying both audio and video.
func (r *Resolver) ResolveStream(ctx context.Context, rawURL string, sel Selection) (model.ResolvedStream, error) {
	return do(ctx, r, "resolve stream", rawURL, func(b Backend, u string) (model.ResolvedStream, error) {
		return b.Stream(ctx, u, sel)
	})
}

// FetchToFile downloads the selection into dir under a name starting with token.
func (r *Resolver) FetchToFile(ctx context.Context, rawURL string, sel Selection, dir, token string, onProgress func(progress.Sample)) (model.FetchedFile, error) {
	return do(ctx, r, "fetch", rawURL, func(b Backend, u string) (model.FetchedFile, error) {
		return b.Fetch(ctx, u, sel, dir, token, onProgress)
	})
}

func do[T any](ctx context.Context, r *Resolver, op, rawURL string, call func(Backend, string) (T, error)) (T, error) {
	var zero T
	u, err := util.ValidateURL(rawURL)
	if err != nil {
		return zero, mediaerr.Resolution(op, err)
	}
	normalized := u.String()

	var candidates []Backend
	for _, b := range r.backends {
		if b.Supports(u) {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return zero, mediaerr.Resolution(op, errors.New("no backend supports this URL"))
	}

	exhausted := make(map[string]bool)
	var lastErr error
	for attempt := 0; attempt < r.attempts; attempt++ {
		b := pick(candidates, exhausted, attempt)
		if b == nil {
			break
		}
		if attempt > 0 {
			if err := sleep(ctx, r.backoff<<(attempt-1)); err != nil {
				return zero, mediaerr.ClientDisconnect(op, err)
			}
		}

		v, err := call(b, normalized)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, mediaerr.ClientDisconnect(op, ctx.Err())
		}
		lastErr = err
		r.log.Warn("resolver attempt failed",
			zap.String("op", op),
			zap.String("backend", b.Name()),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		if errors.Is(err, mediaerr.ErrFormatUnavailable) {
			exhausted[b.Name()] = true
		}
	}

	if mediaerr.Typed(lastErr) {
		return zero, lastErr
	}
	return zero, mediaerr.Resolution(op, lastErr)
}

// pick returns the backend for attempt, skipping exhausted ones, or nil when
// none are left.
func pick(candidates []Backend, exhausted map[string]bool, attempt int) Backend {
	live := candidates[:0:0]
	for _, b := range candidates {
		if !exhausted[b.Name()] {
			live = append(live, b)
		}
	}
	if len(live) == 0 {
		return nil
	}
	return live[attempt%len(live)]
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
