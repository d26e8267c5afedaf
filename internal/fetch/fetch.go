// Package fetch opens upstream media URLs and meters the bytes flowing through them.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"snipserve/internal/mediaerr"
)

// ChunkSize is the copy buffer size between upstream and client.
const ChunkSize = 8 * 1024

// UserAgent mimics a desktop Chrome so platforms do not reject the request outright.
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// BrowserHeaders returns the default request headers for media fetches.
func BrowserHeaders() http.Header {
	h := make(http.Header)
	h.Set("User-Agent", UserAgent)
	h.Set("Accept", "*/*")
	h.Set("Accept-Language", "en-us,en;q=0.5")
	h.Set("Origin", "https://www.youtube.com")
	h.Set("Referer", "https://www.youtube.com/")
	h.Set("Range", "bytes=0-")
	return h
}

var (
	defaultOnce   sync.Once
	defaultClient *http.Client
)

// DefaultHTTPClient returns the shared client used for media fetches. It has
// no overall timeout since bodies stream for as long as the media lasts.
func DefaultHTTPClient() *http.Client {
	defaultOnce.Do(func() {
		defaultClient = &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          50,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
			},
		}
	})
	return defaultClient
}

// Client opens media streams.
type Client struct {
	http *http.Client
}

// NewClient wraps hc, or the shared default client when hc is nil.
func NewClient(hc *http.Client) *Client {
	if hc == nil {
		hc = DefaultHTTPClient()
	}
	return &Client{http: hc}
}

// Stream is an open upstream response body.
type Stream struct {
	Body        io.ReadCloser
	Size        int64 // bytes in Body, -1 when unknown
	ContentType string
}

// Open issues a GET for rawURL with the browser headers, overridden by extra.
// Redirects are followed; 200 and 206 are accepted.
func (c *Client) Open(ctx context.Context, rawURL string, extra map[string]string) (*Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, mediaerr.Resolution("open stream", err)
	}
	req.Header = BrowserHeaders()
	for k, v := range extra {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, mediaerr.Resolution("open stream", err)
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
	case http.StatusNotFound, http.StatusGone, http.StatusRequestedRangeNotSatisfiable:
		resp.Body.Close()
		return nil, mediaerr.FormatUnavailable("open stream", fmt.Errorf("upstream returned %s", resp.Status))
	default:
		resp.Body.Close()
		return nil, mediaerr.Resolution("open stream", fmt.Errorf("upstream returned %s", resp.Status))
	}

	return &Stream{
		Body:        resp.Body,
		Size:        streamSize(resp),
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// streamSize prefers Content-Length and falls back to the total in Content-Range.
func streamSize(resp *http.Response) int64 {
	if resp.ContentLength >= 0 {
		return resp.ContentLength
	}
	cr := resp.Header.Get("Content-Range")
	if i := strings.LastIndexByte(cr, '/'); i >= 0 {
		if n, err := strconv.ParseInt(cr[i+1:], 10, 64); err == nil {
			return n
		}
	}
	return -1
}

// Copy moves src to dst in ChunkSize pieces, flushing after each write when
// dst supports it. A failed write means the client went away and is reported
// as a client-disconnect error; read failures are returned as-is.
func Copy(dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, ChunkSize)
	flusher, _ := dst.(http.Flusher)
	var written int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			written += int64(w)
			if werr == nil && w < n {
				werr = io.ErrShortWrite
			}
			if werr != nil {
				return written, mediaerr.ClientDisconnect("stream", werr)
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return written, nil
			}
			if errors.Is(rerr, context.Canceled) {
				return written, mediaerr.ClientDisconnect("stream", rerr)
			}
			return written, rerr
		}
	}
}
