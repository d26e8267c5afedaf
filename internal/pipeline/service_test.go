package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"snipserve/internal/mediaerr"
	"snipserve/internal/model"
	"snipserve/internal/progress"
	"snipserve/internal/tempfile"
	"snipserve/internal/util"
)

const (
	dlPath     = "yt-dlp"
	ffmpegPath = "ffmpeg"
)

// fakeRunner simulates yt-dlp and ffmpeg.
type fakeRunner struct {
	t       *testing.T
	tracker *progress.Tracker

	dumpJSON   func(expr string) string // stdout for --dump-json, keyed by -f
	title      string
	fetchExt   string // extension the fake download gets; m4a when empty
	ffmpegFail bool

	mu       sync.Mutex
	calls    []util.CmdSpec
	statuses map[string]progress.Status // tracker status observed per tool
}

func (f *fakeRunner) Run(ctx context.Context, spec util.CmdSpec) (util.CmdResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, spec)
	if f.statuses == nil {
		f.statuses = make(map[string]progress.Status)
	}
	f.mu.Unlock()

	switch spec.Path {
	case dlPath:
		if contains(spec.Args, "--dump-json") {
			return util.CmdResult{Stdout: []byte(f.dumpJSON(argAfter(spec.Args, "-f")))}, nil
		}
		tmpl := argAfter(spec.Args, "-o")
		ext := f.fetchExt
		if ext == "" {
			ext = "m4a"
		}
		out := strings.Replace(tmpl, "%(ext)s", ext, 1)
		if err := os.WriteFile(out, []byte("downloaded-audio"), 0o644); err != nil {
			f.t.Fatalf("write fake download: %v", err)
		}
		spec.StdoutLine("snipserve-progress 512 1024 NA 256 2")
		spec.StdoutLine("[download] 100.0% of 1.00KiB at 256.00B/s ETA 00:00")
		spec.StdoutLine("snipserve-title " + f.title)
		f.record(dlPath)
		return util.CmdResult{}, nil

	case ffmpegPath:
		f.record(ffmpegPath)
		out := spec.Args[len(spec.Args)-1]
		if in := argAfter(spec.Args, "-i"); in == out {
			return util.CmdResult{Code: 1, Stderr: []byte("Output same as Input #0 - exiting")}, errors.New("command failed (exit 1)")
		}
		if spec.StdoutLine != nil {
			spec.StdoutLine("out_time_us=1500000")
			spec.StdoutLine("speed=3.2x")
			spec.StdoutLine("progress=end")
		}
		if f.ffmpegFail {
			_ = os.WriteFile(out, []byte("half"), 0o644)
			return util.CmdResult{Code: 1, Stderr: []byte("Invalid data found when processing input")}, errors.New("command failed (exit 1)")
		}
		return util.CmdResult{}, os.WriteFile(out, []byte("ID3-mp3-bytes"), 0o644)
	}
	f.t.Fatalf("unexpected binary %q", spec.Path)
	return util.CmdResult{}, nil
}

func (f *fakeRunner) record(tool string) {
	if f.tracker == nil {
		return
	}
	f.mu.Lock()
	f.statuses[tool] = f.tracker.Snapshot().Status
	f.mu.Unlock()
}

func (f *fakeRunner) exprs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if c.Path == dlPath {
			out = append(out, argAfter(c.Args, "-f"))
		}
	}
	return out
}

func contains(ss []string, q string) bool {
	for _, s := range ss {
		if s == q {
			return true
		}
	}
	return false
}

func argAfter(args []string, flag string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func newTemp(t *testing.T) *tempfile.Manager {
	t.Helper()
	m, err := tempfile.New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range ents {
		names = append(names, e.Name())
	}
	return names
}

func newTracker(id string) *progress.Tracker {
	tr := progress.NewTracker()
	tr.Reset(id)
	return tr
}

func TestExecute_AudioLifecycle(t *testing.T) {
	tr := newTracker("job-1")
	runner := &fakeRunner{t: t, tracker: tr, title: "My Song (Live)"}
	temp := newTemp(t)
	svc := NewService(
		WithDownloaderPath(dlPath),
		WithFFmpegPath(ffmpegPath),
		WithRunner(runner),
		WithTempManager(temp),
		WithCleanupDelay(time.Hour),
	)

	res, err := svc.Execute(context.Background(), model.MediaRequest{
		URL: "https://example.com/watch/1", Format: model.FormatAudio, JobID: "job-1",
	}, tr)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if runner.statuses[dlPath] != progress.StatusDownloading {
		t.Errorf("status during fetch = %q", runner.statuses[dlPath])
	}
	if runner.statuses[ffmpegPath] != progress.StatusConverting {
		t.Errorf("status during transcode = %q", runner.statuses[ffmpegPath])
	}
	st := tr.Snapshot()
	if st.Status != progress.StatusFinished || st.Progress != 100 {
		t.Errorf("final state = %+v", st)
	}

	if res.Filename != "My Song Live.mp3" {
		t.Errorf("Filename = %q", res.Filename)
	}
	if res.ContentType != ContentTypeAudio || res.JobID != "job-1" {
		t.Errorf("result = %+v", res)
	}
	if got := dirEntries(t, temp.Dir()); len(got) != 1 || !strings.HasSuffix(got[0], ".mp3") {
		t.Errorf("temp dir before close = %v, want only the mp3", got)
	}
	if temp.Pending() != 1 {
		t.Errorf("pending cleanups = %d, want 1", temp.Pending())
	}

	body, _ := io.ReadAll(res.Body)
	if string(body) != "ID3-mp3-bytes" || res.Size != int64(len(body)) {
		t.Errorf("body = %q size = %d", body, res.Size)
	}
	if err := res.Body.Close(); err != nil {
		t.Fatal(err)
	}
	if got := dirEntries(t, temp.Dir()); len(got) != 0 {
		t.Errorf("temp dir after close = %v", got)
	}
	if temp.Pending() != 0 {
		t.Errorf("deferred cleanup still pending after close")
	}
}

func TestExecute_AudioSourceAlreadyMP3(t *testing.T) {
	tr := newTracker("job-mp3")
	runner := &fakeRunner{t: t, tracker: tr, title: "Podcast 12", fetchExt: "mp3"}
	temp := newTemp(t)
	svc := NewService(
		WithDownloaderPath(dlPath),
		WithFFmpegPath(ffmpegPath),
		WithRunner(runner),
		WithTempManager(temp),
		WithCleanupDelay(time.Hour),
	)

	res, err := svc.Execute(context.Background(), model.MediaRequest{
		URL: "https://soundcloud.com/a/b", Format: model.FormatAudio, JobID: "job-mp3",
	}, tr)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	defer res.Body.Close()

	for _, c := range runner.calls {
		if c.Path == ffmpegPath && argAfter(c.Args, "-i") == c.Args[len(c.Args)-1] {
			t.Fatalf("ffmpeg input and output share a path: %v", c.Args)
		}
	}
	if st := tr.Snapshot(); st.Status != progress.StatusFinished {
		t.Errorf("status = %q", st.Status)
	}
	if got := dirEntries(t, temp.Dir()); len(got) != 1 || !strings.HasSuffix(got[0], outputSuffix) {
		t.Errorf("temp dir = %v, want only the converted file", got)
	}
	body, _ := io.ReadAll(res.Body)
	if string(body) != "ID3-mp3-bytes" {
		t.Errorf("body = %q, want the converted output", body)
	}
}

func TestExecute_AudioLogsTranscodeProgress(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tr := newTracker("job-log")
	runner := &fakeRunner{t: t, tracker: tr, title: "x"}
	svc := NewService(
		WithDownloaderPath(dlPath),
		WithFFmpegPath(ffmpegPath),
		WithRunner(runner),
		WithTempManager(newTemp(t)),
		WithLogger(zap.New(core)),
	)

	res, err := svc.Execute(context.Background(), model.MediaRequest{URL: "https://example.com/a", Format: model.FormatAudio, JobID: "job-log"}, tr)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	defer res.Body.Close()

	ticks := logs.FilterMessage("transcode progress").All()
	if len(ticks) != 1 {
		t.Fatalf("transcode progress entries = %d, want 1", len(ticks))
	}
	fields := ticks[0].ContextMap()
	if fields["speed"] != "3.2x" || fields["done"] != true || fields["job_id"] != "job-log" {
		t.Errorf("fields = %v", fields)
	}
}

func TestExecute_AudioFailures(t *testing.T) {
	tests := []struct {
		name       string
		ffmpeg     string
		ffmpegFail bool
		url        string
		wantKind   error
	}{
		{name: "unparseable url", ffmpeg: ffmpegPath, url: "::not a url", wantKind: mediaerr.ErrResolution},
		{name: "ffmpeg missing", ffmpeg: "", url: "https://example.com/a", wantKind: mediaerr.ErrConversion},
		{name: "ffmpeg fails", ffmpeg: ffmpegPath, ffmpegFail: true, url: "https://example.com/a", wantKind: mediaerr.ErrConversion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTracker("j")
			runner := &fakeRunner{t: t, tracker: tr, title: "x", ffmpegFail: tt.ffmpegFail}
			temp := newTemp(t)
			svc := NewService(
				WithDownloaderPath(dlPath),
				WithFFmpegPath(tt.ffmpeg),
				WithRunner(runner),
				WithTempManager(temp),
			)
			_, err := svc.Execute(context.Background(), model.MediaRequest{URL: tt.url, Format: model.FormatAudio}, tr)
			if !errors.Is(err, tt.wantKind) {
				t.Fatalf("err = %v, want %v", err, tt.wantKind)
			}
			if st := tr.Snapshot(); st.Status != progress.StatusError {
				t.Errorf("status = %q, want error", st.Status)
			}
			if got := dirEntries(t, temp.Dir()); len(got) != 0 {
				t.Errorf("temp files left behind: %v", got)
			}
		})
	}
}

func TestExecute_VideoStreams(t *testing.T) {
	payload := bytes.Repeat([]byte("m"), 20_000)
	var gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	tr := newTracker("v")
	runner := &fakeRunner{t: t, dumpJSON: func(string) string {
		return fmt.Sprintf(`{"title":"Clip: One","url":%q,"http_headers":{"Cookie":"k=v"}}`, srv.URL)
	}}
	svc := NewService(WithDownloaderPath(dlPath), WithRunner(runner))

	res, err := svc.Execute(context.Background(), model.MediaRequest{
		URL: "https://example.com/v", Format: model.FormatVideo, Quality: "720p",
	}, tr)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	defer res.Body.Close()

	if res.Filename != "Clip One_720p.mp4" || res.ContentType != ContentTypeVideo {
		t.Errorf("result = %+v", res)
	}
	if exprs := runner.exprs(); len(exprs) != 1 || strings.Contains(exprs[0], "+") {
		t.Errorf("expressions = %v, want one muxed expression", exprs)
	}
	if st := tr.Snapshot(); st.Status != progress.StatusStarting {
		t.Errorf("status before streaming = %q", st.Status)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil || !bytes.Equal(body, payload) {
		t.Fatalf("body mismatch: %d bytes, %v", len(body), err)
	}
	if gotCookie != "k=v" {
		t.Errorf("resolver headers not forwarded: Cookie=%q", gotCookie)
	}
	if st := tr.Snapshot(); st.Status != progress.StatusFinished || st.Progress != 100 {
		t.Errorf("state after EOF = %+v", st)
	}
}

func TestExecute_VideoMergeFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "muxed")
	}))
	defer srv.Close()

	runner := &fakeRunner{t: t, dumpJSON: func(expr string) string {
		if strings.Contains(expr, "+") {
			return `{"title":"T","requested_formats":[{"url":"https://cdn/v","acodec":"none"},{"url":"https://cdn/a","vcodec":"none"}]}`
		}
		return fmt.Sprintf(`{"title":"T","url":%q}`, srv.URL)
	}}
	svc := NewService(WithDownloaderPath(dlPath), WithFFmpegPath(ffmpegPath), WithRunner(runner))

	res, err := svc.Execute(context.Background(), model.MediaRequest{URL: "https://example.com/v", Format: model.FormatVideo, Quality: "best"}, newTracker("m"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	defer res.Body.Close()

	exprs := runner.exprs()
	if len(exprs) != 2 || !strings.Contains(exprs[0], "+") || strings.Contains(exprs[1], "+") {
		t.Errorf("expressions = %v", exprs)
	}
	if b, _ := io.ReadAll(res.Body); string(b) != "muxed" {
		t.Errorf("body = %q", b)
	}
}

func TestExecute_VideoUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	tr := newTracker("e")
	runner := &fakeRunner{t: t, dumpJSON: func(string) string { return fmt.Sprintf(`{"title":"T","url":%q}`, srv.URL) }}
	svc := NewService(WithDownloaderPath(dlPath), WithRunner(runner))

	_, err := svc.Execute(context.Background(), model.MediaRequest{URL: "https://example.com/v"}, tr)
	if !errors.Is(err, mediaerr.ErrResolution) {
		t.Fatalf("err = %v, want resolution", err)
	}
	if st := tr.Snapshot(); st.Status != progress.StatusError {
		t.Errorf("status = %q", st.Status)
	}
}

func TestService_InfoAndFormats(t *testing.T) {
	runner := &fakeRunner{t: t, dumpJSON: func(string) string {
		return `{"title":"","uploader":"Up","view_count":7,"formats":[{"ext":"mp4","height":480,"acodec":"mp4a","vcodec":"avc1"}]}`
	}}
	svc := NewService(WithDownloaderPath(dlPath), WithRunner(runner))

	info, err := svc.Info(context.Background(), "https://example.com/v")
	if err != nil {
		t.Fatal(err)
	}
	if info.Title != model.UnknownTitle || info.Author != "Up" || info.Views != 7 {
		t.Errorf("info = %+v", info)
	}

	opts, err := svc.Formats(context.Background(), "https://example.com/v")
	if err != nil {
		t.Fatal(err)
	}
	if len(opts) != 2 || opts[0].Height != 480 || opts[1] != model.BestOption {
		t.Errorf("formats = %+v", opts)
	}
	if svc.TranscoderAvailable() {
		t.Error("no ffmpeg configured, but transcoder reported available")
	}
}
