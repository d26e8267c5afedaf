package resolver

import (
	"errors"
	"net/url"
	"testing"

	"github.com/kkdai/youtube/v2"

	"snipserve/internal/mediaerr"
)

var ytFormats = youtube.FormatList{
	{ItagNo: 18, MimeType: `video/mp4; codecs="avc1.42001E, mp4a.40.2"`, Height: 360, AudioChannels: 2, Bitrate: 500},
	{ItagNo: 22, MimeType: `video/mp4; codecs="avc1.64001F, mp4a.40.2"`, Height: 720, AudioChannels: 2, Bitrate: 1500},
	{ItagNo: 137, MimeType: `video/mp4; codecs="avc1.640028"`, Height: 1080, Bitrate: 4000},
	{ItagNo: 140, MimeType: `audio/mp4; codecs="mp4a.40.2"`, AudioChannels: 2, Bitrate: 128},
	{ItagNo: 251, MimeType: `audio/webm; codecs="opus"`, AudioChannels: 2, Bitrate: 160},
}

func TestPickMuxed(t *testing.T) {
	tests := []struct {
		bound    int
		wantItag int
	}{
		{bound: 0, wantItag: 22},
		{bound: 1080, wantItag: 22},
		{bound: 480, wantItag: 18},
		{bound: 360, wantItag: 18},
		{bound: 240, wantItag: 0},
	}
	for _, tt := range tests {
		f := pickMuxed(ytFormats, tt.bound)
		got := 0
		if f != nil {
			got = f.ItagNo
		}
		if got != tt.wantItag {
			t.Errorf("pickMuxed(bound=%d) = itag %d, want %d", tt.bound, got, tt.wantItag)
		}
	}
}

func TestPickAudio(t *testing.T) {
	f := pickAudio(ytFormats)
	if f == nil || f.ItagNo != 140 {
		t.Fatalf("pickAudio = %+v, want itag 140", f)
	}
	if pickAudio(youtube.FormatList{{MimeType: "video/mp4", Height: 1080}}) != nil {
		t.Error("expected nil when no format has audio")
	}
}

func TestYoutubeRawFormats(t *testing.T) {
	raw := youtubeRawFormats(ytFormats)
	opts := BuildFormatList(raw, false)
	if len(opts) != 3 || opts[0].Height != 720 || opts[1].Height != 360 {
		t.Errorf("options = %+v", opts)
	}
	if raw[3].Ext != "m4a" || raw[3].HasVideo {
		t.Errorf("audio format = %+v", raw[3])
	}
}

func TestBestThumbnail(t *testing.T) {
	th := youtube.Thumbnails{
		{URL: "small", Width: 120, Height: 90},
		{URL: "large", Width: 1280, Height: 720},
		{URL: "medium", Width: 320, Height: 180},
	}
	if got := bestThumbnail(th); got != "large" {
		t.Errorf("bestThumbnail = %q", got)
	}
	if got := bestThumbnail(nil); got != "" {
		t.Errorf("empty = %q", got)
	}
}

func TestYouTube_Supports(t *testing.T) {
	y := NewYouTube(nil)
	tests := []struct {
		raw  string
		want bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", true},
		{"https://www.youtube.com/", false},
		{"https://vimeo.com/123", false},
	}
	for _, tt := range tests {
		u, _ := url.Parse(tt.raw)
		if got := y.Supports(u); got != tt.want {
			t.Errorf("Supports(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestClassifyYouTube(t *testing.T) {
	if err := classifyYouTube("op", youtube.ErrVideoPrivate); !errors.Is(err, mediaerr.ErrFormatUnavailable) {
		t.Errorf("private video = %v", err)
	}
	if err := classifyYouTube("op", errors.New("boom")); !errors.Is(err, mediaerr.ErrResolution) {
		t.Errorf("generic = %v", err)
	}
}
