package resolver

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"snipserve/internal/model"
)

func TestBuildFormatList(t *testing.T) {
	raw := []RawFormat{
		{Ext: "webm", Height: 1080, HasAudio: false, HasVideo: true, Size: 10},
		{Ext: "mp4", Height: 360, HasAudio: true, HasVideo: true, Size: 300},
		{Ext: "mp4", Height: 1080, HasAudio: false, HasVideo: true, Size: 0},
		{Ext: "mp4", Height: 720, HasAudio: true, HasVideo: true, Size: 700},
		{Ext: "mp4", Height: 720, HasAudio: true, HasVideo: true, Size: 999},
		{Ext: "m4a", Height: 0, HasAudio: true, HasVideo: false, Size: 50},
		{Ext: "mp4", Height: 0, HasAudio: true, HasVideo: true},
	}

	tests := []struct {
		name       string
		transcoder bool
		want       []model.FormatOption
	}{
		{
			name:       "with transcoder",
			transcoder: true,
			want: []model.FormatOption{
				{Height: 1080, Quality: "1080p", FileSize: model.UnknownSize},
				{Height: 720, Quality: "720p", FileSize: 700},
				{Height: 360, Quality: "360p", FileSize: 300},
				model.BestOption,
			},
		},
		{
			name: "without transcoder drops video-only",
			want: []model.FormatOption{
				{Height: 720, Quality: "720p", FileSize: 700},
				{Height: 360, Quality: "360p", FileSize: 300},
				model.BestOption,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildFormatList(raw, tt.transcoder)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %+v\nwant %+v", got, tt.want)
			}
		})
	}
}

func TestBuildFormatList_Empty(t *testing.T) {
	got := BuildFormatList(nil, false)
	if len(got) != 1 || got[0] != model.BestOption {
		t.Errorf("got %+v, want only best", got)
	}
}

func TestSelectDownloadedFile(t *testing.T) {
	tests := []struct {
		name      string
		files     []string
		token     string
		wantFile  string
		wantError bool
	}{
		{name: "single file", files: []string{"tok.webm"}, token: "tok", wantFile: "tok.webm"},
		{name: "prefers m4a", files: []string{"tok.webm", "tok.m4a"}, token: "tok", wantFile: "tok.m4a"},
		{name: "skips partial", files: []string{"tok.m4a.part", "tok.webm"}, token: "tok", wantFile: "tok.webm"},
		{name: "only partial", files: []string{"tok.webm.part", "tok.webm.ytdl"}, token: "tok", wantError: true},
		{name: "other token ignored", files: []string{"other.m4a"}, token: "tok", wantError: true},
		{name: "unknown extension still found", files: []string{"tok.xyz"}, token: "tok", wantFile: "tok.xyz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, f := range tt.files {
				if err := os.WriteFile(filepath.Join(dir, f), []byte("x"), 0o644); err != nil {
					t.Fatal(err)
				}
			}
			got, err := SelectDownloadedFile(dir, tt.token)
			if tt.wantError {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("SelectDownloadedFile: %v", err)
			}
			if filepath.Base(got) != tt.wantFile {
				t.Errorf("got %q, want %q", filepath.Base(got), tt.wantFile)
			}
		})
	}
}
