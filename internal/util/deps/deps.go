package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// FindDownloader returns the path to yt-dlp or youtube-dl.
// If customPath is non-empty, it tries that path or looks it up in PATH.
func FindDownloader(customPath string) (string, error) {
	if customPath != "" {
		if _, err := os.Stat(customPath); err == nil {
			return customPath, nil
		}
		if p, err := exec.LookPath(customPath); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("could not find downloader at %q", customPath)
	}
	if p, err := exec.LookPath("yt-dlp"); err == nil {
		return p, nil
	}
	if p, err := exec.LookPath("youtube-dl"); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("could not find yt-dlp or youtube-dl in PATH. Please install yt-dlp")
}

// FFmpegLocation describes where ffmpeg was found.
type FFmpegLocation struct {
	Path   string
	InPATH bool
}

// lookPath and executable are swapped in tests.
var (
	lookPath   = exec.LookPath
	executable = os.Executable
)

// FindFFmpeg resolves ffmpeg. A non-empty customPath wins; otherwise PATH is
// searched, then an ffmpeg bundled next to the running executable
// (<exe dir>/ffmpeg/bin/ffmpeg or <exe dir>/ffmpeg).
func FindFFmpeg(customPath string) (FFmpegLocation, error) {
	if customPath != "" {
		if isFile(customPath) {
			return FFmpegLocation{Path: customPath}, nil
		}
		if p, err := lookPath(customPath); err == nil {
			return FFmpegLocation{Path: p, InPATH: true}, nil
		}
		return FFmpegLocation{}, fmt.Errorf("could not find ffmpeg at %q", customPath)
	}
	if p, err := lookPath("ffmpeg"); err == nil {
		return FFmpegLocation{Path: p, InPATH: true}, nil
	}
	if exe, err := executable(); err == nil {
		for _, p := range AdjacentFFmpegCandidates(filepath.Dir(exe)) {
			if isFile(p) {
				return FFmpegLocation{Path: p}, nil
			}
		}
	}
	return FFmpegLocation{}, fmt.Errorf("could not find ffmpeg in PATH. Please install ffmpeg")
}

// AdjacentFFmpegCandidates lists the bundled ffmpeg locations checked under dir, in order.
func AdjacentFFmpegCandidates(dir string) []string {
	name := "ffmpeg"
	if runtime.GOOS == "windows" {
		name = "ffmpeg.exe"
	}
	return []string{
		filepath.Join(dir, "ffmpeg", "bin", name),
		filepath.Join(dir, name),
	}
}

func isFile(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}
