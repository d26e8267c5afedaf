package resolver

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"
)

// SelectDownloadedFile finds the file yt-dlp wrote for token in dir.
// Partial and sidecar files are ignored; among the rest, audio containers
// come first, then common playable video formats.
func SelectDownloadedFile(dir, token string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, token+".*"))
	if err != nil {
		return "", err
	}
	candidates := matches[:0]
	for _, m := range matches {
		switch strings.ToLower(filepath.Ext(m)) {
		case ".part", ".ytdl", ".json", ".tmp":
			continue
		}
		candidates = append(candidates, m)
	}
	if len(candidates) == 0 {
		return "", errors.New("no output file found")
	}

	// Sort by extension priority
	sort.SliceStable(candidates, func(i, j int) bool {
		pri := extPriority(filepath.Ext(candidates[i]))
		prj := extPriority(filepath.Ext(candidates[j]))
		if pri == prj {
			return candidates[i] < candidates[j]
		}
		return pri < prj
	})

	return candidates[0], nil
}

// extPriority returns a priority score for file extensions (lower = better).
func extPriority(ext string) int {
	switch strings.ToLower(ext) {
	case ".m4a":
		return 0
	case ".mp3":
		return 1
	case ".opus", ".ogg":
		return 2
	case ".mp4":
		return 3
	case ".webm":
		return 4
	case ".mkv":
		return 5
	default:
		return 100
	}
}