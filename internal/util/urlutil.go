package util

import (
	"fmt"
	"net/url"
	"strings"
)

type Platform string

const (
	PlatformYouTube Platform = "youtube"
	PlatformOther   Platform = "other"
)

// ValidateURL parses raw and checks that it is an absolute http(s) URL with a host.
// A bare host such as "youtu.be/abc" is accepted and gets an https scheme.
func ValidateURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("no URL provided")
	}
	u, err := url.Parse(raw)
	if err == nil && u.Scheme == "" && u.Host == "" {
		if u2, e2 := url.Parse("https://" + raw); e2 == nil {
			u = u2
		}
	}
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid URL %q", raw)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, fmt.Errorf("invalid URL %q: unsupported scheme %q", raw, u.Scheme)
	}
	return u, nil
}

// DetectPlatform reports which extractor family the URL belongs to.
// Anything yt-dlp might handle that is not YouTube is PlatformOther.
func DetectPlatform(u *url.URL) Platform {
	switch normalizedHost(u) {
	case "youtube.com", "m.youtube.com", "music.youtube.com", "youtu.be", "youtube-nocookie.com":
		return PlatformYouTube
	default:
		return PlatformOther
	}
}

// YouTubeID extracts the video id from youtu.be and youtube.com URLs
// (watch, embed, v and shorts forms). It returns "" when none is present.
func YouTubeID(u *url.URL) string {
	host := normalizedHost(u)
	switch host {
	case "youtu.be":
		return strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)[0]
	case "youtube.com", "m.youtube.com", "music.youtube.com", "youtube-nocookie.com":
		if u.Path == "/watch" {
			return u.Query().Get("v")
		}
		for _, p := range []string{"/embed/", "/v/", "/shorts/"} {
			if strings.HasPrefix(u.Path, p) {
				return strings.SplitN(strings.TrimPrefix(u.Path, p), "/", 2)[0]
			}
		}
	}
	return ""
}

func normalizedHost(u *url.URL) string {
	if u == nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
