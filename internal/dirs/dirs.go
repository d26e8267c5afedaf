// Package dirs resolves per-user directories for snipserve.
package dirs

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

const appName = "snipserve"

// AppName returns the canonical application name for directory paths.
func AppName() string {
	return appName
}

// ConfigDir returns the app's configuration directory.
// - Linux: $XDG_CONFIG_HOME/snipserve or ~/.config/snipserve
// - macOS: ~/Library/Application Support/snipserve
// - Windows: %AppData%/snipserve (via os.UserConfigDir)
func ConfigDir() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", AppName()), nil
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, AppName()), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", AppName()), nil
	default:
		cfg, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(cfg, AppName()), nil
	}
}

// CacheDir returns the app's cache directory.
// - Linux: $XDG_CACHE_HOME/snipserve or ~/.cache/snipserve
// - macOS: ~/Library/Caches/snipserve
// - Windows: %LocalAppData%/snipserve (via os.UserCacheDir)
func CacheDir() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Caches", AppName()), nil
	case "linux":
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, AppName()), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".cache", AppName()), nil
	default:
		c, err := os.UserCacheDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(c, AppName()), nil
	}
}

// TempBaseDir is where `get` keeps its working files between runs.
func TempBaseDir() (string, error) {
	c, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(c, "temp"), nil
}

// Ensure creates the directory if it doesn't exist.
func Ensure(path string) error {
	if path == "" {
		return errors.New("empty path")
	}
	return os.MkdirAll(path, 0o755)
}
