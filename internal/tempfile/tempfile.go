// Package tempfile owns the process-wide scratch directory and every file
// created in it. Each path is removed exactly once, by whichever of the
// explicit cleanup, the stream-close hook or the deferred timer gets there first.
package tempfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"snipserve/internal/util"
)

// DefaultCleanupDelay is the fallback deletion delay for served files.
const DefaultCleanupDelay = 5 * time.Minute

// Manager allocates collision-free paths under one directory.
type Manager struct {
	dir string
	log *zap.Logger

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	closed bool
}

// New returns a Manager owning a fresh snipserve-* directory under base,
// creating base when needed. An empty base means the OS temp dir. Shutdown
// removes only the owned directory, never base itself.
func New(base string, log *zap.Logger) (*Manager, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if base != "" {
		if err := util.EnsureDir(base); err != nil {
			return nil, fmt.Errorf("create temp base: %w", err)
		}
	}
	dir, err := os.MkdirTemp(base, "snipserve-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	return &Manager{
		dir:    dir,
		log:    log,
		timers: make(map[*time.Timer]struct{}),
	}, nil
}

// Dir returns the managed directory.
func (m *Manager) Dir() string { return m.dir }

// NewToken returns a random file stem.
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Allocate returns a fresh path "<dir>/<token><suffix>". Nothing is created on disk.
func (m *Manager) Allocate(suffix string) (path, token string) {
	token = NewToken()
	return filepath.Join(m.dir, token+suffix), token
}

// Owns reports whether path lies inside the managed directory.
func (m *Manager) Owns(path string) bool {
	rel, err := filepath.Rel(m.dir, path)
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}

// Remove deletes path if it still exists. Missing files are not an error.
func (m *Manager) Remove(path string) error {
	if path == "" {
		return nil
	}
	removed, err := util.RemoveIfExists(path)
	switch {
	case err != nil:
		m.log.Warn("remove temp file", zap.String("path", path), zap.Error(err))
		return err
	case removed:
		m.log.Debug("removed temp file", zap.String("path", path))
	default:
		m.log.Debug("temp file already gone", zap.String("path", path))
	}
	return nil
}

// RemoveMatching deletes every file whose name starts with token. yt-dlp picks
// the extension, so a fetch is only known by its token until it completes.
func (m *Manager) RemoveMatching(token string) {
	if token == "" {
		return
	}
	matches, _ := filepath.Glob(filepath.Join(m.dir, token+"*"))
	for _, p := range matches {
		_ = m.Remove(p)
	}
}

// ScheduleDeferredCleanup deletes path after delay unless something already
// did. The returned func cancels the timer.
func (m *Manager) ScheduleDeferredCleanup(path string, delay time.Duration) (stop func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return func() {}
	}
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		// m.mu is held until t is assigned.
		m.mu.Lock()
		delete(m.timers, t)
		m.mu.Unlock()
		_ = m.Remove(path)
	})
	m.timers[t] = struct{}{}
	return func() {
		if t.Stop() {
			m.forget(t)
		}
	}
}

func (m *Manager) forget(t *time.Timer) {
	m.mu.Lock()
	delete(m.timers, t)
	m.mu.Unlock()
}

// Pending reports how many deferred cleanups have not fired yet.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// AttachStreamCloseCleanup wraps rc so that closing it also deletes path.
// Close is safe to call more than once; the deletion runs once.
func (m *Manager) AttachStreamCloseCleanup(rc io.ReadCloser, path string) io.ReadCloser {
	return &cleanupCloser{ReadCloser: rc, cleanup: func() error { return m.Remove(path) }}
}

type cleanupCloser struct {
	io.ReadCloser
	once    sync.Once
	cleanup func() error
	err     error
}

func (c *cleanupCloser) Close() error {
	c.once.Do(func() {
		c.err = errors.Join(c.ReadCloser.Close(), c.cleanup())
	})
	return c.err
}

// Shutdown stops pending timers and removes the whole directory.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	m.closed = true
	for t := range m.timers {
		t.Stop()
	}
	m.timers = make(map[*time.Timer]struct{})
	m.mu.Unlock()

	if err := os.RemoveAll(m.dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove temp dir: %w", err)
	}
	m.log.Info("temp dir removed", zap.String("dir", m.dir))
	return nil
}
