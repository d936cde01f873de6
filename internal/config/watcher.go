package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// ReloadFunc receives a config edit that validated and changed at least one
// setting.
type ReloadFunc func(old, new *Config, d ConfigDiff)

// Watcher re-reads a config file on an interval. Edits that fail to parse or
// validate are logged and ignored; [Watcher.Current] keeps the last good one.
type Watcher struct {
	path     string
	interval time.Duration
	onReload ReloadFunc

	mu       sync.Mutex
	current  *Config
	sum      [sha256.Size]byte
	rejected [sha256.Size]byte // last content that failed to load
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets how often the file is re-read. Default: 5s.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads path once and returns a watcher for it. Nothing is polled
// until [Watcher.Run]. onReload may be nil.
func NewWatcher(path string, onReload ReloadFunc, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{path: path, interval: 5 * time.Second, onReload: onReload}
	for _, opt := range opts {
		opt(w)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: watch %q: %w", path, err)
	}
	cfg, err := parse(path, data)
	if err != nil {
		return nil, err
	}
	w.current, w.sum = cfg, sha256.Sum256(data)
	return w, nil
}

// Current returns the last config that loaded successfully.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run re-reads the file every interval until ctx is done. It always returns
// nil so it can sit in an errgroup next to the server.
func (w *Watcher) Run(ctx context.Context) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := w.Reload(); err != nil {
				slog.Warn("config: reload failed, keeping previous", "path", w.path, "err", err)
			}
		}
	}
}

// Reload reads the file now. It reports whether a changed config was handed
// to the reload callback.
func (w *Watcher) Reload() (bool, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return false, fmt.Errorf("config: watch %q: %w", w.path, err)
	}
	sum := sha256.Sum256(data)

	w.mu.Lock()
	seen := sum == w.sum || sum == w.rejected
	w.mu.Unlock()
	if seen {
		return false, nil
	}

	cfg, err := parse(w.path, data)
	if err != nil {
		w.mu.Lock()
		w.rejected = sum
		w.mu.Unlock()
		return false, err
	}

	w.mu.Lock()
	old := w.current
	w.current, w.sum = cfg, sum
	w.mu.Unlock()

	d := Diff(old, cfg)
	if d.Empty() {
		// Comments or formatting only.
		return false, nil
	}
	slog.Info("config: reloaded", "path", w.path, "hot", d.HotReloadable(), "restart", d.RestartRequired)
	if w.onReload != nil {
		w.onReload(old, cfg, d)
	}
	return true, nil
}

func parse(path string, data []byte) (*Config, error) {
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}
