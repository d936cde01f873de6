package config_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/wavecue/internal/config"
)

const baseYAML = `
server:
  log_level: info
canvas:
  width: 800
cache:
  backend: memory
`

type reload struct {
	old, new *config.Config
	diff     config.ConfigDiff
}

// watchFile writes body to a temp config and watches it, collecting every
// reload callback.
func watchFile(t *testing.T, body string, opts ...config.WatcherOption) (*config.Watcher, string, *[]reload) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wavecue.yaml")
	rewrite(t, path, body)

	var got []reload
	w, err := config.NewWatcher(path, func(old, new *config.Config, d config.ConfigDiff) {
		got = append(got, reload{old, new, d})
	}, opts...)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	return w, path, &got
}

func rewrite(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestWatcher_LoadsOnCreate(t *testing.T) {
	w, _, got := watchFile(t, baseYAML)

	cfg := w.Current()
	if cfg.Server.LogLevel != config.LogInfo || cfg.Canvas.Width != 800 {
		t.Errorf("Current = %+v / %+v", cfg.Server, cfg.Canvas)
	}
	if len(*got) != 0 {
		t.Errorf("callback fired %d times on create", len(*got))
	}
}

func TestWatcher_MissingFile(t *testing.T) {
	if _, err := config.NewWatcher(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestWatcher_RejectsInvalidInitialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wavecue.yaml")
	rewrite(t, path, "server:\n  log_level: loud\n")
	if _, err := config.NewWatcher(path, nil); err == nil {
		t.Fatal("expected a validation error")
	}
}

func TestWatcher_ReloadReportsDiff(t *testing.T) {
	w, path, got := watchFile(t, baseYAML)

	rewrite(t, path, `
server:
  log_level: debug
canvas:
  width: 1024
cache:
  backend: memory
`)
	changed, err := w.Reload()
	if err != nil || !changed {
		t.Fatalf("Reload = %v, %v; want true, nil", changed, err)
	}
	if len(*got) != 1 {
		t.Fatalf("callback fired %d times, want 1", len(*got))
	}
	r := (*got)[0]
	if r.old.Server.LogLevel != config.LogInfo || r.new.Server.LogLevel != config.LogDebug {
		t.Errorf("old/new log level = %s/%s", r.old.Server.LogLevel, r.new.Server.LogLevel)
	}
	if !r.diff.LogLevelChanged || !r.diff.CanvasChanged || r.diff.NewCanvas.Width != 1024 {
		t.Errorf("diff = %+v", r.diff)
	}
	if w.Current() != r.new {
		t.Error("Current does not return the reloaded config")
	}
}

func TestWatcher_UnchangedContentIsQuiet(t *testing.T) {
	w, path, got := watchFile(t, baseYAML)

	// Same bytes.
	rewrite(t, path, baseYAML)
	if changed, err := w.Reload(); changed || err != nil {
		t.Errorf("same bytes: Reload = %v, %v", changed, err)
	}

	// Different bytes, same settings.
	rewrite(t, path, baseYAML+"# tuned for the studio monitor\n")
	if changed, err := w.Reload(); changed || err != nil {
		t.Errorf("comment edit: Reload = %v, %v", changed, err)
	}
	if len(*got) != 0 {
		t.Errorf("callback fired %d times", len(*got))
	}
}

func TestWatcher_InvalidEditKeepsPrevious(t *testing.T) {
	w, path, got := watchFile(t, baseYAML)
	before := w.Current()

	rewrite(t, path, "server:\n  log_level: bananas\n")
	if _, err := w.Reload(); err == nil {
		t.Fatal("expected a validation error")
	}
	if w.Current() != before {
		t.Error("Current changed after an invalid edit")
	}
	// The same broken content is not reported twice.
	if changed, err := w.Reload(); changed || err != nil {
		t.Errorf("second Reload of broken file = %v, %v", changed, err)
	}

	// Fixing the file is picked up, and diffed against the last good config.
	rewrite(t, path, baseYAML+"editor:\n  nudge_ms: [-10, 10]\n")
	if changed, err := w.Reload(); !changed || err != nil {
		t.Fatalf("Reload after fix = %v, %v", changed, err)
	}
	d := (*got)[0].diff
	if !d.NudgeChanged || !slices.Equal(d.NewNudgeMs, []float64{-10, 10}) || d.LogLevelChanged {
		t.Errorf("diff = %+v", d)
	}
}

func TestWatcher_RestartSections(t *testing.T) {
	w, path, got := watchFile(t, baseYAML)

	rewrite(t, path, `
server:
  log_level: info
  listen_addr: ":9999"
canvas:
  width: 800
cache:
  backend: memory
`)
	if _, err := w.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	d := (*got)[0].diff
	if d.HotReloadable() {
		t.Errorf("listen address reported as hot reloadable: %+v", d)
	}
	if !slices.Contains(d.RestartRequired, "server") {
		t.Errorf("RestartRequired = %v, want server", d.RestartRequired)
	}
}

func TestWatcher_RunPollsUntilCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wavecue.yaml")
	rewrite(t, path, baseYAML)

	fired := make(chan config.ConfigDiff, 1)
	w, err := config.NewWatcher(path, func(_, _ *config.Config, d config.ConfigDiff) {
		select {
		case fired <- d:
		default:
		}
	}, config.WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	rewrite(t, path, "server:\n  log_level: warn\n")
	select {
	case d := <-fired:
		if d.NewLogLevel != config.LogWarn {
			t.Errorf("NewLogLevel = %q", d.NewLogLevel)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not pick up the edit")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
