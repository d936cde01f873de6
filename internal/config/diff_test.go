package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/wavecue/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	a, b := config.Default(), config.Default()
	d := config.Diff(a, b)
	if !d.Empty() {
		t.Errorf("expected empty diff, got %+v", d)
	}
	if d.HotReloadable() {
		t.Error("empty diff should not be hot-reloadable")
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	a, b := config.Default(), config.Default()
	b.Server.LogLevel = config.LogDebug

	d := config.Diff(a, b)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("got %+v, want log level change to debug", d)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("RestartRequired: got %v, want none", d.RestartRequired)
	}
}

func TestDiff_HotReloadableFields(t *testing.T) {
	t.Parallel()
	a, b := config.Default(), config.Default()
	b.Editor.NudgeMs = []float64{-10, 10}
	b.Timeline.FollowPlayhead = true
	b.Canvas.Width = 1200
	b.Editor.DragThresholdPx = 6
	b.Playback.DriftWindowMs = 900

	d := config.Diff(a, b)
	if !d.NudgeChanged || !slices.Equal(d.NewNudgeMs, []float64{-10, 10}) {
		t.Errorf("nudge: got changed=%v %v", d.NudgeChanged, d.NewNudgeMs)
	}
	if !d.FollowChanged || !d.NewFollowPlayhead {
		t.Errorf("follow: got changed=%v new=%v", d.FollowChanged, d.NewFollowPlayhead)
	}
	if !d.CanvasChanged || d.NewCanvas.Width != 1200 {
		t.Errorf("canvas: got changed=%v %+v", d.CanvasChanged, d.NewCanvas)
	}
	if !d.InputChanged {
		t.Error("InputChanged: got false")
	}
	if !d.DriftChanged {
		t.Error("DriftChanged: got false")
	}
	if !d.HotReloadable() {
		t.Error("HotReloadable: got false")
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("RestartRequired: got %v, want none", d.RestartRequired)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()
	a, b := config.Default(), config.Default()
	b.Server.ListenAddr = ":9999"
	b.Cache.Backend = config.CachePostgres
	b.Cache.PostgresDSN = "postgres://db/wavecue"
	b.Playback.Output = config.OutputOto

	d := config.Diff(a, b)
	want := []string{"server", "cache", "playback.output"}
	if !slices.Equal(d.RestartRequired, want) {
		t.Errorf("RestartRequired: got %v, want %v", d.RestartRequired, want)
	}
	if d.HotReloadable() {
		t.Error("restart-only changes should not be hot-reloadable")
	}
	if d.Empty() {
		t.Error("diff should not be empty")
	}
}
