package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; anything else
// that changed is listed in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	NudgeChanged bool // editor.nudge_ms
	NewNudgeMs   []float64

	FollowChanged     bool // timeline.follow_playhead or timeline.follow_band
	NewFollowPlayhead bool

	CanvasChanged bool // any canvas.* field
	NewCanvas     CanvasConfig

	InputChanged bool // editor.drag_threshold_px or editor.wheel_seconds_per_unit

	DriftChanged bool // playback.drift_tolerance_ms or playback.drift_window_ms

	// RestartRequired names the sections whose changes only take effect
	// after a restart.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.NudgeChanged && !d.FollowChanged &&
		!d.CanvasChanged && !d.InputChanged && !d.DriftChanged &&
		len(d.RestartRequired) == 0
}

// HotReloadable reports whether any change can be applied without restart.
func (d ConfigDiff) HotReloadable() bool {
	return d.LogLevelChanged || d.NudgeChanged || d.FollowChanged ||
		d.CanvasChanged || d.InputChanged || d.DriftChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !slices.Equal(old.Editor.NudgeMs, new.Editor.NudgeMs) {
		d.NudgeChanged = true
		d.NewNudgeMs = slices.Clone(new.Editor.NudgeMs)
	}

	if old.Timeline.FollowPlayhead != new.Timeline.FollowPlayhead ||
		old.Timeline.FollowBand != new.Timeline.FollowBand {
		d.FollowChanged = true
		d.NewFollowPlayhead = new.Timeline.FollowPlayhead
	}

	if old.Canvas != new.Canvas {
		d.CanvasChanged = true
		d.NewCanvas = new.Canvas
	}

	if old.Editor.DragThresholdPx != new.Editor.DragThresholdPx ||
		old.Editor.WheelSecondsPerUnit != new.Editor.WheelSecondsPerUnit {
		d.InputChanged = true
	}

	if old.Playback.DriftToleranceMs != new.Playback.DriftToleranceMs ||
		old.Playback.DriftWindowMs != new.Playback.DriftWindowMs {
		d.DriftChanged = true
	}

	// Sections that are wired once at startup.
	if old.Server.ListenAddr != new.Server.ListenAddr || old.Server.FrameRate != new.Server.FrameRate {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if old.Timeline.InitialZoom != new.Timeline.InitialZoom {
		d.RestartRequired = append(d.RestartRequired, "timeline.initial_zoom")
	}
	if old.Cache != new.Cache {
		d.RestartRequired = append(d.RestartRequired, "cache")
	}
	if old.Decoder != new.Decoder {
		d.RestartRequired = append(d.RestartRequired, "decoder")
	}
	if old.Playback.Output != new.Playback.Output {
		d.RestartRequired = append(d.RestartRequired, "playback.output")
	}
	if old.Source != new.Source {
		d.RestartRequired = append(d.RestartRequired, "source")
	}

	return d
}
