package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/wavecue/internal/timeline"
)

// DefaultNudgeMs is the stock menu of marker nudges in milliseconds.
var DefaultNudgeMs = []float64{-100, -20, -10, -5, -1, 1, 5, 10, 20, 100}

// FFmpegDisabled as decoder.ffmpeg_path turns off the ffmpeg fallback.
const FFmpegDisabled = "none"

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields. Fields that hold invalid values are left
// alone so that [Validate] can report them.
func (c *Config) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Server.FrameRate == 0 {
		c.Server.FrameRate = 60
	}

	if c.Canvas.Width == 0 {
		c.Canvas.Width = 800
	}
	if c.Canvas.Height == 0 {
		c.Canvas.Height = 80
	}
	if c.Canvas.MinimapHeight == 0 {
		c.Canvas.MinimapHeight = 6
	}
	if c.Canvas.PeakScaleMin == 0 {
		c.Canvas.PeakScaleMin = 0.9
	}
	if c.Canvas.PeakScaleMax == 0 {
		c.Canvas.PeakScaleMax = 2.0
	}

	if c.Timeline.InitialZoom == 0 {
		c.Timeline.InitialZoom = 1
	}
	if c.Timeline.FollowBand == 0 {
		c.Timeline.FollowBand = 0.2
	}

	if len(c.Editor.NudgeMs) == 0 {
		c.Editor.NudgeMs = slices.Clone(DefaultNudgeMs)
	}
	if c.Editor.DragThresholdPx == 0 {
		c.Editor.DragThresholdPx = 3
	}

	if c.Cache.Backend == "" {
		c.Cache.Backend = CacheMemory
	}
	if c.Cache.MaxRecords == 0 {
		c.Cache.MaxRecords = 256
	}
	if c.Cache.MarkerDebounce == 0 {
		c.Cache.MarkerDebounce = time.Second
	}
	if c.Cache.ViewDebounce == 0 {
		c.Cache.ViewDebounce = time.Second
	}
	if c.Cache.AutosaveInterval == 0 {
		c.Cache.AutosaveInterval = 5 * time.Second
	}
	if c.Cache.Timeout == 0 {
		c.Cache.Timeout = 5 * time.Second
	}

	if c.Decoder.FFmpegPath == "" {
		c.Decoder.FFmpegPath = "ffmpeg"
	}

	if c.Playback.Output == "" {
		c.Playback.Output = OutputClock
	}
	if c.Playback.DriftToleranceMs == 0 {
		c.Playback.DriftToleranceMs = 5
	}
	if c.Playback.DriftWindowMs == 0 {
		c.Playback.DriftWindowMs = 500
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.FrameRate < 0 || cfg.Server.FrameRate > 240 {
		errs = append(errs, fmt.Errorf("server.frame_rate %d is out of range [1, 240]", cfg.Server.FrameRate))
	}

	// Canvas
	if cfg.Canvas.Width < 0 || cfg.Canvas.Height < 0 {
		errs = append(errs, fmt.Errorf("canvas size %dx%d must not be negative", cfg.Canvas.Width, cfg.Canvas.Height))
	}
	if cfg.Canvas.PeakScaleMin < 0 || cfg.Canvas.PeakScaleMax < 0 {
		errs = append(errs, errors.New("canvas.peak_scale_min and canvas.peak_scale_max must not be negative"))
	} else if cfg.Canvas.PeakScaleMax != 0 && cfg.Canvas.PeakScaleMin > cfg.Canvas.PeakScaleMax {
		errs = append(errs, fmt.Errorf("canvas.peak_scale_min %.2f exceeds canvas.peak_scale_max %.2f", cfg.Canvas.PeakScaleMin, cfg.Canvas.PeakScaleMax))
	}

	// Timeline
	if z := cfg.Timeline.InitialZoom; z != 0 && !timeline.IsValidZoom(z) {
		errs = append(errs, fmt.Errorf("timeline.initial_zoom %d is invalid; valid values: 1, 2, 4, 8, 16, 32, 64", z))
	}
	if b := cfg.Timeline.FollowBand; b < 0 || b >= 0.5 {
		errs = append(errs, fmt.Errorf("timeline.follow_band %.2f is out of range [0, 0.5)", b))
	}

	// Editor
	for i, ms := range cfg.Editor.NudgeMs {
		if ms == 0 {
			errs = append(errs, fmt.Errorf("editor.nudge_ms[%d] must not be zero", i))
		}
	}
	if cfg.Editor.DragThresholdPx < 0 {
		errs = append(errs, fmt.Errorf("editor.drag_threshold_px %.1f must not be negative", cfg.Editor.DragThresholdPx))
	}

	// Cache
	if cfg.Cache.Backend != "" && !cfg.Cache.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("cache.backend %q is invalid; valid values: memory, postgres", cfg.Cache.Backend))
	}
	if cfg.Cache.Backend == CachePostgres && cfg.Cache.PostgresDSN == "" {
		errs = append(errs, errors.New("cache.postgres_dsn is required when cache.backend is postgres"))
	}
	if cfg.Cache.Backend == CacheMemory && cfg.Cache.PostgresDSN != "" {
		slog.Warn("cache.postgres_dsn is set but cache.backend is memory; the DSN is ignored")
	}
	if cfg.Cache.MaxRecords < 0 {
		errs = append(errs, fmt.Errorf("cache.max_records %d must not be negative", cfg.Cache.MaxRecords))
	}
	for name, d := range map[string]time.Duration{
		"cache.marker_debounce":   cfg.Cache.MarkerDebounce,
		"cache.view_debounce":     cfg.Cache.ViewDebounce,
		"cache.autosave_interval": cfg.Cache.AutosaveInterval,
		"cache.timeout":           cfg.Cache.Timeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s %s must not be negative", name, d))
		}
	}

	// Decoder
	if cfg.Decoder.TargetSampleRate < 0 {
		errs = append(errs, fmt.Errorf("decoder.target_sample_rate %d must not be negative", cfg.Decoder.TargetSampleRate))
	}

	// Playback
	if cfg.Playback.Output != "" && !cfg.Playback.Output.IsValid() {
		errs = append(errs, fmt.Errorf("playback.output %q is invalid; valid values: clock, oto", cfg.Playback.Output))
	}
	if cfg.Playback.DriftToleranceMs < 0 || cfg.Playback.DriftWindowMs < 0 {
		errs = append(errs, errors.New("playback.drift_tolerance_ms and playback.drift_window_ms must not be negative"))
	}

	// Source
	if p := cfg.Source.Path; p != "" && !strings.HasPrefix(p, "http://") && !strings.HasPrefix(p, "https://") {
		if _, err := os.Stat(p); err != nil {
			slog.Warn("source.path is not readable; starting without a source", "path", p, "err", err)
		}
	}

	return errors.Join(errs...)
}
