package editor

import (
	"slices"
	"time"

	"github.com/MrWong99/wavecue/internal/interact"
	"github.com/MrWong99/wavecue/internal/playback"
	"github.com/MrWong99/wavecue/internal/render"
	"github.com/MrWong99/wavecue/internal/timeline"
)

// DefaultNudgeMs is the stock menu of marker nudges in milliseconds.
var DefaultNudgeMs = []float64{-100, -20, -10, -5, -1, 1, 5, 10, 20, 100}

// Config holds the editor settings. Zero fields take the defaults listed.
type Config struct {
	// Width and Height are the raster size. Default: 800x80.
	Width, Height int

	// InitialZoom is the zoom of a freshly opened source without a saved
	// view. Default: 1.
	InitialZoom int

	// FrameRate is the number of ticks per second of [Editor.Run].
	// Default: 60.
	FrameRate int

	// Render controls drawing. Default: [render.DefaultOptions].
	Render render.Options

	// DragThreshold is how far in pixels a press may move and still seek.
	// Default: 3.
	DragThreshold float64

	// WheelSecondsPerUnit converts wheel deltas to seconds. Zero treats
	// deltas as pixels.
	WheelSecondsPerUnit float64

	// NudgeMs is the menu of marker nudges offered to the user.
	NudgeMs []float64

	// FollowPlayhead, FollowBand, DriftTolerance and DriftWindow configure
	// the playback synchronizer; see [playback.Config].
	FollowPlayhead bool
	FollowBand     float64
	DriftTolerance time.Duration
	DriftWindow    time.Duration

	// MarkerDebounce and ViewDebounce are the quiet periods before a marker
	// or view change is written. Default: 1s each.
	MarkerDebounce time.Duration
	ViewDebounce   time.Duration

	// AutosaveInterval is the period of full-state autosaves. Default: 5s.
	AutosaveInterval time.Duration

	// CacheTimeout bounds each cache call. Default: 5s.
	CacheTimeout time.Duration
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	var c Config
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	pb := playback.DefaultConfig()
	if c.Width <= 0 {
		c.Width = 800
	}
	if c.Height <= 0 {
		c.Height = 80
	}
	c.InitialZoom = timeline.NormalizeZoom(c.InitialZoom)
	if c.FrameRate <= 0 {
		c.FrameRate = 60
	}
	if c.Render == (render.Options{}) {
		c.Render = render.DefaultOptions
	}
	if c.DragThreshold <= 0 {
		c.DragThreshold = 3
	}
	if len(c.NudgeMs) == 0 {
		c.NudgeMs = slices.Clone(DefaultNudgeMs)
	}
	if c.FollowBand <= 0 {
		c.FollowBand = pb.FollowBand
	}
	if c.DriftTolerance <= 0 {
		c.DriftTolerance = pb.DriftTolerance
	}
	if c.DriftWindow <= 0 {
		c.DriftWindow = pb.DriftWindow
	}
	if c.MarkerDebounce <= 0 {
		c.MarkerDebounce = time.Second
	}
	if c.ViewDebounce <= 0 {
		c.ViewDebounce = time.Second
	}
	if c.AutosaveInterval <= 0 {
		c.AutosaveInterval = 5 * time.Second
	}
	if c.CacheTimeout <= 0 {
		c.CacheTimeout = 5 * time.Second
	}
}

func (c Config) playbackConfig() playback.Config {
	return playback.Config{
		FollowPlayhead: c.FollowPlayhead,
		FollowBand:     c.FollowBand,
		DriftTolerance: c.DriftTolerance,
		DriftWindow:    c.DriftWindow,
	}
}

func (c Config) interactConfig() interact.Config {
	return interact.Config{
		Width:               c.Width,
		Height:              c.Height,
		DragThreshold:       c.DragThreshold,
		WheelSecondsPerUnit: c.WheelSecondsPerUnit,
	}
}

func (c Config) renderOptions() render.Options { return c.Render }

// Config returns the current settings.
func (e *Editor) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg := e.cfg
	cfg.NudgeMs = slices.Clone(cfg.NudgeMs)
	return cfg
}

// SetConfig applies new settings to a running editor. Debounce delays only
// change for editors created afterwards.
func (e *Editor) SetConfig(cfg Config) {
	cfg.applyDefaults()
	e.mu.Lock()
	defer e.unlock()
	e.cfg = cfg
	e.syncer.SetConfig(cfg.playbackConfig())
	e.ctrl.SetConfig(cfg.interactConfig())
}

// SetFollowPlayhead turns follow mode on or off.
func (e *Editor) SetFollowPlayhead(on bool) {
	e.mu.Lock()
	defer e.unlock()
	e.cfg.FollowPlayhead = on
	e.syncer.SetConfig(e.cfg.playbackConfig())
}
