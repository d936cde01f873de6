// Package interact turns pointer, touch and wheel input on the waveform
// raster into timeline and playback operations.
//
// The [Controller] is a three-state machine (Idle, Dragging, Scrubbing). A
// pointer press followed by movement beyond a small threshold pans the view;
// a press released without such movement is a click and seeks. Wheel input
// always pans and never zooms.
//
// The controller holds no timeline or playback state of its own. It drives a
// [Host] and, like the host, must be called from one goroutine at a time.
package interact

import (
	"math"

	"github.com/MrWong99/wavecue/internal/timeline"
)

// Mode is the controller state.
type Mode int

const (
	Idle Mode = iota
	Dragging
	Scrubbing
)

// String returns the lower-case mode name.
func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Scrubbing:
		return "scrubbing"
	default:
		return "unknown"
	}
}

// Host is what the controller drives.
type Host interface {
	TimelineState() timeline.State
	Scroll(deltaSeconds float64)
	ZoomIn()
	ZoomOut()
	FocusOn(seconds float64)

	Seek(seconds float64)
	PlaybackTime() float64

	Marker() float64
	SetMarker(seconds float64)
	NudgeMarker(deltaMs float64)

	// BeginScrub and EndScrub bracket an interactive scrub so that playback
	// can be paused and resumed around it.
	BeginScrub()
	EndScrub()
}

// Config holds the controller settings.
type Config struct {
	// Width and Height are the raster size in pixels.
	Width, Height int

	// DragThreshold is the distance in pixels a press may travel and still
	// count as a click.
	DragThreshold float64

	// WheelSecondsPerUnit converts wheel deltas into seconds. When zero,
	// deltas are treated as pixels at the current zoom.
	WheelSecondsPerUnit float64
}

// Controller is the input state machine.
type Controller struct {
	cfg  Config
	host Host

	mode      Mode
	touch     bool
	startX    float64
	lastX     float64
	excursion float64
}

// NewController returns an idle controller.
func NewController(cfg Config, host Host) *Controller {
	if cfg.DragThreshold < 0 {
		cfg.DragThreshold = 0
	}
	return &Controller{cfg: cfg, host: host}
}

// Mode returns the current state.
func (c *Controller) Mode() Mode { return c.mode }

// SetConfig replaces the settings. An interaction in progress keeps going.
func (c *Controller) SetConfig(cfg Config) { c.cfg = cfg }

// Config returns the current settings.
func (c *Controller) Config() Config { return c.cfg }

func (c *Controller) inside(x, y float64) bool {
	return x >= 0 && y >= 0 && x < float64(c.cfg.Width) && y < float64(c.cfg.Height)
}

// PointerDown starts a drag when the press lands on the raster. Presses
// outside it are ignored.
func (c *Controller) PointerDown(x, y float64) {
	c.press(x, y, false)
}

// PointerMove pans the view while dragging.
func (c *Controller) PointerMove(x float64) {
	if c.mode != Dragging || c.touch {
		return
	}
	c.move(x)
}

// PointerUp ends a drag. A drag that never left the threshold seeks to the
// clicked time.
func (c *Controller) PointerUp(x float64) {
	if c.mode != Dragging || c.touch {
		return
	}
	c.release(x)
}

// TouchStart mirrors [Controller.PointerDown]. A touch beginning outside the
// raster is ignored, and so are its moves and end.
func (c *Controller) TouchStart(x, y float64) {
	c.press(x, y, true)
}

// TouchMove mirrors [Controller.PointerMove].
func (c *Controller) TouchMove(x float64) {
	if c.mode != Dragging || !c.touch {
		return
	}
	c.move(x)
}

// TouchEnd mirrors [Controller.PointerUp].
func (c *Controller) TouchEnd(x float64) {
	if c.mode != Dragging || !c.touch {
		return
	}
	c.release(x)
}

// Cancel abandons a drag without seeking.
func (c *Controller) Cancel() {
	if c.mode == Dragging {
		c.mode = Idle
	}
}

func (c *Controller) press(x, y float64, touch bool) {
	if c.mode != Idle || !c.inside(x, y) {
		return
	}
	c.mode = Dragging
	c.touch = touch
	c.startX, c.lastX = x, x
	c.excursion = 0
}

func (c *Controller) move(x float64) {
	c.excursion = max(c.excursion, math.Abs(x-c.startX))
	if c.excursion <= c.cfg.DragThreshold {
		// lastX stays at startX so the first pan covers the whole travel.
		return
	}
	dx := x - c.lastX
	c.lastX = x
	if dx == 0 {
		return
	}
	pps := c.host.TimelineState().PixelsPerSecond(float64(c.cfg.Width))
	if pps <= 0 {
		return
	}
	c.host.Scroll(-dx / pps)
}

func (c *Controller) release(x float64) {
	c.excursion = max(c.excursion, math.Abs(x-c.startX))
	c.mode = Idle
	if c.excursion > c.cfg.DragThreshold {
		return
	}
	c.host.Seek(c.host.TimelineState().PixelToTime(x, float64(c.cfg.Width)))
}

// Wheel pans by delta. Positive deltas move forward in time.
func (c *Controller) Wheel(delta float64) {
	if c.mode != Idle || delta == 0 {
		return
	}
	if c.cfg.WheelSecondsPerUnit > 0 {
		c.host.Scroll(delta * c.cfg.WheelSecondsPerUnit)
		return
	}
	pps := c.host.TimelineState().PixelsPerSecond(float64(c.cfg.Width))
	if pps <= 0 {
		return
	}
	c.host.Scroll(delta / pps)
}

// BeginScrub enters Scrubbing for a secondary scrubber control.
func (c *Controller) BeginScrub() {
	if c.mode != Idle {
		return
	}
	c.mode = Scrubbing
	c.host.BeginScrub()
}

// ScrubTo seeks while scrubbing.
func (c *Controller) ScrubTo(seconds float64) {
	if c.mode != Scrubbing {
		return
	}
	c.host.Seek(seconds)
}

// EndScrub leaves Scrubbing.
func (c *Controller) EndScrub() {
	if c.mode != Scrubbing {
		return
	}
	c.mode = Idle
	c.host.EndScrub()
}

// ZoomIn doubles the zoom.
func (c *Controller) ZoomIn() { c.host.ZoomIn() }

// ZoomOut halves the zoom.
func (c *Controller) ZoomOut() { c.host.ZoomOut() }

// FocusOnMarker centers the view on the start-point marker.
func (c *Controller) FocusOnMarker() { c.host.FocusOn(c.host.Marker()) }

// NudgeMarker moves the marker by deltaMs milliseconds.
func (c *Controller) NudgeMarker(deltaMs float64) { c.host.NudgeMarker(deltaMs) }

// SetMarkerToCurrentPlayback moves the marker to the playhead.
func (c *Controller) SetMarkerToCurrentPlayback() { c.host.SetMarker(c.host.PlaybackTime()) }

// DirectTimeEntry parses input, then seeks and sets the marker to it. On
// error nothing changes; the error message is meant for the user.
func (c *Controller) DirectTimeEntry(input string) (float64, error) {
	t, err := ParseTime(input, c.host.TimelineState().Duration)
	if err != nil {
		return 0, err
	}
	c.host.Seek(t)
	c.host.SetMarker(t)
	return t, nil
}
