// Package timeline maps audio time onto the pixel columns of a fixed-width
// raster under a power-of-two zoom.
//
// [State] is an immutable snapshot used for drawing and hit testing. [Model]
// owns the mutable zoom and offset and re-establishes the clamping invariant
//
//	0 <= offset <= duration - duration/zoom
//
// after every mutation. While the duration is 0 every mutation is a no-op.
//
// Neither type is safe for concurrent use; callers serialise access.
package timeline

import (
	"math/bits"

	"github.com/MrWong99/wavecue/pkg/audio"
)

// Zoom bounds.
const (
	MinZoom = 1
	MaxZoom = 64
)

// State is a snapshot of the timeline.
type State struct {
	Duration      float64
	ZoomLevel     int
	OffsetSeconds float64
}

// VisibleDuration is the span of audio time shown at the current zoom.
func (s State) VisibleDuration() float64 {
	if s.ZoomLevel < 1 {
		return s.Duration
	}
	return s.Duration / float64(s.ZoomLevel)
}

// VisibleEnd is the time at the right edge of the window.
func (s State) VisibleEnd() float64 {
	return s.OffsetSeconds + s.VisibleDuration()
}

// Center is the time at the middle of the window.
func (s State) Center() float64 {
	return s.OffsetSeconds + s.VisibleDuration()/2
}

// Contains reports whether t lies inside the visible window, edges included.
func (s State) Contains(t float64) bool {
	return t >= s.OffsetSeconds && t <= s.VisibleEnd()
}

// PixelToTime converts a horizontal pixel position on a raster of width
// pixels into seconds, rounded to the millisecond and clamped to
// [0, duration].
func (s State) PixelToTime(px, width float64) float64 {
	if s.Duration <= 0 {
		return 0
	}
	if width <= 0 {
		return clamp(audio.RoundMillis(s.OffsetSeconds), 0, s.Duration)
	}
	t := s.OffsetSeconds + (px/width)*s.VisibleDuration()
	return clamp(audio.RoundMillis(t), 0, s.Duration)
}

// TimeToPixel converts seconds into a horizontal pixel position. The result
// is not clamped: times outside the window map outside [0, width].
func (s State) TimeToPixel(seconds, width float64) float64 {
	vis := s.VisibleDuration()
	if vis <= 0 {
		return 0
	}
	return (seconds - s.OffsetSeconds) / vis * width
}

// PixelsPerSecond returns the horizontal scale for a raster of width pixels.
func (s State) PixelsPerSecond(width float64) float64 {
	vis := s.VisibleDuration()
	if vis <= 0 {
		return 0
	}
	return width / vis
}

// Model is the mutable timeline.
type Model struct {
	s State
}

// New returns a model for audio of the given duration at initialZoom, which
// is normalised with [NormalizeZoom].
func New(duration float64, initialZoom int) *Model {
	m := &Model{s: State{Duration: max(0, duration), ZoomLevel: NormalizeZoom(initialZoom)}}
	m.clampOffset()
	return m
}

// State returns a snapshot.
func (m *Model) State() State { return m.s }

// ZoomLevel returns the current zoom.
func (m *Model) ZoomLevel() int { return m.s.ZoomLevel }

// Offset returns the time at the left edge of the window.
func (m *Model) Offset() float64 { return m.s.OffsetSeconds }

// Duration returns the audio duration.
func (m *Model) Duration() float64 { return m.s.Duration }

// VisibleDuration returns duration / zoom.
func (m *Model) VisibleDuration() float64 { return m.s.VisibleDuration() }

// SetDuration installs a new audio length, keeping the zoom and clamping the
// offset.
func (m *Model) SetDuration(d float64) {
	m.s.Duration = max(0, d)
	m.clampOffset()
}

// Reset returns to the full view at zoom.
func (m *Model) Reset(zoom int) {
	m.s.ZoomLevel = NormalizeZoom(zoom)
	m.s.OffsetSeconds = 0
}

// ZoomIn doubles the zoom, keeping the previous center time in the middle.
func (m *Model) ZoomIn() { m.setZoomKeepingCenter(m.s.ZoomLevel * 2) }

// ZoomOut halves the zoom, keeping the previous center time in the middle.
func (m *Model) ZoomOut() { m.setZoomKeepingCenter(m.s.ZoomLevel / 2) }

func (m *Model) setZoomKeepingCenter(zoom int) {
	if m.s.Duration <= 0 {
		return
	}
	center := m.s.Center()
	m.s.ZoomLevel = int(clamp(float64(zoom), MinZoom, MaxZoom))
	m.s.OffsetSeconds = center - m.s.VisibleDuration()/2
	m.clampOffset()
}

// SetView applies a stored zoom and offset, normalising both.
func (m *Model) SetView(zoom int, offset float64) {
	if m.s.Duration <= 0 {
		return
	}
	m.s.ZoomLevel = NormalizeZoom(zoom)
	m.s.OffsetSeconds = offset
	m.clampOffset()
}

// FocusOn centers the window on t.
func (m *Model) FocusOn(t float64) {
	if m.s.Duration <= 0 {
		return
	}
	m.s.OffsetSeconds = t - m.s.VisibleDuration()/2
	m.clampOffset()
}

// Scroll shifts the window by delta seconds.
func (m *Model) Scroll(delta float64) {
	if m.s.Duration <= 0 {
		return
	}
	m.s.OffsetSeconds += delta
	m.clampOffset()
}

// Follow keeps the playhead away from the window edges. Nothing happens while
// the playhead stays within the inner part of the window; once it enters the
// band (a fraction of the visible duration) at either edge, or leaves the
// window, the window jumps so the playhead sits at the band boundary on the
// opposite side. It reports whether the offset changed.
func (m *Model) Follow(playhead, band float64) bool {
	if m.s.Duration <= 0 || m.s.ZoomLevel == MinZoom {
		return false
	}
	band = clamp(band, 0, 0.5)
	vis := m.s.VisibleDuration()
	lo := m.s.OffsetSeconds + band*vis
	hi := m.s.OffsetSeconds + (1-band)*vis
	before := m.s.OffsetSeconds
	switch {
	case playhead > hi:
		m.s.OffsetSeconds = playhead - band*vis
	case playhead < lo:
		m.s.OffsetSeconds = playhead - (1-band)*vis
	default:
		return false
	}
	m.clampOffset()
	return m.s.OffsetSeconds != before
}

func (m *Model) clampOffset() {
	if m.s.ZoomLevel <= MinZoom || m.s.Duration <= 0 {
		m.s.OffsetSeconds = 0
		return
	}
	upper := max(0, m.s.Duration-m.s.VisibleDuration())
	m.s.OffsetSeconds = clamp(m.s.OffsetSeconds, 0, upper)
}

// NormalizeZoom clamps z to [MinZoom, MaxZoom] and rounds it down to a power
// of two.
func NormalizeZoom(z int) int {
	if z <= MinZoom {
		return MinZoom
	}
	if z >= MaxZoom {
		return MaxZoom
	}
	return 1 << (bits.Len(uint(z)) - 1)
}

// IsValidZoom reports whether z is a power of two within the zoom bounds.
func IsValidZoom(z int) bool {
	return z >= MinZoom && z <= MaxZoom && z&(z-1) == 0
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
