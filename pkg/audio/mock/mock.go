// Package mock provides an in-memory mock implementation of the
// [audio.MediaElement] interface for use in unit tests.
//
// The mock is safe for concurrent use. It records every mutating call so that
// tests can assert on call counts and arguments, and it exposes exported fields
// that the test can set to control return values.
//
// Typical usage:
//
//	el := mock.NewMediaElement(180)
//	el.SetCurrentTime(12.5)
//	el.Advance(0.5) // simulate half a second of playback
//	_ = el.CurrentTime() // 13.0 if playing, 12.5 otherwise
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/wavecue/pkg/audio"
)

var (
	_ audio.MediaElement = (*MediaElement)(nil)
	_ audio.Loader       = (*MediaElement)(nil)
)

// MediaElement is a mock implementation of [audio.MediaElement]. Time only
// advances when the test calls [MediaElement.Advance].
type MediaElement struct {
	mu sync.Mutex

	current  float64
	duration float64
	paused   bool
	onUpdate func(float64)

	// PlayError is returned by [MediaElement.Play]. When non-nil the element
	// stays paused.
	PlayError error

	// PauseError is returned by [MediaElement.Pause].
	PauseError error

	// SetTimeCalls records every value passed to SetCurrentTime, in order.
	SetTimeCalls []float64

	// CallCountPlay records how many times Play was called.
	CallCountPlay int

	// CallCountPause records how many times Pause was called.
	CallCountPause int

	// LoadError is returned by [MediaElement.Load].
	LoadError error

	// Loaded records every buffer passed to Load, in order.
	Loaded []*audio.DecodedAudio
}

// NewMediaElement returns a paused mock element of the given duration.
func NewMediaElement(duration float64) *MediaElement {
	return &MediaElement{duration: duration, paused: true}
}

// Load implements [audio.Loader]. It adopts the duration of d, pauses and
// rewinds to 0.
func (m *MediaElement) Load(d *audio.DecodedAudio) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Loaded = append(m.Loaded, d)
	if m.LoadError != nil {
		return m.LoadError
	}
	m.duration = d.Duration()
	m.current = 0
	m.paused = true
	return nil
}

// LoadCount returns len(Loaded) under the lock.
func (m *MediaElement) LoadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Loaded)
}

// CurrentTime implements [audio.MediaElement].
func (m *MediaElement) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// SetCurrentTime implements [audio.MediaElement]. The value is clamped to
// [0, duration] and recorded in SetTimeCalls.
func (m *MediaElement) SetCurrentTime(seconds float64) {
	m.mu.Lock()
	m.SetTimeCalls = append(m.SetTimeCalls, seconds)
	m.current = max(0, min(m.duration, seconds))
	cb, now := m.onUpdate, m.current
	m.mu.Unlock()
	if cb != nil {
		cb(now)
	}
}

// Duration implements [audio.MediaElement].
func (m *MediaElement) Duration() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duration
}

// Paused implements [audio.MediaElement].
func (m *MediaElement) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Play implements [audio.MediaElement].
func (m *MediaElement) Play(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCountPlay++
	if m.PlayError != nil {
		return m.PlayError
	}
	m.paused = false
	return nil
}

// Pause implements [audio.MediaElement].
func (m *MediaElement) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCountPause++
	if m.PauseError != nil {
		return m.PauseError
	}
	m.paused = true
	return nil
}

// OnTimeUpdate implements [audio.MediaElement].
func (m *MediaElement) OnTimeUpdate(cb func(float64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = cb
}

// Advance simulates dt seconds of playback. It has no effect while paused.
// The time-update callback fires when the position changed.
func (m *MediaElement) Advance(dt float64) {
	m.mu.Lock()
	if m.paused {
		m.mu.Unlock()
		return
	}
	m.current = min(m.duration, m.current+dt)
	cb, now := m.onUpdate, m.current
	m.mu.Unlock()
	if cb != nil {
		cb(now)
	}
}

// Jump sets the position without recording a SetCurrentTime call, simulating
// an external actor (native controls) moving the element.
func (m *MediaElement) Jump(seconds float64) {
	m.mu.Lock()
	m.current = max(0, min(m.duration, seconds))
	m.mu.Unlock()
}

// SetPausedExternally flips the paused flag without counting a Play or Pause
// call, simulating the user pressing native controls.
func (m *MediaElement) SetPausedExternally(paused bool) {
	m.mu.Lock()
	m.paused = paused
	m.mu.Unlock()
}

// SetTimeCallsSnapshot returns a copy of SetTimeCalls.
func (m *MediaElement) SetTimeCallsSnapshot() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float64, len(m.SetTimeCalls))
	copy(out, m.SetTimeCalls)
	return out
}

// Counts returns CallCountPlay and CallCountPause under the lock.
func (m *MediaElement) Counts() (play, pause int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCountPlay, m.CallCountPause
}
