// Package clock provides a headless [audio.MediaElement] whose playback
// position advances with the wall clock. It produces no sound and is used on
// servers and in CI where no output device exists.
package clock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/wavecue/pkg/audio"
)

var (
	_ audio.MediaElement = (*Element)(nil)
	_ audio.Loader       = (*Element)(nil)
)

// Option configures an [Element].
type Option func(*Element)

// WithNow overrides the time source. Intended for tests.
func WithNow(now func() time.Time) Option {
	return func(e *Element) { e.now = now }
}

// WithUpdateInterval sets how often the time-update callback fires while
// playing. The default is 250ms, matching typical browser timeupdate cadence.
// A non-positive value disables periodic updates.
func WithUpdateInterval(d time.Duration) Option {
	return func(e *Element) { e.interval = d }
}

// Element is a wall-clock driven media element.
type Element struct {
	now      func() time.Time
	interval time.Duration

	mu       sync.Mutex
	duration float64
	base     float64
	anchor   time.Time
	playing  bool
	onUpdate func(float64)

	done     chan struct{}
	stopOnce sync.Once
}

// New creates an element of the given duration in seconds. Call
// [Element.Close] to stop the update goroutine.
func New(duration float64, opts ...Option) *Element {
	e := &Element{
		now:      time.Now,
		interval: 250 * time.Millisecond,
		duration: duration,
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(e)
	}
	if e.interval > 0 {
		go e.loop()
	}
	return e
}

// SetDuration replaces the media length, e.g. after a new source was loaded.
// The position is reset to 0 and playback stops.
func (e *Element) SetDuration(d float64) {
	e.mu.Lock()
	e.duration = d
	e.base = 0
	e.playing = false
	e.mu.Unlock()
}

// Load implements [audio.Loader]. Only the duration of d is used.
func (e *Element) Load(d *audio.DecodedAudio) error {
	e.SetDuration(d.Duration())
	return nil
}

// CurrentTime implements [audio.MediaElement].
func (e *Element) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positionLocked()
}

// positionLocked computes the position and handles reaching the end.
// Must be called with e.mu held.
func (e *Element) positionLocked() float64 {
	if !e.playing {
		return e.base
	}
	pos := e.base + e.now().Sub(e.anchor).Seconds()
	if pos >= e.duration {
		e.base = e.duration
		e.playing = false
		return e.duration
	}
	return pos
}

// SetCurrentTime implements [audio.MediaElement].
func (e *Element) SetCurrentTime(seconds float64) {
	e.mu.Lock()
	e.base = max(0, min(e.duration, seconds))
	e.anchor = e.now()
	cb, pos := e.onUpdate, e.base
	e.mu.Unlock()
	if cb != nil {
		cb(pos)
	}
}

// Duration implements [audio.MediaElement].
func (e *Element) Duration() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duration
}

// Paused implements [audio.MediaElement].
func (e *Element) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.positionLocked()
	return !e.playing
}

// Play implements [audio.MediaElement].
func (e *Element) Play(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.playing {
		return nil
	}
	if e.base >= e.duration {
		e.base = 0
	}
	e.anchor = e.now()
	e.playing = true
	return nil
}

// Pause implements [audio.MediaElement].
func (e *Element) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.base = e.positionLocked()
	e.playing = false
	return nil
}

// OnTimeUpdate implements [audio.MediaElement].
func (e *Element) OnTimeUpdate(cb func(float64)) {
	e.mu.Lock()
	e.onUpdate = cb
	e.mu.Unlock()
}

// Close stops the update goroutine. It is safe to call more than once.
func (e *Element) Close() error {
	e.stopOnce.Do(func() { close(e.done) })
	return nil
}

func (e *Element) loop() {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-e.done:
			return
		case <-ticker.C:
			e.mu.Lock()
			playing := e.playing
			pos := e.positionLocked()
			cb := e.onUpdate
			e.mu.Unlock()
			if playing && cb != nil {
				cb(pos)
			}
		}
	}
}
