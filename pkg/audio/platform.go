// Package audio defines the decoded-audio model and the media element
// abstraction that the waveform editor synchronises with.
//
// The two primary abstractions are:
//
//   - [DecodedAudio]: an immutable normalised PCM buffer produced by a decoder
//     and shared read-only with the renderer.
//   - [MediaElement]: a playback handle owned by the surrounding application.
//     The editor reads and writes its current time but never assumes exclusive
//     ownership: users may press play/pause on it at any moment.
//
// Implementations of [MediaElement] live in sub-packages (audio/oto for real
// speaker output, audio/clock for headless use, audio/mock for tests).
//
// This package lives under pkg/ because external code is expected to provide
// its own [MediaElement] implementations.
package audio

import (
	"context"
	"math"
)

// MediaElement is an externally owned playback handle.
//
// Implementations must be safe for concurrent use.
type MediaElement interface {
	// CurrentTime returns the playback position in seconds.
	CurrentTime() float64

	// SetCurrentTime moves the playback position. Values outside
	// [0, Duration] are clamped by the implementation.
	SetCurrentTime(seconds float64)

	// Duration returns the length of the loaded media in seconds, or 0 when
	// nothing is loaded.
	Duration() float64

	// Paused reports whether playback is currently stopped.
	Paused() bool

	// Play starts or resumes playback. It may block until the output device
	// accepted the request or ctx is cancelled.
	Play(ctx context.Context) error

	// Pause stops playback, keeping the current position.
	Pause() error

	// OnTimeUpdate registers cb to be invoked whenever the element's time
	// changes by itself (during playback) or through SetCurrentTime. Only one
	// callback may be registered at a time; subsequent calls replace it.
	// Passing nil removes the callback.
	OnTimeUpdate(cb func(seconds float64))
}

// Loader is implemented by media elements that can take decoded audio
// directly. Loading stops playback and rewinds to 0.
type Loader interface {
	Load(d *DecodedAudio) error
}

// RoundMillis rounds seconds to millisecond precision: round(t*1000)/1000.
func RoundMillis(seconds float64) float64 {
	return math.Round(seconds*1000) / 1000
}
