package audio

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidAudio is returned by [NewDecodedAudio] when the supplied sample
// data cannot form a consistent buffer.
var ErrInvalidAudio = errors.New("audio: invalid decoded audio")

// DecodedAudio is an immutable, normalised PCM buffer. Every channel holds the
// same number of samples in the range [-1, 1].
//
// The duration invariant duration == sampleCount / sampleRate is established
// by [NewDecodedAudio] and cannot be broken afterwards: the type exposes no
// mutating methods and [DecodedAudio.Channel] returns the shared backing slice
// which callers must treat as read-only.
type DecodedAudio struct {
	sampleRate int
	channels   [][]float32
	duration   float64
	peak       float32
}

// NewDecodedAudio validates channels and builds a [DecodedAudio]. All
// channels must have equal length and sampleRate must be positive. A buffer
// with zero samples is valid and has a duration of 0.
func NewDecodedAudio(sampleRate int, channels [][]float32) (*DecodedAudio, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidAudio, sampleRate)
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("%w: no channels", ErrInvalidAudio)
	}
	n := len(channels[0])
	for i, ch := range channels {
		if len(ch) != n {
			return nil, fmt.Errorf("%w: channel %d has %d samples, want %d", ErrInvalidAudio, i, len(ch), n)
		}
	}
	d := &DecodedAudio{
		sampleRate: sampleRate,
		channels:   channels,
		duration:   float64(n) / float64(sampleRate),
	}
	d.peak = d.Peak(0, n)
	return d, nil
}

// SampleRate returns the sample rate in Hz.
func (d *DecodedAudio) SampleRate() int { return d.sampleRate }

// NumChannels returns the channel count.
func (d *DecodedAudio) NumChannels() int { return len(d.channels) }

// SampleCount returns the number of samples per channel.
func (d *DecodedAudio) SampleCount() int {
	if len(d.channels) == 0 {
		return 0
	}
	return len(d.channels[0])
}

// Duration returns the total length in seconds.
func (d *DecodedAudio) Duration() float64 { return d.duration }

// MaxPeak returns the largest absolute amplitude of the whole buffer.
func (d *DecodedAudio) MaxPeak() float32 { return d.peak }

// Channel returns the samples of channel i. The slice must not be modified.
func (d *DecodedAudio) Channel(i int) []float32 { return d.channels[i] }

// Channels returns all channels. The slices must not be modified.
func (d *DecodedAudio) Channels() [][]float32 { return d.channels }

// SampleIndex converts a time in seconds to a sample index clamped to
// [0, SampleCount].
func (d *DecodedAudio) SampleIndex(seconds float64) int {
	idx := int(math.Floor(seconds * float64(d.sampleRate)))
	if idx < 0 {
		return 0
	}
	if n := d.SampleCount(); idx > n {
		return n
	}
	return idx
}

// Peak returns the maximum absolute amplitude across all channels for the
// half-open sample range [from, to). Out-of-range bounds are clamped.
func (d *DecodedAudio) Peak(from, to int) float32 {
	n := d.SampleCount()
	from = max(0, min(n, from))
	to = max(0, min(n, to))
	var peak float32
	for _, ch := range d.channels {
		for _, s := range ch[from:to] {
			if s < 0 {
				s = -s
			}
			if s > peak {
				peak = s
			}
		}
	}
	return peak
}
