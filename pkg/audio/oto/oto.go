// Package oto provides an [audio.MediaElement] that plays [audio.DecodedAudio]
// through the system's default output device using ebitengine/oto.
//
// Only one oto context may exist per process; create a single [Output] at
// start-up and obtain elements from it.
package oto

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/MrWong99/wavecue/pkg/audio"
)

var (
	_ audio.MediaElement = (*Element)(nil)
	_ audio.Loader       = (*Element)(nil)
)

// bytesPerSample is the size of one float32 sample.
const bytesPerSample = 4

// Output owns the process-wide oto context.
type Output struct {
	ctx    *oto.Context
	format audio.Format
}

// NewOutput opens the default output device with the given format. It blocks
// until the device is ready.
func NewOutput(format audio.Format) (*Output, error) {
	if format.Channels <= 0 {
		format.Channels = 2
	}
	if format.SampleRate <= 0 {
		format.SampleRate = 48000
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, fmt.Errorf("oto: open output %s: %w", format, err)
	}
	<-ready
	return &Output{ctx: ctx, format: format}, nil
}

// Format returns the device format.
func (o *Output) Format() audio.Format { return o.format }

// NewElement returns an element with nothing loaded. Call [Element.Load]
// before playing.
func (o *Output) NewElement() *Element {
	e := &Element{
		out:  o,
		done: make(chan struct{}),
	}
	go e.loop()
	return e
}

// Element is a media element backed by an oto player.
type Element struct {
	out *Output

	mu       sync.Mutex
	src      *pcmSource
	player   *oto.Player
	onUpdate func(float64)

	done     chan struct{}
	stopOnce sync.Once
}

// Load implements [audio.Loader]. d is converted to the device format.
// Playback stops and the position resets to 0.
func (e *Element) Load(d *audio.DecodedAudio) error {
	converted, err := fitFormat(d, e.out.format)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.player != nil {
		if err := e.player.Close(); err != nil {
			slog.Warn("oto: close previous player", "err", err)
		}
	}
	e.src = &pcmSource{audio: converted}
	e.player = e.out.ctx.NewPlayer(e.src)
	return nil
}

// fitFormat resamples and remaps channels so that d matches the device.
func fitFormat(d *audio.DecodedAudio, f audio.Format) (*audio.DecodedAudio, error) {
	channels := audio.Resample(d.Channels(), d.SampleRate(), f.SampleRate)
	mapped := make([][]float32, f.Channels)
	for c := range mapped {
		mapped[c] = channels[min(c, len(channels)-1)]
	}
	return audio.NewDecodedAudio(f.SampleRate, mapped)
}

// CurrentTime implements [audio.MediaElement]. It subtracts the samples that
// are buffered but not yet audible.
func (e *Element) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.src == nil {
		return 0
	}
	frameBytes := int64(bytesPerSample * e.out.format.Channels)
	pos := e.src.offset() - int64(e.player.BufferedSize())
	pos = max(0, pos)
	return float64(pos/frameBytes) / float64(e.out.format.SampleRate)
}

// SetCurrentTime implements [audio.MediaElement].
func (e *Element) SetCurrentTime(seconds float64) {
	e.mu.Lock()
	if e.src == nil {
		e.mu.Unlock()
		return
	}
	seconds = max(0, min(e.src.audio.Duration(), seconds))
	frame := int64(seconds * float64(e.out.format.SampleRate))
	off := frame * int64(bytesPerSample*e.out.format.Channels)
	if _, err := e.player.Seek(off, io.SeekStart); err != nil {
		slog.Warn("oto: seek failed", "seconds", seconds, "err", err)
	}
	cb := e.onUpdate
	e.mu.Unlock()
	if cb != nil {
		cb(seconds)
	}
}

// Duration implements [audio.MediaElement].
func (e *Element) Duration() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.src == nil {
		return 0
	}
	return e.src.audio.Duration()
}

// Paused implements [audio.MediaElement].
func (e *Element) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.player == nil || !e.player.IsPlaying()
}

// Play implements [audio.MediaElement].
func (e *Element) Play(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.player == nil {
		return errors.New("oto: play: no media loaded")
	}
	e.player.Play()
	return e.player.Err()
}

// Pause implements [audio.MediaElement].
func (e *Element) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.player == nil {
		return nil
	}
	e.player.Pause()
	return e.player.Err()
}

// OnTimeUpdate implements [audio.MediaElement].
func (e *Element) OnTimeUpdate(cb func(float64)) {
	e.mu.Lock()
	e.onUpdate = cb
	e.mu.Unlock()
}

// Close releases the player and stops the update goroutine.
func (e *Element) Close() error {
	e.stopOnce.Do(func() { close(e.done) })
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.player != nil {
		err := e.player.Close()
		e.player = nil
		return err
	}
	return nil
}

func (e *Element) loop() {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-e.done:
			return
		case <-ticker.C:
			if e.Paused() {
				continue
			}
			pos := e.CurrentTime()
			e.mu.Lock()
			cb := e.onUpdate
			e.mu.Unlock()
			if cb != nil {
				cb(pos)
			}
		}
	}
}

// pcmSource streams a [audio.DecodedAudio] as interleaved float32 bytes.
// oto reads it from its own goroutine, so access is guarded.
type pcmSource struct {
	audio *audio.DecodedAudio

	mu  sync.Mutex
	pos int64 // byte offset
}

func (s *pcmSource) offset() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// Read implements io.Reader.
func (s *pcmSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	frameBytes := int64(bytesPerSample * s.audio.NumChannels())
	frame := int(s.pos / frameBytes)
	if frame >= s.audio.SampleCount() {
		return 0, io.EOF
	}
	n := audio.InterleaveFloat32LE(s.audio, frame, p)
	if n == 0 {
		return 0, io.EOF
	}
	read := n * int(frameBytes)
	s.pos += int64(read)
	return read, nil
}

// Seek implements io.Seeker. Offsets are snapped to frame boundaries.
func (s *pcmSource) Seek(offset int64, whence int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	frameBytes := int64(bytesPerSample * s.audio.NumChannels())
	total := int64(s.audio.SampleCount()) * frameBytes
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = s.pos + offset
	case io.SeekEnd:
		next = total + offset
	default:
		return s.pos, fmt.Errorf("oto: invalid whence %d", whence)
	}
	next = max(0, min(total, next))
	s.pos = next - next%frameBytes
	return s.pos, nil
}
