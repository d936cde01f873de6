package editor

import (
	"context"
	"fmt"

	"github.com/MrWong99/wavecue/internal/interact"
	"github.com/MrWong99/wavecue/internal/timeline"
)

// host adapts the editor to [interact.Host]. Its methods run with e.mu held,
// from inside controller calls made by the editor.
type host struct {
	e *Editor

	// entry marks marker changes as typed in rather than set.
	entry bool
}

var _ interact.Host = (*host)(nil)

func (h *host) TimelineState() timeline.State { return h.e.model.State() }
func (h *host) Scroll(deltaSeconds float64)   { h.e.model.Scroll(deltaSeconds) }
func (h *host) ZoomIn()                       { h.e.model.ZoomIn() }
func (h *host) ZoomOut()                      { h.e.model.ZoomOut() }
func (h *host) FocusOn(seconds float64)       { h.e.model.FocusOn(seconds) }
func (h *host) PlaybackTime() float64         { return h.e.syncer.Position() }
func (h *host) Marker() float64               { return h.e.syncer.Marker() }
func (h *host) NudgeMarker(deltaMs float64)   { h.e.syncer.NudgeStartPoint(deltaMs) }
func (h *host) BeginScrub()                   { h.e.syncer.BeginScrub() }
func (h *host) EndScrub()                     { h.e.syncer.EndScrub(h.e.baseCtx) }

func (h *host) Seek(seconds float64) {
	h.e.syncer.Seek(seconds)
	origin := "pointer"
	if h.entry {
		origin = "entry"
	}
	h.e.metrics.RecordSeek(context.Background(), origin)
}

func (h *host) SetMarker(seconds float64) {
	if h.entry {
		h.e.syncer.EnterStartPoint(seconds)
		return
	}
	h.e.syncer.SetStartPoint(seconds)
}

// input runs fn against the controller while a source is loaded.
func (e *Editor) input(fn func(c *interact.Controller)) {
	e.mu.Lock()
	defer e.unlock()
	if e.audio == nil {
		return
	}
	fn(e.ctrl)
}

// PointerDown starts a drag at (x, y) in raster pixels.
func (e *Editor) PointerDown(x, y float64) {
	e.input(func(c *interact.Controller) { c.PointerDown(x, y) })
}

// PointerMove pans while dragging.
func (e *Editor) PointerMove(x float64) {
	e.input(func(c *interact.Controller) { c.PointerMove(x) })
}

// PointerUp ends a drag; a press that did not move seeks.
func (e *Editor) PointerUp(x float64) {
	e.input(func(c *interact.Controller) { c.PointerUp(x) })
}

// TouchStart is PointerDown for touch input.
func (e *Editor) TouchStart(x, y float64) {
	e.input(func(c *interact.Controller) { c.TouchStart(x, y) })
}

// TouchMove is PointerMove for touch input.
func (e *Editor) TouchMove(x float64) {
	e.input(func(c *interact.Controller) { c.TouchMove(x) })
}

// TouchEnd is PointerUp for touch input.
func (e *Editor) TouchEnd(x float64) {
	e.input(func(c *interact.Controller) { c.TouchEnd(x) })
}

// CancelInput abandons a drag without seeking.
func (e *Editor) CancelInput() {
	e.input(func(c *interact.Controller) { c.Cancel() })
}

// Wheel pans the view by delta.
func (e *Editor) Wheel(delta float64) {
	e.input(func(c *interact.Controller) { c.Wheel(delta) })
}

// BeginScrub starts a scrub, pausing playback if it runs.
func (e *Editor) BeginScrub() {
	e.input(func(c *interact.Controller) { c.BeginScrub() })
}

// ScrubTo seeks during a scrub.
func (e *Editor) ScrubTo(seconds float64) {
	e.input(func(c *interact.Controller) { c.ScrubTo(seconds) })
}

// EndScrub ends a scrub, resuming playback if it ran before.
func (e *Editor) EndScrub() {
	e.input(func(c *interact.Controller) { c.EndScrub() })
}

// ZoomIn doubles the zoom around the current center.
func (e *Editor) ZoomIn() {
	e.input(func(c *interact.Controller) { c.ZoomIn() })
}

// ZoomOut halves the zoom around the current center.
func (e *Editor) ZoomOut() {
	e.input(func(c *interact.Controller) { c.ZoomOut() })
}

// FocusOnMarker centers the view on the start point.
func (e *Editor) FocusOnMarker() {
	e.input(func(c *interact.Controller) { c.FocusOnMarker() })
}

// NudgeMarker moves the start point by deltaMs milliseconds.
func (e *Editor) NudgeMarker(deltaMs float64) {
	e.input(func(c *interact.Controller) { c.NudgeMarker(deltaMs) })
}

// SetMarkerToCurrentPlayback moves the start point to the playhead.
func (e *Editor) SetMarkerToCurrentPlayback() {
	e.input(func(c *interact.Controller) { c.SetMarkerToCurrentPlayback() })
}

// SetStartPoint moves the start point to seconds without moving playback.
// It returns the applied, clamped value.
func (e *Editor) SetStartPoint(seconds float64) (float64, error) {
	e.mu.Lock()
	defer e.unlock()
	if e.audio == nil {
		return 0, ErrNoAudio
	}
	return e.syncer.SetStartPoint(seconds), nil
}

// Seek moves playback to seconds and returns the applied time.
func (e *Editor) Seek(seconds float64) (float64, error) {
	e.mu.Lock()
	defer e.unlock()
	if e.audio == nil {
		return 0, ErrNoAudio
	}
	t := e.syncer.Seek(seconds)
	e.metrics.RecordSeek(context.Background(), "api")
	return t, nil
}

// DirectTimeEntry parses input as M:SS.mmm, seeks to it and makes it the
// start point. Malformed or out-of-range input changes nothing; the returned
// error carries a message meant for the user.
func (e *Editor) DirectTimeEntry(input string) (float64, error) {
	e.mu.Lock()
	defer e.unlock()
	if e.audio == nil {
		return 0, ErrNoAudio
	}
	e.host.entry = true
	defer func() { e.host.entry = false }()
	return e.ctrl.DirectTimeEntry(input)
}

// Play starts playback from the playhead.
func (e *Editor) Play(ctx context.Context) error {
	e.mu.Lock()
	defer e.unlock()
	if e.audio == nil {
		return ErrNoAudio
	}
	if err := e.syncer.Play(ctx); err != nil {
		return fmt.Errorf("editor: %w", err)
	}
	return nil
}

// Pause stops playback.
func (e *Editor) Pause() error {
	e.mu.Lock()
	defer e.unlock()
	if e.audio == nil {
		return ErrNoAudio
	}
	if err := e.syncer.Pause(); err != nil {
		return fmt.Errorf("editor: %w", err)
	}
	return nil
}

// TogglePlay switches between playing and paused.
func (e *Editor) TogglePlay(ctx context.Context) error {
	e.mu.Lock()
	defer e.unlock()
	if e.audio == nil {
		return ErrNoAudio
	}
	if err := e.syncer.TogglePlay(ctx); err != nil {
		return fmt.Errorf("editor: %w", err)
	}
	return nil
}

// PlayFromMarker seeks to the start point and plays.
func (e *Editor) PlayFromMarker(ctx context.Context) error {
	e.mu.Lock()
	defer e.unlock()
	if e.audio == nil {
		return ErrNoAudio
	}
	e.syncer.Seek(e.syncer.Marker())
	if err := e.syncer.Play(ctx); err != nil {
		return fmt.Errorf("editor: %w", err)
	}
	return nil
}
