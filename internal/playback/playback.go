// Package playback keeps the editor's playhead and start-point marker in step
// with an externally owned [audio.MediaElement].
//
// The element is never assumed to be exclusively ours: every [Synchronizer.Tick]
// re-reads its position and paused state instead of trusting what was last
// written. Marker mutations never move playback.
//
// A Synchronizer is not safe for concurrent use. The editor serialises all
// calls, including Tick from the frame loop.
package playback

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/MrWong99/wavecue/internal/timeline"
	"github.com/MrWong99/wavecue/pkg/audio"
)

// Reason says why the marker changed.
type Reason string

const (
	ReasonSet      Reason = "set"
	ReasonNudge    Reason = "nudge"
	ReasonEntry    Reason = "entry"
	ReasonRestored Reason = "restored"
)

// Config holds the synchronizer settings.
type Config struct {
	// FollowPlayhead scrolls the timeline to keep the playhead visible.
	FollowPlayhead bool

	// FollowBand is the fraction of the window at each edge that triggers
	// a follow scroll.
	FollowBand float64

	// DriftTolerance is the largest startup deviation left uncorrected.
	DriftTolerance time.Duration

	// DriftWindow is how long after starting playback drift is checked.
	DriftWindow time.Duration
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		FollowBand:     0.2,
		DriftTolerance: 5 * time.Millisecond,
		DriftWindow:    500 * time.Millisecond,
	}
}

// Option configures a [Synchronizer].
type Option func(*Synchronizer)

// WithMirror keeps a secondary element at the same position.
func WithMirror(m audio.MediaElement) Option {
	return func(s *Synchronizer) { s.mirror = m }
}

// WithNow overrides the clock used for drift checks.
func WithNow(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

// WithMarkerListener registers fn to run after every marker change.
func WithMarkerListener(fn func(seconds float64, reason Reason)) Option {
	return func(s *Synchronizer) { s.onMarker = fn }
}

// WithMarkerSaver registers fn to persist the marker. It is called for
// every change except restores; debouncing is the caller's business.
func WithMarkerSaver(fn func(seconds float64)) Option {
	return func(s *Synchronizer) { s.save = fn }
}

// Synchronizer couples a media element with the timeline.
type Synchronizer struct {
	el     audio.MediaElement
	mirror audio.MediaElement
	model  *timeline.Model
	cfg    Config
	now    func() time.Time

	onMarker func(float64, Reason)
	save     func(float64)

	position float64
	marker   float64

	scrubbing     bool
	resumeOnScrub bool

	driftArmed  bool
	intended    float64
	armedAt     time.Time
	corrections int
}

// New returns a synchronizer for el driving model.
func New(el audio.MediaElement, model *timeline.Model, cfg Config, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		el:    el,
		model: model,
		cfg:   cfg,
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetConfig replaces the settings.
func (s *Synchronizer) SetConfig(cfg Config) { s.cfg = cfg }

// Config returns the current settings.
func (s *Synchronizer) Config() Config { return s.cfg }

// Position returns the playhead as of the last tick or seek.
func (s *Synchronizer) Position() float64 { return s.position }

// Marker returns the start point.
func (s *Synchronizer) Marker() float64 { return s.marker }

// Paused reports the element's paused state.
func (s *Synchronizer) Paused() bool { return s.el.Paused() }

// DriftCorrections returns how many startup corrections were applied.
func (s *Synchronizer) DriftCorrections() int { return s.corrections }

func (s *Synchronizer) duration() float64 {
	return s.model.Duration()
}

func (s *Synchronizer) clamp(t float64) float64 {
	return max(0, min(s.duration(), audio.RoundMillis(t)))
}

// Tick pulls the element's position into the playhead. It applies startup
// drift correction, keeps the mirror aligned and, if enabled, follows the
// playhead. Callers skip Tick while the user drags the view.
func (s *Synchronizer) Tick() {
	pos := s.el.CurrentTime()
	paused := s.el.Paused()

	if s.driftArmed {
		elapsed := s.now().Sub(s.armedAt)
		switch {
		case elapsed > s.cfg.DriftWindow:
			s.driftArmed = false
		case !paused:
			expected := s.clamp(s.intended + elapsed.Seconds())
			if drift := math.Abs(pos - expected); drift > s.cfg.DriftTolerance.Seconds() {
				slog.Debug("playback: correcting startup drift", "drift", drift, "expected", expected)
				s.el.SetCurrentTime(expected)
				pos = expected
				s.corrections++
			}
		}
	}

	s.position = pos
	if s.mirror != nil && math.Abs(s.mirror.CurrentTime()-pos) > s.cfg.DriftTolerance.Seconds() {
		s.mirror.SetCurrentTime(pos)
	}
	if s.cfg.FollowPlayhead && !paused {
		s.model.Follow(pos, s.cfg.FollowBand)
	}
}

// Seek moves playback to seconds, clamped and rounded to the millisecond.
// The playhead updates immediately. It returns the applied time.
func (s *Synchronizer) Seek(seconds float64) float64 {
	t := s.clamp(seconds)
	s.el.SetCurrentTime(t)
	if s.mirror != nil {
		s.mirror.SetCurrentTime(t)
	}
	s.position = t
	s.arm(t)
	return t
}

// SetStartPoint moves the marker without touching playback.
func (s *Synchronizer) SetStartPoint(seconds float64) float64 {
	return s.setMarker(seconds, ReasonSet)
}

// EnterStartPoint is SetStartPoint for typed-in times.
func (s *Synchronizer) EnterStartPoint(seconds float64) float64 {
	return s.setMarker(seconds, ReasonEntry)
}

// NudgeStartPoint moves the marker by deltaMs milliseconds, clamped to the
// audio.
func (s *Synchronizer) NudgeStartPoint(deltaMs float64) float64 {
	return s.setMarker(s.marker+deltaMs/1000, ReasonNudge)
}

// RestoreStartPoint installs a persisted marker and positions playback at
// it. The marker listener fires; the saver does not.
func (s *Synchronizer) RestoreStartPoint(seconds float64) float64 {
	t := s.setMarker(seconds, ReasonRestored)
	s.Seek(t)
	s.driftArmed = false
	return t
}

// SetMarkerToPlayhead moves the marker to the current playhead.
func (s *Synchronizer) SetMarkerToPlayhead() float64 {
	return s.setMarker(s.position, ReasonSet)
}

func (s *Synchronizer) setMarker(seconds float64, reason Reason) float64 {
	t := s.clamp(seconds)
	if t == s.marker && reason != ReasonRestored {
		return t
	}
	s.marker = t
	if reason != ReasonRestored && s.save != nil {
		s.save(t)
	}
	if s.onMarker != nil {
		s.onMarker(t, reason)
	}
	return t
}

// Reset clears the marker and playhead for a new source without notifying.
func (s *Synchronizer) Reset() {
	s.marker = 0
	s.position = 0
	s.driftArmed = false
	s.scrubbing = false
	s.resumeOnScrub = false
}

// Play starts playback from the current position and arms drift
// correction.
func (s *Synchronizer) Play(ctx context.Context) error {
	s.arm(s.el.CurrentTime())
	if err := s.el.Play(ctx); err != nil {
		s.driftArmed = false
		return fmt.Errorf("playback: play: %w", err)
	}
	if s.mirror != nil {
		if err := s.mirror.Play(ctx); err != nil {
			slog.Warn("playback: mirror play failed", "err", err)
		}
	}
	return nil
}

// Pause stops playback.
func (s *Synchronizer) Pause() error {
	s.driftArmed = false
	if err := s.el.Pause(); err != nil {
		return fmt.Errorf("playback: pause: %w", err)
	}
	if s.mirror != nil {
		if err := s.mirror.Pause(); err != nil {
			slog.Warn("playback: mirror pause failed", "err", err)
		}
	}
	return nil
}

// TogglePlay pauses when playing and plays when paused.
func (s *Synchronizer) TogglePlay(ctx context.Context) error {
	if s.el.Paused() {
		return s.Play(ctx)
	}
	return s.Pause()
}

// BeginScrub pauses playback for an interactive scrub, remembering whether
// it was running.
func (s *Synchronizer) BeginScrub() {
	if s.scrubbing {
		return
	}
	s.scrubbing = true
	s.resumeOnScrub = !s.el.Paused()
	if s.resumeOnScrub {
		if err := s.Pause(); err != nil {
			slog.Warn("playback: pause for scrub failed", "err", err)
		}
	}
}

// EndScrub resumes playback if it was running when the scrub began.
func (s *Synchronizer) EndScrub(ctx context.Context) {
	if !s.scrubbing {
		return
	}
	s.scrubbing = false
	if s.resumeOnScrub {
		s.resumeOnScrub = false
		if err := s.Play(ctx); err != nil {
			slog.Warn("playback: resume after scrub failed", "err", err)
		}
	}
}

// Scrubbing reports whether a scrub is in progress.
func (s *Synchronizer) Scrubbing() bool { return s.scrubbing }

func (s *Synchronizer) arm(t float64) {
	s.intended = t
	s.armedAt = s.now()
	s.driftArmed = true
}
