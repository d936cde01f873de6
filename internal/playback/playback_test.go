package playback_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/MrWong99/wavecue/internal/playback"
	"github.com/MrWong99/wavecue/internal/timeline"
	"github.com/MrWong99/wavecue/pkg/audio/mock"
)

type markerEvent struct {
	seconds float64
	reason  playback.Reason
}

type fixture struct {
	el     *mock.MediaElement
	mirror *mock.MediaElement
	model  *timeline.Model
	sync   *playback.Synchronizer
	now    time.Time
	events []markerEvent
	saves  []float64
}

func newFixture(t *testing.T, cfg playback.Config, zoom int) *fixture {
	t.Helper()
	f := &fixture{
		el:     mock.NewMediaElement(180),
		mirror: mock.NewMediaElement(180),
		model:  timeline.New(180, zoom),
		now:    time.Unix(1000, 0),
	}
	f.sync = playback.New(f.el, f.model, cfg,
		playback.WithMirror(f.mirror),
		playback.WithNow(func() time.Time { return f.now }),
		playback.WithMarkerListener(func(s float64, r playback.Reason) {
			f.events = append(f.events, markerEvent{s, r})
		}),
		playback.WithMarkerSaver(func(s float64) { f.saves = append(f.saves, s) }),
	)
	return f
}

func TestNudgeClampsAtZero(t *testing.T) {
	t.Parallel()
	f := newFixture(t, playback.DefaultConfig(), 1)
	f.sync.SetStartPoint(0.002)
	if got := f.sync.NudgeStartPoint(-5); got != 0 {
		t.Errorf("marker = %v, want 0", got)
	}
	if f.sync.Marker() != 0 {
		t.Errorf("Marker() = %v, want 0", f.sync.Marker())
	}
}

func TestNudgeClampsAtDuration(t *testing.T) {
	t.Parallel()
	f := newFixture(t, playback.DefaultConfig(), 1)
	f.sync.SetStartPoint(179.99)
	if got := f.sync.NudgeStartPoint(100); got != 180 {
		t.Errorf("marker = %v, want 180", got)
	}
	if got := f.sync.NudgeStartPoint(-1); got != 179.999 {
		t.Errorf("marker = %v, want 179.999", got)
	}
}

func TestMarkerDoesNotMovePlayback(t *testing.T) {
	t.Parallel()
	f := newFixture(t, playback.DefaultConfig(), 1)
	f.sync.SetStartPoint(12.345)
	f.sync.NudgeStartPoint(10)
	if calls := f.el.SetTimeCallsSnapshot(); len(calls) != 0 {
		t.Errorf("element was seeked: %v", calls)
	}
	if f.sync.Position() != 0 {
		t.Errorf("position = %v, want 0", f.sync.Position())
	}
}

func TestMarkerNotificationsAndSaves(t *testing.T) {
	t.Parallel()
	f := newFixture(t, playback.DefaultConfig(), 1)

	f.sync.SetStartPoint(12.345)
	f.sync.SetStartPoint(12.345) // unchanged: silent
	f.sync.NudgeStartPoint(5)
	f.sync.EnterStartPoint(30)
	f.sync.RestoreStartPoint(40)

	want := []markerEvent{
		{12.345, playback.ReasonSet},
		{12.35, playback.ReasonNudge},
		{30, playback.ReasonEntry},
		{40, playback.ReasonRestored},
	}
	if len(f.events) != len(want) {
		t.Fatalf("events = %v, want %v", f.events, want)
	}
	for i := range want {
		if f.events[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, f.events[i], want[i])
		}
	}
	if len(f.saves) != 3 {
		t.Errorf("saves = %v, want 3 (restores are not saved)", f.saves)
	}
	if f.el.CurrentTime() != 40 {
		t.Errorf("restore should position playback at the marker, got %v", f.el.CurrentTime())
	}
}

func TestSeekUpdatesImmediately(t *testing.T) {
	t.Parallel()
	f := newFixture(t, playback.DefaultConfig(), 1)

	if got := f.sync.Seek(12.34567); got != 12.346 {
		t.Errorf("Seek = %v, want 12.346", got)
	}
	if f.sync.Position() != 12.346 {
		t.Errorf("position = %v, want 12.346", f.sync.Position())
	}
	if f.el.CurrentTime() != 12.346 || f.mirror.CurrentTime() != 12.346 {
		t.Errorf("element %v mirror %v, want 12.346", f.el.CurrentTime(), f.mirror.CurrentTime())
	}
	if got := f.sync.Seek(-4); got != 0 {
		t.Errorf("Seek(-4) = %v, want 0", got)
	}
	if got := f.sync.Seek(500); got != 180 {
		t.Errorf("Seek(500) = %v, want 180", got)
	}
}

func TestTickFollowsExternalChanges(t *testing.T) {
	t.Parallel()
	f := newFixture(t, playback.DefaultConfig(), 1)
	f.sync.Seek(10)

	f.el.Jump(33.3) // someone used the native controls
	f.sync.Tick()

	if f.sync.Position() != 33.3 {
		t.Errorf("position = %v, want 33.3", f.sync.Position())
	}
	if f.mirror.CurrentTime() != 33.3 {
		t.Errorf("mirror = %v, want 33.3", f.mirror.CurrentTime())
	}
}

func TestStartupDriftCorrection(t *testing.T) {
	t.Parallel()
	f := newFixture(t, playback.DefaultConfig(), 1)
	f.sync.Seek(10)
	if err := f.sync.Play(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}

	f.now = f.now.Add(100 * time.Millisecond)
	f.el.Jump(10.102) // within tolerance of 10.1
	f.sync.Tick()
	if f.sync.DriftCorrections() != 0 {
		t.Fatalf("corrected a drift within tolerance")
	}

	f.el.Jump(10.3)
	f.sync.Tick()
	if f.sync.DriftCorrections() != 1 {
		t.Fatalf("corrections = %d, want 1", f.sync.DriftCorrections())
	}
	if got := f.el.CurrentTime(); math.Abs(got-10.1) > 1e-9 {
		t.Errorf("element = %v, want 10.1", got)
	}

	// Past the window drift is no longer checked.
	f.now = f.now.Add(500 * time.Millisecond)
	f.el.Jump(20)
	f.sync.Tick()
	if f.sync.DriftCorrections() != 1 || f.sync.Position() != 20 {
		t.Errorf("corrections %d position %v, want 1 and 20", f.sync.DriftCorrections(), f.sync.Position())
	}
}

func TestFollowPlayhead(t *testing.T) {
	t.Parallel()
	cfg := playback.DefaultConfig()
	cfg.FollowPlayhead = true
	f := newFixture(t, cfg, 4) // visible 45s
	_ = f.sync.Play(context.Background())
	f.now = f.now.Add(time.Second)

	f.el.Jump(30)
	f.sync.Tick()
	if f.model.Offset() != 0 {
		t.Errorf("offset moved to %v inside the inner band", f.model.Offset())
	}
	f.el.Jump(40)
	f.sync.Tick()
	if got := f.model.Offset(); math.Abs(got-31) > 1e-9 {
		t.Errorf("offset = %v, want 31", got)
	}

	cfg.FollowPlayhead = false
	f.sync.SetConfig(cfg)
	f.el.Jump(100)
	f.sync.Tick()
	if got := f.model.Offset(); math.Abs(got-31) > 1e-9 {
		t.Errorf("offset changed to %v with follow disabled", got)
	}
}

func TestScrubBracketing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("resumes when it was playing", func(t *testing.T) {
		f := newFixture(t, playback.DefaultConfig(), 1)
		_ = f.sync.Play(ctx)
		f.sync.BeginScrub()
		if !f.el.Paused() {
			t.Fatal("scrub should pause playback")
		}
		f.sync.Seek(50)
		f.sync.EndScrub(ctx)
		if f.el.Paused() {
			t.Error("playback should resume after the scrub")
		}
	})

	t.Run("stays paused when it was paused", func(t *testing.T) {
		f := newFixture(t, playback.DefaultConfig(), 1)
		f.sync.BeginScrub()
		f.sync.EndScrub(ctx)
		play, pause := f.el.Counts()
		if play != 0 || pause != 0 {
			t.Errorf("play %d pause %d, want 0 and 0", play, pause)
		}
	})
}

func TestTogglePlay(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, playback.DefaultConfig(), 1)

	_ = f.sync.TogglePlay(ctx)
	if f.el.Paused() || f.mirror.Paused() {
		t.Fatal("toggle should start both elements")
	}
	_ = f.sync.TogglePlay(ctx)
	if !f.el.Paused() || !f.mirror.Paused() {
		t.Fatal("toggle should pause both elements")
	}
}

func TestPlayError(t *testing.T) {
	t.Parallel()
	f := newFixture(t, playback.DefaultConfig(), 1)
	blocked := errors.New("autoplay blocked")
	f.el.PlayError = blocked
	if err := f.sync.Play(context.Background()); !errors.Is(err, blocked) {
		t.Errorf("err = %v, want wrapped autoplay error", err)
	}
}
