package resilience

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

// backend is a named stand-in for a decoder or store.
type backend struct {
	name  string
	err   error
	calls int
}

func (b *backend) run() (string, error) {
	b.calls++
	if b.err != nil {
		return "", b.err
	}
	return "decoded by " + b.name, nil
}

func newGroup(cfg CircuitBreakerConfig, bs ...*backend) *FallbackGroup[*backend] {
	fg := NewFallbackGroup(bs[0], bs[0].name, FallbackConfig{CircuitBreaker: cfg})
	for _, b := range bs[1:] {
		fg.AddFallback(b.name, b)
	}
	return fg
}

func TestExecuteWithResult_PrefersPrimary(t *testing.T) {
	native, ffmpeg := &backend{name: "native"}, &backend{name: "ffmpeg"}
	fg := newGroup(CircuitBreakerConfig{MaxFailures: 3}, native, ffmpeg)

	got, err := ExecuteWithResult(fg, (*backend).run)
	if err != nil || got != "decoded by native" {
		t.Fatalf("got %q, %v; want native result", got, err)
	}
	if ffmpeg.calls != 0 {
		t.Errorf("fallback called %d times, want 0", ffmpeg.calls)
	}
}

func TestExecuteWithResult_FailsOver(t *testing.T) {
	native := &backend{name: "native", err: errTest}
	ffmpeg := &backend{name: "ffmpeg"}
	fg := newGroup(CircuitBreakerConfig{MaxFailures: 3}, native, ffmpeg)

	got, err := ExecuteWithResult(fg, (*backend).run)
	if err != nil || got != "decoded by ffmpeg" {
		t.Fatalf("got %q, %v; want ffmpeg result", got, err)
	}
}

func TestExecuteWithResult_AllFail(t *testing.T) {
	last := errors.New("ffmpeg: exit status 1")
	fg := newGroup(CircuitBreakerConfig{MaxFailures: 3},
		&backend{name: "native", err: errTest},
		&backend{name: "ffmpeg", err: last},
	)

	_, err := ExecuteWithResult(fg, (*backend).run)
	if !errors.Is(err, ErrAllFailed) {
		t.Errorf("err = %v, want ErrAllFailed", err)
	}
	if !errors.Is(err, last) {
		t.Errorf("err = %v, want it to wrap the last failure", err)
	}
}

func TestExecuteWithResult_SkipsOpenBreaker(t *testing.T) {
	native := &backend{name: "native", err: errTest}
	ffmpeg := &backend{name: "ffmpeg"}
	fg := newGroup(CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour}, native, ffmpeg)

	for range 5 {
		if _, err := ExecuteWithResult(fg, (*backend).run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if native.calls != 2 {
		t.Errorf("primary called %d times, want 2 before its breaker opened", native.calls)
	}
	if ffmpeg.calls != 5 {
		t.Errorf("fallback called %d times, want 5", ffmpeg.calls)
	}
	if st := fg.States(); st["native"] != StateOpen || st["ffmpeg"] != StateClosed {
		t.Errorf("states = %v, want native open and ffmpeg closed", st)
	}
}

func TestExecuteWithResult_CancellationStopsWalk(t *testing.T) {
	native := &backend{name: "native", err: context.Canceled}
	ffmpeg := &backend{name: "ffmpeg"}
	fg := newGroup(CircuitBreakerConfig{MaxFailures: 1}, native, ffmpeg)

	_, err := ExecuteWithResult(fg, (*backend).run)
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want bare context.Canceled", err)
	}
	if ffmpeg.calls != 0 {
		t.Error("fallback ran after cancellation")
	}
	if fg.States()["native"] != StateClosed {
		t.Error("cancellation counted against the breaker")
	}
}

func TestFallbackGroup_Names(t *testing.T) {
	fg := newGroup(CircuitBreakerConfig{},
		&backend{name: "native"}, &backend{name: "ffmpeg"}, &backend{name: "remote"})
	if got := fg.Names(); !slices.Equal(got, []string{"native", "ffmpeg", "remote"}) {
		t.Errorf("Names = %v", got)
	}
}
