package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/wavecue/pkg/cache"
	cachemock "github.com/MrWong99/wavecue/pkg/cache/mock"
)

var errDBDown = errors.New("connection refused")

func TestGuardedStore_PassThrough(t *testing.T) {
	inner := cachemock.New()
	g := NewGuardedStore(inner, CircuitBreakerConfig{MaxFailures: 2})
	ctx := context.Background()

	if err := g.Put(ctx, cache.MarkerRecord("song.wav", 12.345)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	rec, found, err := g.Get(ctx, cache.KindMarker, "song.wav")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found || rec.Marker != 12.345 {
		t.Fatalf("Get = (%v, %v), want marker 12.345", rec.Marker, found)
	}
	if err := g.Delete(ctx, "song.wav"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, found, _ := g.Get(ctx, cache.KindMarker, "song.wav"); found {
		t.Fatal("record still present after Delete")
	}
}

func TestGuardedStore_OpensAfterFailures(t *testing.T) {
	inner := cachemock.New()
	inner.GetErr = errDBDown
	g := NewGuardedStore(inner, CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _, err := g.Get(ctx, cache.KindView, "a")
		if !errors.Is(err, errDBDown) {
			t.Fatalf("call %d: err = %v, want errDBDown", i, err)
		}
	}
	if g.State() != StateOpen {
		t.Fatalf("state = %v, want open", g.State())
	}

	_, _, err := g.Get(ctx, cache.KindView, "a")
	var se *cache.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("err = %T, want *cache.StorageError", err)
	}
	if !errors.Is(err, cache.ErrUnavailable) || !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrUnavailable and ErrCircuitOpen", err)
	}
	if len(inner.Gets) != 2 {
		t.Fatalf("inner Get called %d times, want 2", len(inner.Gets))
	}
}

func TestGuardedStore_InvalidRecordDoesNotTrip(t *testing.T) {
	inner := cachemock.New()
	g := NewGuardedStore(inner, CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})
	ctx := context.Background()

	bad := cache.ViewRecord("a", cache.View{ZoomLevel: 0})
	for i := 0; i < 3; i++ {
		if err := g.PutBatch(ctx, []cache.Record{bad}); err == nil {
			t.Fatal("expected validation error")
		}
	}
	if g.State() != StateClosed {
		t.Fatalf("state = %v, want closed", g.State())
	}
	if len(inner.Batches) != 0 {
		t.Fatalf("inner PutBatch called %d times, want 0", len(inner.Batches))
	}
}

func TestGuardedStore_PingResets(t *testing.T) {
	inner := cachemock.New()
	inner.SetPutErr(errDBDown)
	g := NewGuardedStore(inner, CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})
	ctx := context.Background()

	_ = g.Put(ctx, cache.MarkerRecord("a", 1))
	if g.State() != StateOpen {
		t.Fatalf("state = %v, want open", g.State())
	}

	inner.SetPutErr(nil)
	if err := g.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if g.State() != StateClosed {
		t.Fatalf("state = %v, want closed after successful ping", g.State())
	}
	if err := g.Put(ctx, cache.MarkerRecord("a", 2)); err != nil {
		t.Fatalf("Put after reset: %v", err)
	}
}

func TestGuardedStore_CancelDoesNotTrip(t *testing.T) {
	inner := cachemock.New()
	inner.GetErr = context.Canceled
	g := NewGuardedStore(inner, CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})

	for i := 0; i < 3; i++ {
		_, _, _ = g.Get(context.Background(), cache.KindAudio, "a")
	}
	if g.State() != StateClosed {
		t.Fatalf("state = %v, want closed", g.State())
	}
}
