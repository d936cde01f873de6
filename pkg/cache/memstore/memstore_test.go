package memstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/wavecue/pkg/audio"
	"github.com/MrWong99/wavecue/pkg/cache"
	"github.com/MrWong99/wavecue/pkg/cache/memstore"
)

// stepClock advances one second on every call.
func stepClock() func() time.Time {
	t := time.Unix(0, 0)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestStore_GetMissingIsNotAnError(t *testing.T) {
	t.Parallel()
	s := memstore.New()
	_, found, err := s.Get(context.Background(), cache.KindMarker, "nope")
	if err != nil || found {
		t.Fatalf("Get = found %v, err %v; want false, nil", found, err)
	}
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memstore.New()

	if err := s.Put(ctx, cache.MarkerRecord("song", 12.345)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	rec, found, err := s.Get(ctx, cache.KindMarker, "song")
	if err != nil || !found {
		t.Fatalf("Get = found %v, err %v", found, err)
	}
	if rec.Marker != 12.345 {
		t.Errorf("marker = %v, want 12.345", rec.Marker)
	}
	if rec.Timestamp.IsZero() {
		t.Error("timestamp should be filled in")
	}

	// Kinds are independent.
	if _, found, _ := s.Get(ctx, cache.KindView, "song"); found {
		t.Error("view record should not exist")
	}
}

func TestStore_LastWriteWins(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memstore.New()
	_ = s.Put(ctx, cache.ViewRecord("song", cache.View{ZoomLevel: 2, OffsetSeconds: 1}))
	_ = s.Put(ctx, cache.ViewRecord("song", cache.View{ZoomLevel: 8, OffsetSeconds: 4}))

	rec, _, _ := s.Get(ctx, cache.KindView, "song")
	if rec.View.ZoomLevel != 8 || rec.View.OffsetSeconds != 4 {
		t.Errorf("view = %+v, want zoom 8 offset 4", rec.View)
	}
}

func TestStore_PutBatchIsAllOrNothing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memstore.New()

	err := s.PutBatch(ctx, []cache.Record{
		cache.MarkerRecord("song", 3),
		cache.ViewRecord("song", cache.View{}), // invalid zoom
	})
	var se *cache.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StorageError", err)
	}
	if _, found, _ := s.Get(ctx, cache.KindMarker, "song"); found {
		t.Error("no record may be written when the batch is rejected")
	}
}

func TestStore_EvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memstore.New(memstore.WithMaxRecords(2), memstore.WithNow(stepClock()))

	_ = s.Put(ctx, cache.MarkerRecord("a", 1))
	_ = s.Put(ctx, cache.MarkerRecord("b", 2))
	// Touch a so that b becomes the oldest.
	if _, found, _ := s.Get(ctx, cache.KindMarker, "a"); !found {
		t.Fatal("a should exist")
	}
	_ = s.Put(ctx, cache.MarkerRecord("c", 3))

	if n := s.Len(cache.KindMarker); n != 2 {
		t.Fatalf("Len = %d, want 2", n)
	}
	if _, found, _ := s.Get(ctx, cache.KindMarker, "b"); found {
		t.Error("b should have been evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, found, _ := s.Get(ctx, cache.KindMarker, k); !found {
			t.Errorf("%s should still exist", k)
		}
	}
}

func TestStore_DeleteRemovesAllKinds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memstore.New()
	d, _ := audio.NewDecodedAudio(10, [][]float32{{0.1, 0.2}})
	_ = s.PutBatch(ctx, []cache.Record{
		cache.AudioRecord("song", d),
		cache.ViewRecord("song", cache.View{ZoomLevel: 1}),
		cache.MarkerRecord("song", 0.5),
	})

	if err := s.Delete(ctx, "song"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	for _, k := range cache.Kinds {
		if _, found, _ := s.Get(ctx, k, "song"); found {
			t.Errorf("%s record survived Delete", k)
		}
	}
}

func TestStore_Closed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memstore.New()
	_ = s.Close()

	if err := s.Ping(ctx); !errors.Is(err, cache.ErrUnavailable) {
		t.Errorf("Ping err = %v, want ErrUnavailable", err)
	}
	var se *cache.StorageError
	if err := s.Put(ctx, cache.MarkerRecord("k", 1)); !errors.As(err, &se) {
		t.Errorf("Put err = %v, want *StorageError", err)
	}
	if _, _, err := s.Get(ctx, cache.KindMarker, "k"); !errors.As(err, &se) {
		t.Errorf("Get err = %v, want *StorageError", err)
	}
}
