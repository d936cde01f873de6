// Package cache defines the persistent cache that keeps decoded audio, the
// last-used view and the saved start-point marker per audio source.
//
// A source has at most one record of each [Kind]. Writes are last-write-wins
// with no merging across concurrent writers. A missing record is not an
// error: [Store.Get] reports it through its boolean result.
//
// Implementations:
//   - memstore: in-process, LRU bounded, lost on restart
//   - postgres: durable, one table per kind, transactional batch writes
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/wavecue/pkg/audio"
)

// Kind selects one of the three record flavours.
type Kind string

const (
	// KindAudio holds the decoded sample data.
	KindAudio Kind = "audio"

	// KindView holds the last-used zoom level and view offset.
	KindView Kind = "view"

	// KindMarker holds the saved start-point marker.
	KindMarker Kind = "marker"
)

// Kinds lists every record kind in a stable order.
var Kinds = []Kind{KindAudio, KindView, KindMarker}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindAudio, KindView, KindMarker:
		return true
	}
	return false
}

// View is the persisted timeline position.
type View struct {
	ZoomLevel     int
	OffsetSeconds float64
}

// Record is one cached value for a source. Only the field matching Kind is
// meaningful.
type Record struct {
	Kind Kind
	Key  string

	Audio  *audio.DecodedAudio
	View   View
	Marker float64

	// Timestamp is the time of the write. Stores fill it in when zero.
	Timestamp time.Time
}

// AudioRecord builds a [KindAudio] record.
func AudioRecord(key string, d *audio.DecodedAudio) Record {
	return Record{Kind: KindAudio, Key: key, Audio: d}
}

// ViewRecord builds a [KindView] record.
func ViewRecord(key string, v View) Record {
	return Record{Kind: KindView, Key: key, View: v}
}

// MarkerRecord builds a [KindMarker] record.
func MarkerRecord(key string, seconds float64) Record {
	return Record{Kind: KindMarker, Key: key, Marker: seconds}
}

// Validate checks that r can be stored.
func (r Record) Validate() error {
	switch {
	case !r.Kind.Valid():
		return fmt.Errorf("cache: unknown kind %q", r.Kind)
	case r.Key == "":
		return errors.New("cache: empty source key")
	case r.Kind == KindAudio && r.Audio == nil:
		return errors.New("cache: audio record without data")
	case r.Kind == KindView && r.View.ZoomLevel < 1:
		return fmt.Errorf("cache: view record with zoom level %d", r.View.ZoomLevel)
	}
	return nil
}

// Store is the persistent key-value store used by the decoder and editor.
//
// Implementations must be safe for concurrent use. Every failure is returned
// as a [*StorageError].
type Store interface {
	// Put durably writes r, replacing any previous record of the same kind
	// and key.
	Put(ctx context.Context, r Record) error

	// PutBatch writes all records atomically: either every record is stored
	// or none is.
	PutBatch(ctx context.Context, records []Record) error

	// Get returns the record of kind for key. found is false, with a nil
	// error, when no such record exists.
	Get(ctx context.Context, kind Kind, key string) (r Record, found bool, err error)

	// Delete removes every record of key.
	Delete(ctx context.Context, key string) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// ErrUnavailable indicates the backend cannot currently serve requests.
var ErrUnavailable = errors.New("cache: backend unavailable")

// StorageError describes a failed cache operation.
type StorageError struct {
	Op   string // "put", "get", "delete", "ping", ...
	Kind Kind
	Key  string
	Err  error
}

// Error implements error.
func (e *StorageError) Error() string {
	switch {
	case e.Kind != "" && e.Key != "":
		return fmt.Sprintf("cache: %s %s %q: %v", e.Op, e.Kind, e.Key, e.Err)
	case e.Key != "":
		return fmt.Sprintf("cache: %s %q: %v", e.Op, e.Key, e.Err)
	default:
		return fmt.Sprintf("cache: %s: %v", e.Op, e.Err)
	}
}

// Unwrap returns the underlying cause.
func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps err unless it already is a [*StorageError].
func NewStorageError(op string, kind Kind, key string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Kind: kind, Key: key, Err: err}
}
