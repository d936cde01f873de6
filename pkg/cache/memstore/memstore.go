// Package memstore provides an in-process [cache.Store] bounded by an LRU
// policy. Contents do not survive a restart.
package memstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrWong99/wavecue/pkg/cache"
)

// Compile-time assertion that Store satisfies cache.Store.
var _ cache.Store = (*Store)(nil)

// errClosed is returned by every operation after Close.
var errClosed = errors.New("store closed")

// Option configures a [Store].
type Option func(*Store)

// WithMaxRecords bounds the number of records kept per kind. When a write
// exceeds the bound the least recently used record of that kind is evicted.
// Zero or negative means unbounded.
func WithMaxRecords(n int) Option {
	return func(s *Store) { s.maxRecords = n }
}

// WithNow overrides the clock used for timestamps and recency.
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

type entry struct {
	rec      cache.Record
	lastUsed time.Time
	seq      uint64
}

// Store is a thread-safe in-memory cache store.
type Store struct {
	maxRecords int
	now        func() time.Time

	mu      sync.Mutex
	records map[cache.Kind]map[string]*entry
	seq     uint64
	closed  bool
}

// New returns an empty [Store].
func New(opts ...Option) *Store {
	s := &Store{
		now:     time.Now,
		records: make(map[cache.Kind]map[string]*entry, len(cache.Kinds)),
	}
	for _, o := range opts {
		o(s)
	}
	for _, k := range cache.Kinds {
		s.records[k] = make(map[string]*entry)
	}
	return s
}

// Put implements [cache.Store].
func (s *Store) Put(ctx context.Context, r cache.Record) error {
	return s.PutBatch(ctx, []cache.Record{r})
}

// PutBatch implements [cache.Store]. Records are validated before any is
// applied, so a bad record leaves the store untouched.
func (s *Store) PutBatch(ctx context.Context, records []cache.Record) error {
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return &cache.StorageError{Op: "put", Kind: r.Kind, Key: r.Key, Err: err}
		}
	}
	if err := ctx.Err(); err != nil {
		return &cache.StorageError{Op: "put", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &cache.StorageError{Op: "put", Err: errClosed}
	}
	now := s.now()
	for _, r := range records {
		if r.Timestamp.IsZero() {
			r.Timestamp = now
		}
		s.seq++
		s.records[r.Kind][r.Key] = &entry{rec: r, lastUsed: now, seq: s.seq}
		s.evictLocked(r.Kind)
	}
	return nil
}

// evictLocked drops least recently used records of kind beyond the bound.
func (s *Store) evictLocked(kind cache.Kind) {
	if s.maxRecords <= 0 {
		return
	}
	m := s.records[kind]
	for len(m) > s.maxRecords {
		var (
			oldestKey string
			oldest    *entry
		)
		for k, e := range m {
			if oldest == nil || older(e, oldest) {
				oldestKey, oldest = k, e
			}
		}
		delete(m, oldestKey)
	}
}

// older orders entries by last use, breaking ties by insertion sequence.
func older(a, b *entry) bool {
	if !a.lastUsed.Equal(b.lastUsed) {
		return a.lastUsed.Before(b.lastUsed)
	}
	return a.seq < b.seq
}

// Get implements [cache.Store]. A hit refreshes the record's recency.
func (s *Store) Get(ctx context.Context, kind cache.Kind, key string) (cache.Record, bool, error) {
	if !kind.Valid() {
		return cache.Record{}, false, &cache.StorageError{Op: "get", Kind: kind, Key: key, Err: errors.New("unknown kind")}
	}
	if err := ctx.Err(); err != nil {
		return cache.Record{}, false, &cache.StorageError{Op: "get", Kind: kind, Key: key, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return cache.Record{}, false, &cache.StorageError{Op: "get", Kind: kind, Key: key, Err: errClosed}
	}
	e, ok := s.records[kind][key]
	if !ok {
		return cache.Record{}, false, nil
	}
	s.seq++
	e.lastUsed = s.now()
	e.seq = s.seq
	return e.rec, true, nil
}

// Delete implements [cache.Store].
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &cache.StorageError{Op: "delete", Key: key, Err: errClosed}
	}
	for _, m := range s.records {
		delete(m, key)
	}
	return nil
}

// Len returns the number of records of kind.
func (s *Store) Len(kind cache.Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records[kind])
}

// Ping implements [cache.Store].
func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &cache.StorageError{Op: "ping", Err: cache.ErrUnavailable}
	}
	return nil
}

// Close implements [cache.Store].
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
