// Package mock provides an in-memory mock implementation of [cache.Store]
// for unit tests.
//
// The mock records every call and lets tests inject errors through exported
// fields. It is safe for concurrent use.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/wavecue/pkg/cache"
)

var _ cache.Store = (*Store)(nil)

type recordKey struct {
	kind cache.Kind
	key  string
}

// Store is a mock [cache.Store].
type Store struct {
	mu      sync.Mutex
	records map[recordKey]cache.Record

	// PutErr, when non-nil, is returned by Put and PutBatch instead of
	// storing anything.
	PutErr error

	// GetErr, when non-nil, is returned by Get.
	GetErr error

	// PingErr is returned by Ping.
	PingErr error

	// Puts records every record passed to Put or PutBatch, in order.
	Puts []cache.Record

	// Batches records the length of every PutBatch call.
	Batches []int

	// Gets records every (kind, key) requested.
	Gets []string

	// CallCountDelete records how many times Delete was called.
	CallCountDelete int
}

// New returns an empty mock store.
func New() *Store {
	return &Store{records: make(map[recordKey]cache.Record)}
}

// Seed stores r directly, bypassing error injection and call recording.
func (s *Store) Seed(r cache.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records == nil {
		s.records = make(map[recordKey]cache.Record)
	}
	s.records[recordKey{r.Kind, r.Key}] = r
}

// Put implements [cache.Store].
func (s *Store) Put(ctx context.Context, r cache.Record) error {
	return s.put(ctx, []cache.Record{r}, false)
}

// PutBatch implements [cache.Store].
func (s *Store) PutBatch(ctx context.Context, records []cache.Record) error {
	return s.put(ctx, records, true)
}

func (s *Store) put(_ context.Context, records []cache.Record, batch bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Puts = append(s.Puts, records...)
	if batch {
		s.Batches = append(s.Batches, len(records))
	}
	if s.PutErr != nil {
		return cache.NewStorageError("put", "", "", s.PutErr)
	}
	if s.records == nil {
		s.records = make(map[recordKey]cache.Record)
	}
	for _, r := range records {
		s.records[recordKey{r.Kind, r.Key}] = r
	}
	return nil
}

// Get implements [cache.Store].
func (s *Store) Get(_ context.Context, kind cache.Kind, key string) (cache.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Gets = append(s.Gets, string(kind)+"/"+key)
	if s.GetErr != nil {
		return cache.Record{}, false, cache.NewStorageError("get", kind, key, s.GetErr)
	}
	r, ok := s.records[recordKey{kind, key}]
	return r, ok, nil
}

// Delete implements [cache.Store].
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountDelete++
	for rk := range s.records {
		if rk.key == key {
			delete(s.records, rk)
		}
	}
	return nil
}

// Ping implements [cache.Store].
func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PingErr
}

// Close implements [cache.Store].
func (s *Store) Close() error { return nil }

// Record returns the stored record of kind for key.
func (s *Store) Record(kind cache.Kind, key string) (cache.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[recordKey{kind, key}]
	return r, ok
}

// PutsSnapshot returns a copy of Puts.
func (s *Store) PutsSnapshot() []cache.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]cache.Record, len(s.Puts))
	copy(out, s.Puts)
	return out
}

// SetPutErr sets PutErr under the lock.
func (s *Store) SetPutErr(err error) {
	s.mu.Lock()
	s.PutErr = err
	s.mu.Unlock()
}
