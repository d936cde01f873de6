package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/wavecue/pkg/cache"
)

var _ cache.Store = (*GuardedStore)(nil)

// GuardedStore wraps a [cache.Store] with a [CircuitBreaker]. While the
// circuit is open every call fails immediately with a [*cache.StorageError]
// wrapping [cache.ErrUnavailable] and [ErrCircuitOpen].
//
// Invalid records are rejected before the breaker sees them so that caller
// mistakes never open the circuit.
type GuardedStore struct {
	inner   cache.Store
	breaker *CircuitBreaker
}

// NewGuardedStore wraps inner. cfg.Name defaults to "cache".
func NewGuardedStore(inner cache.Store, cfg CircuitBreakerConfig) *GuardedStore {
	if cfg.Name == "" {
		cfg.Name = "cache"
	}
	return &GuardedStore{inner: inner, breaker: NewCircuitBreaker(cfg)}
}

// State returns the breaker state.
func (g *GuardedStore) State() State { return g.breaker.State() }

// Put implements [cache.Store].
func (g *GuardedStore) Put(ctx context.Context, r cache.Record) error {
	if err := r.Validate(); err != nil {
		return cache.NewStorageError("put", r.Kind, r.Key, err)
	}
	return g.guard("put", r.Kind, r.Key, func() error {
		return g.inner.Put(ctx, r)
	})
}

// PutBatch implements [cache.Store].
func (g *GuardedStore) PutBatch(ctx context.Context, records []cache.Record) error {
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return cache.NewStorageError("put batch", r.Kind, r.Key, err)
		}
	}
	return g.guard("put batch", "", "", func() error {
		return g.inner.PutBatch(ctx, records)
	})
}

// Get implements [cache.Store].
func (g *GuardedStore) Get(ctx context.Context, kind cache.Kind, key string) (cache.Record, bool, error) {
	var (
		rec   cache.Record
		found bool
	)
	err := g.guard("get", kind, key, func() error {
		var err error
		rec, found, err = g.inner.Get(ctx, kind, key)
		return err
	})
	return rec, found, err
}

// Delete implements [cache.Store].
func (g *GuardedStore) Delete(ctx context.Context, key string) error {
	return g.guard("delete", "", key, func() error {
		return g.inner.Delete(ctx, key)
	})
}

// Ping implements [cache.Store]. It bypasses the breaker so that health
// checks always see the real backend, and resets the breaker on success.
func (g *GuardedStore) Ping(ctx context.Context) error {
	if err := g.inner.Ping(ctx); err != nil {
		return err
	}
	if g.breaker.State() != StateClosed {
		g.breaker.Reset()
	}
	return nil
}

// Close implements [cache.Store].
func (g *GuardedStore) Close() error { return g.inner.Close() }

func (g *GuardedStore) guard(op string, kind cache.Kind, key string, fn func() error) error {
	err := g.breaker.Execute(fn)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCircuitOpen) {
		err = fmt.Errorf("%w: %w", cache.ErrUnavailable, ErrCircuitOpen)
	}
	return cache.NewStorageError(op, kind, key, err)
}
