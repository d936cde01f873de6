package config

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/wavecue/pkg/audio"
	"github.com/MrWong99/wavecue/pkg/cache"
)

// ErrNotRegistered is returned by Create* methods when no factory has been
// registered under the requested name.
var ErrNotRegistered = errors.New("config: backend not registered")

// StoreFactory builds a cache store from its config section.
type StoreFactory func(ctx context.Context, cfg CacheConfig) (cache.Store, error)

// ElementFactory builds the media element playback drives.
type ElementFactory func(cfg PlaybackConfig) (audio.MediaElement, error)

// Registry maps cache backends and playback outputs to their constructors.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	stores   map[CacheBackend]StoreFactory
	elements map[Output]ElementFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		stores:   make(map[CacheBackend]StoreFactory),
		elements: make(map[Output]ElementFactory),
	}
}

// RegisterStore registers a store factory for backend.
// Subsequent calls with the same backend overwrite the previous registration.
func (r *Registry) RegisterStore(backend CacheBackend, factory StoreFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[backend] = factory
}

// RegisterElement registers a media element factory for output.
func (r *Registry) RegisterElement(output Output, factory ElementFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.elements[output] = factory
}

// CreateStore instantiates the store registered for cfg.Backend.
// Returns [ErrNotRegistered] if no factory has been registered for it.
func (r *Registry) CreateStore(ctx context.Context, cfg CacheConfig) (cache.Store, error) {
	r.mu.RLock()
	factory, ok := r.stores[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: cache/%q", ErrNotRegistered, cfg.Backend)
	}
	return factory(ctx, cfg)
}

// CreateElement instantiates the media element registered for cfg.Output.
func (r *Registry) CreateElement(cfg PlaybackConfig) (audio.MediaElement, error) {
	r.mu.RLock()
	factory, ok := r.elements[cfg.Output]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: playback/%q", ErrNotRegistered, cfg.Output)
	}
	return factory(cfg)
}
