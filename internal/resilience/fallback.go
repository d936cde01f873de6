package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed wraps the failures of a [FallbackGroup] in which no backend
// produced a result.
var ErrAllFailed = errors.New("resilience: all backends failed")

// FallbackConfig is the template for the breaker given to each backend of a
// [FallbackGroup]. Its Name is replaced by the backend's name.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

type backendSlot[T any] struct {
	name    string
	impl    T
	breaker *CircuitBreaker
}

// FallbackGroup holds interchangeable backends in preference order, each
// behind its own [CircuitBreaker].
//
// Add every backend before sharing the group. [ExecuteWithResult] may then be
// called concurrently.
type FallbackGroup[T any] struct {
	cfg   FallbackConfig
	slots []backendSlot[T]
}

// NewFallbackGroup returns a group whose first choice is primary.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.AddFallback(primaryName, primary)
	return fg
}

// AddFallback appends a backend with the lowest preference so far.
func (fg *FallbackGroup[T]) AddFallback(name string, impl T) {
	bc := fg.cfg.CircuitBreaker
	bc.Name = name
	fg.slots = append(fg.slots, backendSlot[T]{name: name, impl: impl, breaker: NewCircuitBreaker(bc)})
}

// Names lists the backends in preference order.
func (fg *FallbackGroup[T]) Names() []string {
	out := make([]string, 0, len(fg.slots))
	for _, s := range fg.slots {
		out = append(out, s.name)
	}
	return out
}

// States maps each backend name to its breaker state.
func (fg *FallbackGroup[T]) States() map[string]State {
	out := make(map[string]State, len(fg.slots))
	for _, s := range fg.slots {
		out[s.name] = s.breaker.State()
	}
	return out
}

// ExecuteWithResult returns the result of the first backend for which fn
// succeeds. Backends with an open breaker are passed over. If none succeeds
// the error wraps [ErrAllFailed] together with every backend's error.
//
// Context cancellation or expiry ends the walk at once and is returned
// unwrapped.
func ExecuteWithResult[T any, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var (
		zero R
		errs []error
	)
	for _, s := range fg.slots {
		var out R
		err := s.breaker.Execute(func() (err error) {
			out, err = fn(s.impl)
			return err
		})
		switch {
		case err == nil:
			return out, nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return zero, err
		case errors.Is(err, ErrCircuitOpen):
			slog.Debug("resilience: backend skipped, breaker open", "backend", s.name)
		default:
			slog.Warn("resilience: backend failed", "backend", s.name, "err", err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}
