package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/wavecue/pkg/audio"
	"github.com/MrWong99/wavecue/pkg/audio/decode"
)

var _ decode.Decoder = (*DecoderFallback)(nil)

// DecoderFallback implements [decode.Decoder] by trying several decoders in
// order. Input errors ([decode.ErrUnsupportedFormat], [decode.ErrEmpty]) move
// on to the next decoder without counting against the breaker; anything else
// is treated as the decoder being broken.
type DecoderFallback struct {
	group *FallbackGroup[decode.Decoder]
}

// NewDecoderFallback creates a [DecoderFallback] with primary as the first
// decoder.
func NewDecoderFallback(primary decode.Decoder, name string, cfg FallbackConfig) *DecoderFallback {
	if cfg.CircuitBreaker.IsFailure == nil {
		cfg.CircuitBreaker.IsFailure = isDecoderFailure
	}
	return &DecoderFallback{group: NewFallbackGroup(primary, name, cfg)}
}

// AddFallback registers another decoder, tried after all earlier ones.
func (f *DecoderFallback) AddFallback(name string, d decode.Decoder) {
	f.group.AddFallback(name, d)
}

// Names returns the decoder names in the order they are tried.
func (f *DecoderFallback) Names() []string { return f.group.Names() }

// Decode implements [decode.Decoder].
func (f *DecoderFallback) Decode(ctx context.Context, data []byte) (*audio.DecodedAudio, error) {
	return ExecuteWithResult(f.group, func(d decode.Decoder) (*audio.DecodedAudio, error) {
		return d.Decode(ctx, data)
	})
}

// Ping fails while every decoder's breaker is open, so readiness probes
// notice when nothing can decode.
func (f *DecoderFallback) Ping(context.Context) error {
	for _, st := range f.group.States() {
		if st != StateOpen {
			return nil
		}
	}
	return fmt.Errorf("resilience: all decoders unavailable: %v", f.Names())
}

func isDecoderFailure(err error) bool {
	switch {
	case errors.Is(err, decode.ErrUnsupportedFormat), errors.Is(err, decode.ErrEmpty):
		return false
	default:
		return defaultIsFailure(err)
	}
}
