// Package decoder turns an audio source key into [audio.DecodedAudio].
//
// A load first consults the cache; on a miss the bytes are fetched through a
// [BytesProvider], decoded, and written back to the cache. Cache failures
// never fail a load: they are logged and counted, and the decoder carries on
// as if the cache were empty.
//
// Concurrent loads of the same key share one fetch and decode.
package decoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"github.com/MrWong99/wavecue/internal/observe"
	"github.com/MrWong99/wavecue/pkg/audio"
	"github.com/MrWong99/wavecue/pkg/audio/decode"
	"github.com/MrWong99/wavecue/pkg/cache"
)

// DecodeError reports that a source could not be turned into audio. It is
// not retried automatically.
type DecodeError struct {
	Key string
	Err error
}

// Error implements error.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoder: load %q: %v", e.Key, e.Err)
}

// Unwrap returns the underlying cause.
func (e *DecodeError) Unwrap() error { return e.Err }

// Option configures a [Decoder].
type Option func(*Decoder)

// WithCache sets the store consulted before decoding. Without it every load
// decodes.
func WithCache(s cache.Store) Option {
	return func(d *Decoder) { d.store = s }
}

// WithMetrics overrides the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Decoder) { d.metrics = m }
}

// WithTargetRate resamples decoded audio to rate Hz before it is cached.
// Zero keeps the native rate.
func WithTargetRate(rate int) Option {
	return func(d *Decoder) { d.targetRate = rate }
}

// WithCacheTimeout bounds each cache call. Default: 5s.
func WithCacheTimeout(timeout time.Duration) Option {
	return func(d *Decoder) { d.cacheTimeout = timeout }
}

// Decoder loads audio sources. It is safe for concurrent use.
type Decoder struct {
	dec          decode.Decoder
	store        cache.Store
	metrics      *observe.Metrics
	targetRate   int
	cacheTimeout time.Duration

	group singleflight.Group
}

// New creates a decoder around the PCM decode primitive dec.
func New(dec decode.Decoder, opts ...Option) *Decoder {
	d := &Decoder{
		dec:          dec,
		cacheTimeout: 5 * time.Second,
	}
	for _, o := range opts {
		o(d)
	}
	if d.metrics == nil {
		d.metrics = observe.DefaultMetrics()
	}
	return d
}

// Load returns the decoded audio for key. Bytes are requested from p only on
// a cache miss. Failures to fetch or decode are returned as [*DecodeError];
// cancellation of ctx is returned as is.
//
// When several goroutines load the same key at once they share the work; a
// caller whose ctx ends early stops waiting without aborting the others.
func (d *Decoder) Load(ctx context.Context, key string, p BytesProvider) (*audio.DecodedAudio, error) {
	if key == "" {
		return nil, &DecodeError{Key: key, Err: errors.New("empty source key")}
	}
	ch := d.group.DoChan(key, func() (any, error) {
		return d.load(context.WithoutCancel(ctx), key, p)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*audio.DecodedAudio), nil
	}
}

func (d *Decoder) load(ctx context.Context, key string, p BytesProvider) (*audio.DecodedAudio, error) {
	ctx, span := observe.StartSpan(ctx, "decoder.Load")
	defer span.End()
	span.SetAttributes(attribute.String("source.key", key))
	start := time.Now()

	if cached, ok := d.fromCache(ctx, key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		d.metrics.DecodeDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("source", "cache")))
		return cached, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	decoded, err := d.decode(ctx, key, p)
	if err != nil {
		observe.FailSpan(span, err, "decode failed")
		d.metrics.DecodeErrors.Add(ctx, 1)
		return nil, err
	}
	d.metrics.DecodeDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("source", "decode")))

	d.toCache(ctx, key, decoded)
	return decoded, nil
}

func (d *Decoder) decode(ctx context.Context, key string, p BytesProvider) (*audio.DecodedAudio, error) {
	if p == nil {
		return nil, &DecodeError{Key: key, Err: errors.New("no bytes provider")}
	}
	data, err := p.Fetch(ctx, key)
	if err != nil {
		return nil, &DecodeError{Key: key, Err: err}
	}
	if len(data) == 0 {
		return nil, &DecodeError{Key: key, Err: decode.ErrEmpty}
	}
	decoded, err := d.dec.Decode(ctx, data)
	if err != nil {
		return nil, &DecodeError{Key: key, Err: err}
	}
	if d.targetRate > 0 && decoded.SampleRate() != d.targetRate {
		resampled := audio.Resample(decoded.Channels(), decoded.SampleRate(), d.targetRate)
		if decoded, err = audio.NewDecodedAudio(d.targetRate, resampled); err != nil {
			return nil, &DecodeError{Key: key, Err: err}
		}
	}
	slog.Debug("decoder: decoded source",
		"key", key,
		"sample_rate", decoded.SampleRate(),
		"channels", decoded.NumChannels(),
		"duration", decoded.Duration(),
	)
	return decoded, nil
}

// fromCache returns the cached audio for key when present and well formed.
func (d *Decoder) fromCache(ctx context.Context, key string) (*audio.DecodedAudio, bool) {
	if d.store == nil {
		return nil, false
	}
	cctx, cancel := context.WithTimeout(ctx, d.cacheTimeout)
	defer cancel()

	rec, found, err := d.store.Get(cctx, cache.KindAudio, key)
	switch {
	case err != nil:
		d.metrics.RecordCacheRequest(ctx, string(cache.KindAudio), "get", "error")
		observe.Logger(ctx).Warn("decoder: cache read failed, decoding instead", "key", key, "err", err)
		return nil, false
	case !found:
		d.metrics.RecordCacheRequest(ctx, string(cache.KindAudio), "get", "miss")
		return nil, false
	case !wellFormed(rec.Audio):
		d.metrics.RecordCacheRequest(ctx, string(cache.KindAudio), "get", "corrupt")
		observe.Logger(ctx).Warn("decoder: ignoring malformed cached audio", "key", key)
		return nil, false
	}
	d.metrics.RecordCacheRequest(ctx, string(cache.KindAudio), "get", "ok")
	return rec.Audio, true
}

// toCache writes decoded back to the cache. Failures are logged only.
func (d *Decoder) toCache(ctx context.Context, key string, decoded *audio.DecodedAudio) {
	if d.store == nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, d.cacheTimeout)
	defer cancel()

	if err := d.store.Put(cctx, cache.AudioRecord(key, decoded)); err != nil {
		d.metrics.RecordCacheRequest(ctx, string(cache.KindAudio), "put", "error")
		observe.Logger(ctx).Warn("decoder: cache write failed", "key", key, "err", err)
		return
	}
	d.metrics.RecordCacheRequest(ctx, string(cache.KindAudio), "put", "ok")
}

func wellFormed(a *audio.DecodedAudio) bool {
	return a != nil && a.SampleRate() > 0 && a.NumChannels() > 0 && a.SampleCount() > 0
}
