package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/wavecue/pkg/audio"
	"github.com/MrWong99/wavecue/pkg/cache"
)

// Compile-time interface check.
var _ cache.Store = (*Store)(nil)

// Option configures a [Store].
type Option func(*Store)

// WithMaxRecords bounds the rows kept per table. After each write the oldest
// rows by updated_at beyond the bound are deleted. Zero disables eviction.
func WithMaxRecords(n int) Option {
	return func(s *Store) { s.maxRecords = n }
}

// Store is a PostgreSQL-backed cache store. All methods are safe for
// concurrent use.
type Store struct {
	pool       *pgxpool.Pool
	maxRecords int
}

// NewStore connects to the database at dsn, verifies connectivity and runs
// [Migrate].
func NewStore(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	s := &Store{pool: pool}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Put implements [cache.Store].
func (s *Store) Put(ctx context.Context, r cache.Record) error {
	return s.PutBatch(ctx, []cache.Record{r})
}

// PutBatch implements [cache.Store]. All records are written in a single
// transaction.
func (s *Store) PutBatch(ctx context.Context, records []cache.Record) error {
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return &cache.StorageError{Op: "put", Kind: r.Kind, Key: r.Key, Err: err}
		}
	}
	if len(records) == 0 {
		return nil
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		touched := make(map[cache.Kind]bool, len(cache.Kinds))
		for _, r := range records {
			if err := upsert(ctx, tx, r); err != nil {
				return cache.NewStorageError("put", r.Kind, r.Key, err)
			}
			touched[r.Kind] = true
		}
		if s.maxRecords <= 0 {
			return nil
		}
		for kind := range touched {
			if _, err := evict(ctx, tx, kind, s.maxRecords); err != nil {
				return cache.NewStorageError("evict", kind, "", err)
			}
		}
		return nil
	})
	return cache.NewStorageError("put", "", "", err)
}

// upsert writes one record inside tx.
func upsert(ctx context.Context, tx pgx.Tx, r cache.Record) error {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	var err error
	switch r.Kind {
	case cache.KindAudio:
		const q = `
			INSERT INTO audio_cache (source_key, sample_rate, channels, duration, samples, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (source_key) DO UPDATE SET
			    sample_rate = EXCLUDED.sample_rate,
			    channels    = EXCLUDED.channels,
			    duration    = EXCLUDED.duration,
			    samples     = EXCLUDED.samples,
			    updated_at  = EXCLUDED.updated_at`
		_, err = tx.Exec(ctx, q,
			r.Key,
			r.Audio.SampleRate(),
			r.Audio.NumChannels(),
			r.Audio.Duration(),
			audio.EncodePlanar(r.Audio),
			ts,
		)
	case cache.KindView:
		const q = `
			INSERT INTO view_cache (source_key, zoom_level, offset_seconds, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (source_key) DO UPDATE SET
			    zoom_level     = EXCLUDED.zoom_level,
			    offset_seconds = EXCLUDED.offset_seconds,
			    updated_at     = EXCLUDED.updated_at`
		_, err = tx.Exec(ctx, q, r.Key, r.View.ZoomLevel, r.View.OffsetSeconds, ts)
	case cache.KindMarker:
		const q = `
			INSERT INTO marker_cache (source_key, seconds, updated_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (source_key) DO UPDATE SET
			    seconds    = EXCLUDED.seconds,
			    updated_at = EXCLUDED.updated_at`
		_, err = tx.Exec(ctx, q, r.Key, r.Marker, ts)
	}
	return err
}

// Get implements [cache.Store]. A stored audio blob that fails to decode is
// reported as a [*cache.StorageError] wrapping [audio.ErrInvalidAudio].
func (s *Store) Get(ctx context.Context, kind cache.Kind, key string) (cache.Record, bool, error) {
	rec := cache.Record{Kind: kind, Key: key}
	var err error
	switch kind {
	case cache.KindAudio:
		var blob []byte
		err = s.pool.QueryRow(ctx,
			`SELECT samples, updated_at FROM audio_cache WHERE source_key = $1`, key,
		).Scan(&blob, &rec.Timestamp)
		if err == nil {
			rec.Audio, err = audio.DecodePlanar(blob)
		}
	case cache.KindView:
		err = s.pool.QueryRow(ctx,
			`SELECT zoom_level, offset_seconds, updated_at FROM view_cache WHERE source_key = $1`, key,
		).Scan(&rec.View.ZoomLevel, &rec.View.OffsetSeconds, &rec.Timestamp)
	case cache.KindMarker:
		err = s.pool.QueryRow(ctx,
			`SELECT seconds, updated_at FROM marker_cache WHERE source_key = $1`, key,
		).Scan(&rec.Marker, &rec.Timestamp)
	default:
		err = fmt.Errorf("unknown kind %q", kind)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return cache.Record{}, false, nil
	}
	if err != nil {
		return cache.Record{}, false, &cache.StorageError{Op: "get", Kind: kind, Key: key, Err: err}
	}
	return rec, true, nil
}

// Delete implements [cache.Store]. Every kind for key is removed in one
// transaction.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, kind := range cache.Kinds {
			if _, err := tx.Exec(ctx, "DELETE FROM "+tables[kind]+" WHERE source_key = $1", key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &cache.StorageError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// Evict deletes the oldest rows of every table beyond maxRecords and returns
// the number of rows removed.
func (s *Store) Evict(ctx context.Context, maxRecords int) (int64, error) {
	var total int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, kind := range cache.Kinds {
			n, err := evict(ctx, tx, kind, maxRecords)
			if err != nil {
				return cache.NewStorageError("evict", kind, "", err)
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, cache.NewStorageError("evict", "", "", err)
	}
	return total, nil
}

// evict trims the table for kind to its maxRecords most recent rows.
func evict(ctx context.Context, tx pgx.Tx, kind cache.Kind, maxRecords int) (int64, error) {
	q := `
		DELETE FROM ` + tables[kind] + `
		WHERE source_key IN (
		    SELECT source_key FROM ` + tables[kind] + `
		    ORDER BY updated_at DESC
		    OFFSET $1
		)`
	tag, err := tx.Exec(ctx, q, maxRecords)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Ping implements [cache.Store].
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return &cache.StorageError{Op: "ping", Err: errors.Join(cache.ErrUnavailable, err)}
	}
	return nil
}

// Close implements [cache.Store]. It releases all pooled connections.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
