// Package postgres provides a durable PostgreSQL-backed [cache.Store].
//
// Each record kind lives in its own table keyed by source key, so the three
// kinds can be written together in one transaction through
// [Store.PutBatch]. Decoded audio is stored as a planar float32 blob (see
// [audio.EncodePlanar]).
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn, postgres.WithMaxRecords(256))
//	if err != nil { … }
//	defer store.Close()
//
//	_ = store.Put(ctx, cache.MarkerRecord(key, 12.345))
//	rec, found, err := store.Get(ctx, cache.KindMarker, key)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/wavecue/pkg/cache"
)

const ddlAudio = `
CREATE TABLE IF NOT EXISTS audio_cache (
    source_key   TEXT         PRIMARY KEY,
    sample_rate  INTEGER      NOT NULL,
    channels     INTEGER      NOT NULL,
    duration     DOUBLE PRECISION NOT NULL,
    samples      BYTEA        NOT NULL,
    updated_at   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_audio_cache_updated_at
    ON audio_cache (updated_at);
`

const ddlView = `
CREATE TABLE IF NOT EXISTS view_cache (
    source_key      TEXT         PRIMARY KEY,
    zoom_level      INTEGER      NOT NULL,
    offset_seconds  DOUBLE PRECISION NOT NULL,
    updated_at      TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_view_cache_updated_at
    ON view_cache (updated_at);
`

const ddlMarker = `
CREATE TABLE IF NOT EXISTS marker_cache (
    source_key  TEXT         PRIMARY KEY,
    seconds     DOUBLE PRECISION NOT NULL,
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_marker_cache_updated_at
    ON marker_cache (updated_at);
`

// tables maps each kind to its table name.
var tables = map[cache.Kind]string{
	cache.KindAudio:  "audio_cache",
	cache.KindView:   "view_cache",
	cache.KindMarker: "marker_cache",
}

// Migrate creates the cache tables if they do not exist. It is idempotent
// and safe to call on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{ddlAudio, ddlView, ddlMarker} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
