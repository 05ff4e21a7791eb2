package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/gbfs-cli/internal/db"
	"github.com/sells-group/gbfs-cli/internal/model"
)

// SRID is the spatial reference of stored station geometry (WGS 84).
const SRID = 4326

// PostgresStore implements Store on PostGIS.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

var _ Store = (*PostgresStore)(nil)

// NewPostgres connects to connString.
func NewPostgres(ctx context.Context, connString string, maxConns int32) (*PostgresStore, error) {
	if maxConns <= 0 {
		maxConns = 10
	}
	pool, err := db.Connect(ctx, connString, maxConns)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Close does not close it.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;
CREATE SCHEMA IF NOT EXISTS gbfs;

CREATE TABLE IF NOT EXISTS gbfs.systems (
	tag        TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	city       TEXT NOT NULL DEFAULT '',
	country    TEXT NOT NULL DEFAULT '',
	company    TEXT NOT NULL DEFAULT '',
	latitude   DOUBLE PRECISION,
	longitude  DOUBLE PRECISION,
	feed_url   TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS gbfs.snapshots (
	id            UUID PRIMARY KEY,
	tag           TEXT NOT NULL REFERENCES gbfs.systems(tag),
	station_count INTEGER NOT NULL,
	fetched_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS gbfs.stations (
	snapshot_id UUID NOT NULL REFERENCES gbfs.snapshots(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	station_id  TEXT NOT NULL,
	name        TEXT NOT NULL,
	bikes       INTEGER NOT NULL,
	free        INTEGER NOT NULL,
	latitude    DOUBLE PRECISION NOT NULL,
	longitude   DOUBLE PRECISION NOT NULL,
	extra       JSONB NOT NULL,
	geom_ewkb   BYTEA NOT NULL,
	geom        geometry(Point, 4326) GENERATED ALWAYS AS (ST_GeomFromEWKB(geom_ewkb)) STORED,
	PRIMARY KEY (snapshot_id, position)
);

CREATE TABLE IF NOT EXISTS gbfs.response_cache (
	key        TEXT PRIMARY KEY,
	data       BYTEA NOT NULL,
	cached_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_tag_fetched ON gbfs.snapshots(tag, fetched_at DESC);
CREATE INDEX IF NOT EXISTS idx_stations_geom ON gbfs.stations USING GIST (geom);
CREATE INDEX IF NOT EXISTS idx_response_cache_expires_at ON gbfs.response_cache(expires_at);
`

var (
	systemUpsert = db.UpsertConfig{
		Table:        "gbfs.systems",
		Columns:      []string{"tag", "name", "city", "country", "company", "latitude", "longitude", "feed_url", "updated_at"},
		ConflictKeys: []string{"tag"},
	}
	stationColumns = []string{
		"snapshot_id", "position", "station_id", "name", "bikes", "free",
		"latitude", "longitude", "extra", "geom_ewkb",
	}
)

// Pool returns the underlying pool.
func (s *PostgresStore) Pool() db.Pool { return s.pool }

// Migrate creates the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close closes the pool when the store owns it.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SaveSnapshot upserts the system row and writes the snapshot with its
// stations in one transaction.
func (s *PostgresStore) SaveSnapshot(ctx context.Context, meta model.SystemMeta, stations []model.Station, fetchedAt time.Time) (*Snapshot, error) {
	fetchedAt = fetchedAt.UTC()

	id := uuid.New()
	rows := make([][]any, 0, len(stations))
	for i, st := range stations {
		extra, err := marshalExtra(st.Extra)
		if err != nil {
			return nil, err
		}
		point, err := EncodePoint(st.Latitude, st.Longitude)
		if err != nil {
			return nil, err
		}
		rows = append(rows, []any{
			id, int32(i), st.ID(), st.Name, int32(st.Bikes), int32(st.Free),
			st.Latitude, st.Longitude, extra, point,
		})
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := db.UpsertTx(ctx, tx, systemUpsert, [][]any{{
		meta.Tag, meta.Name, meta.City, meta.Country, meta.Company,
		meta.Latitude, meta.Longitude, meta.GBFSHref, fetchedAt,
	}}); err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert system %s", meta.Tag)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO gbfs.snapshots (id, tag, station_count, fetched_at) VALUES ($1, $2, $3, $4)`,
		id, meta.Tag, len(stations), fetchedAt,
	); err != nil {
		return nil, eris.Wrap(err, "postgres: insert snapshot")
	}

	if _, err := db.CopyFrom(ctx, tx, "gbfs.stations", stationColumns, rows); err != nil {
		return nil, eris.Wrap(err, "postgres: copy stations")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit snapshot")
	}

	return &Snapshot{ID: id.String(), System: meta, Stations: stations, FetchedAt: fetchedAt}, nil
}

// LatestSnapshot returns the most recent snapshot for tag, or nil if there
// is none.
func (s *PostgresStore) LatestSnapshot(ctx context.Context, tag string) (*Snapshot, error) {
	var (
		snap  Snapshot
		id    uuid.UUID
		count int
		meta  = &snap.System
	)
	err := s.pool.QueryRow(ctx,
		`SELECT s.id, s.station_count, s.fetched_at,
		        y.tag, y.name, y.city, y.country, y.company,
		        COALESCE(y.latitude, 0), COALESCE(y.longitude, 0), y.feed_url
		 FROM gbfs.snapshots s JOIN gbfs.systems y ON y.tag = s.tag
		 WHERE s.tag = $1
		 ORDER BY s.fetched_at DESC LIMIT 1`,
		tag,
	).Scan(&id, &count, &snap.FetchedAt,
		&meta.Tag, &meta.Name, &meta.City, &meta.Country, &meta.Company,
		&meta.Latitude, &meta.Longitude, &meta.GBFSHref)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: latest snapshot for %s", tag)
	}
	snap.ID = id.String()

	rows, err := s.pool.Query(ctx,
		`SELECT name, bikes, free, latitude, longitude, extra
		 FROM gbfs.stations WHERE snapshot_id = $1 ORDER BY position`,
		id,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query stations")
	}
	defer rows.Close()

	snap.Stations = make([]model.Station, 0, count)
	for rows.Next() {
		var st model.Station
		var bikes, free int32
		var extra []byte
		if err := rows.Scan(&st.Name, &bikes, &free, &st.Latitude, &st.Longitude, &extra); err != nil {
			return nil, eris.Wrap(err, "postgres: scan station")
		}
		st.Bikes, st.Free = int(bikes), int(free)
		if st.Extra, err = unmarshalExtra(extra); err != nil {
			return nil, err
		}
		snap.Stations = append(snap.Stations, st)
	}
	return &snap, eris.Wrap(rows.Err(), "postgres: iterate stations")
}

// GetCachedResponse returns the unexpired body stored under key, or nil.
func (s *PostgresStore) GetCachedResponse(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM gbfs.response_cache WHERE key = $1 AND expires_at > now()`,
		key,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get cached response")
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// SetCachedResponse stores data under key until ttl elapses.
func (s *PostgresStore) SetCachedResponse(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if data == nil {
		data = []byte{}
	}
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO gbfs.response_cache (key, data, cached_at, expires_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO UPDATE SET data = $2, cached_at = $3, expires_at = $4`,
		key, data, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set cached response")
}

// DeleteExpiredResponses removes expired cache entries.
func (s *PostgresStore) DeleteExpiredResponses(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM gbfs.response_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired responses")
	}
	return int(tag.RowsAffected()), nil
}

// EncodePoint returns a station position as EWKB (little-endian, SRID 4326).
func EncodePoint(lat, lng float64) ([]byte, error) {
	p := geom.NewPointFlat(geom.XY, []float64{lng, lat}).SetSRID(SRID)
	data, err := ewkb.Marshal(p, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: encode point")
	}
	return data, nil
}
