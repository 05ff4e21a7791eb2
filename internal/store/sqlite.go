package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/gbfs-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens a SQLite database at dsn in WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS systems (
	tag        TEXT PRIMARY KEY,
	meta       TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	id            TEXT PRIMARY KEY,
	tag           TEXT NOT NULL REFERENCES systems(tag),
	station_count INTEGER NOT NULL,
	fetched_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS stations (
	snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	station_id  TEXT NOT NULL,
	name        TEXT NOT NULL,
	bikes       INTEGER NOT NULL,
	free        INTEGER NOT NULL,
	latitude    REAL NOT NULL,
	longitude   REAL NOT NULL,
	extra       TEXT NOT NULL,
	PRIMARY KEY (snapshot_id, position)
);

CREATE TABLE IF NOT EXISTS response_cache (
	key        TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	cached_at  INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_tag_fetched ON snapshots(tag, fetched_at DESC);
CREATE INDEX IF NOT EXISTS idx_response_cache_expires_at ON response_cache(expires_at);
`

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSnapshot stores meta and stations as a new snapshot in one transaction.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, meta model.SystemMeta, stations []model.Station, fetchedAt time.Time) (*Snapshot, error) {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal system")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	fetched := fetchedAt.UTC().UnixMilli()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO systems (tag, meta, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (tag) DO UPDATE SET meta = excluded.meta, updated_at = excluded.updated_at`,
		meta.Tag, string(metaJSON), fetched,
	); err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert system %s", meta.Tag)
	}

	id := uuid.New().String()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, tag, station_count, fetched_at) VALUES (?, ?, ?, ?)`,
		id, meta.Tag, len(stations), fetched,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: insert snapshot")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO stations (snapshot_id, position, station_id, name, bikes, free, latitude, longitude, extra)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: prepare station insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i, st := range stations {
		extra, err := marshalExtra(st.Extra)
		if err != nil {
			return nil, err
		}
		if _, err := stmt.ExecContext(ctx,
			id, i, st.ID(), st.Name, st.Bikes, st.Free, st.Latitude, st.Longitude, string(extra),
		); err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert station %s", st.ID())
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit snapshot")
	}

	return &Snapshot{
		ID:        id,
		System:    meta,
		Stations:  stations,
		FetchedAt: time.UnixMilli(fetched).UTC(),
	}, nil
}

// LatestSnapshot returns the most recent snapshot for tag, or nil if there
// is none.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context, tag string) (*Snapshot, error) {
	var (
		snap     Snapshot
		metaJSON string
		fetched  int64
		count    int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT s.id, s.station_count, s.fetched_at, y.meta
		 FROM snapshots s JOIN systems y ON y.tag = s.tag
		 WHERE s.tag = ?
		 ORDER BY s.fetched_at DESC, s.rowid DESC LIMIT 1`,
		tag,
	).Scan(&snap.ID, &count, &fetched, &metaJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest snapshot for %s", tag)
	}
	if err := json.Unmarshal([]byte(metaJSON), &snap.System); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal system")
	}
	snap.FetchedAt = time.UnixMilli(fetched).UTC()

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, bikes, free, latitude, longitude, extra
		 FROM stations WHERE snapshot_id = ? ORDER BY position`,
		snap.ID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query stations")
	}
	defer rows.Close() //nolint:errcheck

	snap.Stations = make([]model.Station, 0, count)
	for rows.Next() {
		var st model.Station
		var extra string
		if err := rows.Scan(&st.Name, &st.Bikes, &st.Free, &st.Latitude, &st.Longitude, &extra); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan station")
		}
		if st.Extra, err = unmarshalExtra([]byte(extra)); err != nil {
			return nil, err
		}
		snap.Stations = append(snap.Stations, st)
	}
	return &snap, eris.Wrap(rows.Err(), "sqlite: iterate stations")
}

// GetCachedResponse returns the unexpired body stored under key, or nil.
func (s *SQLiteStore) GetCachedResponse(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM response_cache WHERE key = ? AND expires_at > ?`,
		key, time.Now().UnixMilli(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached response")
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// SetCachedResponse stores data under key until ttl elapses.
func (s *SQLiteStore) SetCachedResponse(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if data == nil {
		data = []byte{}
	}
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO response_cache (key, data, cached_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET data = excluded.data, cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		key, data, now.UnixMilli(), now.Add(ttl).UnixMilli(),
	)
	return eris.Wrap(err, "sqlite: set cached response")
}

// DeleteExpiredResponses removes expired cache entries.
func (s *SQLiteStore) DeleteExpiredResponses(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM response_cache WHERE expires_at <= ?`, time.Now().UnixMilli(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired responses")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}
