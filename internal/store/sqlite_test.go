package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gbfs-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testMeta() model.SystemMeta {
	return model.SystemMeta{
		Tag:       "bike-share-toronto",
		Name:      "Bike Share Toronto",
		City:      "Toronto",
		Country:   "CA",
		Latitude:  43.65,
		Longitude: -79.38,
		GBFSHref:  "https://tor.publicbikesystem.net/ube/gbfs/v1/",
	}
}

func testStations() []model.Station {
	return []model.Station{
		{
			Name: "Ft. York / Capreol Crt.", Bikes: 5, Free: 26,
			Latitude: 43.639832, Longitude: -79.395954,
			Extra: model.Extra{
				Address:     "Ft. York / Capreol Crt.",
				UID:         "7000",
				Renting:     json.Number("1"),
				Returning:   json.Number("1"),
				LastUpdated: json.Number("1473969337"),
			},
		},
		{
			Name: "Lower Jarvis St / The Esplanade", Bikes: 0, Free: 15,
			Latitude: 43.647992, Longitude: -79.370907,
			Extra: model.Extra{UID: "7001", Renting: json.Number("0"), Returning: json.Number("1"), LastUpdated: json.Number("1473969300")},
		},
	}
}

func TestSQLite_Snapshot_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	fetched := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	saved, err := st.SaveSnapshot(ctx, testMeta(), testStations(), fetched)
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)

	got, err := st.LatestSnapshot(ctx, "bike-share-toronto")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, testMeta(), got.System)
	assert.Equal(t, testStations(), got.Stations)
	assert.True(t, fetched.Equal(got.FetchedAt))
}

func TestSQLite_Snapshot_Latest(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	_, err := st.SaveSnapshot(ctx, testMeta(), testStations(), t0)
	require.NoError(t, err)
	second, err := st.SaveSnapshot(ctx, testMeta(), testStations()[:1], t0.Add(time.Minute))
	require.NoError(t, err)

	got, err := st.LatestSnapshot(ctx, "bike-share-toronto")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.ID, got.ID)
	assert.Len(t, got.Stations, 1)
}

func TestSQLite_Snapshot_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	got, err := st.LatestSnapshot(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = st.SaveSnapshot(ctx, testMeta(), nil, time.Now())
	require.NoError(t, err)
	got, err = st.LatestSnapshot(ctx, "bike-share-toronto")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.Stations)
}

func TestSQLite_ResponseCache(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetCachedResponse(ctx, "https://x/gbfs.json", []byte(`{"data":{}}`), time.Hour))
	data, err := st.GetCachedResponse(ctx, "https://x/gbfs.json")
	require.NoError(t, err)
	assert.Equal(t, `{"data":{}}`, string(data))

	require.NoError(t, st.SetCachedResponse(ctx, "https://x/gbfs.json", []byte("v2"), time.Hour))
	data, err = st.GetCachedResponse(ctx, "https://x/gbfs.json")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	data, err = st.GetCachedResponse(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSQLite_ResponseCache_Expired(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetCachedResponse(ctx, "old", []byte("stale"), -time.Hour))
	require.NoError(t, st.SetCachedResponse(ctx, "new", []byte("fresh"), time.Hour))

	data, err := st.GetCachedResponse(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, data)

	n, err := st.DeleteExpiredResponses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err = st.GetCachedResponse(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data))
}

func TestResponseCache_Adapter(t *testing.T) {
	st := newTestSQLiteStore(t)
	c := NewResponseCache(st, time.Hour)

	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Set("k", []byte("body"))
	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "body", string(got))

	c.Set("empty", nil)
	got, ok = c.Get("empty")
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestResponseCache_StoreFailureIsMiss(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Close())

	c := NewResponseCache(st, time.Hour)
	c.Set("k", []byte("body"))
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "open.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, Config{Driver: "postgres"})
	assert.ErrorContains(t, err, "database_url")

	_, err = Open(ctx, Config{Driver: "mongo"})
	assert.ErrorContains(t, err, "unknown driver")
}
