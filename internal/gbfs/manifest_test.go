package gbfs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveManifest(t *testing.T) {
	feeds, err := ResolveManifest([]byte(manifestJSON()), "en")
	require.NoError(t, err)

	u, ok := feeds.URL(FeedStationInformation)
	require.True(t, ok)
	assert.Equal(t, informationURL, u)

	u, ok = feeds.URL(FeedStationStatus)
	require.True(t, ok)
	assert.Equal(t, statusURL, u)

	assert.Equal(t, []string{"station_information", "station_status", "system_information"}, feeds.Names())
	assert.NoError(t, feeds.Require(FeedStationInformation, FeedStationStatus))
}

func TestResolveManifest_DefaultLanguage(t *testing.T) {
	feeds, err := ResolveManifest([]byte(manifestJSON()), "")
	require.NoError(t, err)
	assert.Len(t, feeds, 3)
}

func TestResolveManifest_MissingLanguage(t *testing.T) {
	_, err := ResolveManifest([]byte(manifestJSON()), "fr")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingLanguage))
	assert.Contains(t, err.Error(), `"fr"`)
}

func TestResolveManifest_Malformed(t *testing.T) {
	tests := map[string]string{
		"not json":      `<html>`,
		"no data":       `{"ttl": 0}`,
		"data is list":  `{"data": []}`,
		"feeds wrong":   `{"data": {"en": {"feeds": {"name": "x"}}}}`,
		"truncated doc": `{"data": {"en": {"feeds": [`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ResolveManifest([]byte(body), "en")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedManifest), "got %v", err)
		})
	}
}

func TestResolveManifest_SkipsIncompleteEntries(t *testing.T) {
	body := `{"data": {"en": {"feeds": [
		{"name": "station_status", "url": ""},
		{"name": "", "url": "https://x/y.json"},
		{"name": "station_information", "url": "https://x/a.json"},
		{"name": "station_information", "url": "https://x/b.json"}
	]}}}`
	feeds, err := ResolveManifest([]byte(body), "en")
	require.NoError(t, err)
	assert.Equal(t, Feeds{"station_information": "https://x/b.json"}, feeds)

	err = feeds.Require(FeedStationInformation, FeedStationStatus)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingFeed))
	assert.Contains(t, err.Error(), "station_status")
}
