package fetcher

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON_KeepsNumbers(t *testing.T) {
	doc, err := DecodeJSON[map[string]any]([]byte(`{"station_id": 7000, "lat": 43.639832}`))
	require.NoError(t, err)
	assert.Equal(t, json.Number("7000"), doc["station_id"])
	assert.Equal(t, json.Number("43.639832"), doc["lat"])
}

func TestDecodeJSON_Struct(t *testing.T) {
	type feed struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	f, err := DecodeJSON[feed]([]byte(`{"name":"station_status","url":"https://x/status.json"}`))
	require.NoError(t, err)
	assert.Equal(t, "station_status", f.Name)
	assert.Equal(t, "https://x/status.json", f.URL)
}

func TestDecodeJSON_Invalid(t *testing.T) {
	_, err := DecodeJSON[map[string]any]([]byte(`{"data": [`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json: decode document")
}
