package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gbfs-cli/internal/gbfs"
)

const sample = `
systems:
  - tag: bike-share-toronto
    name: Bike Share Toronto
    city: Toronto
    country: CA
    company: Toronto Parking Authority
    latitude: 43.65
    longitude: -79.38
    feed_url: https://tor.publicbikesystem.net/ube/gbfs/v1/
  - tag: bicing
    name: Bicing
    city: Barcelona
    country: ES
    latitude: 41.39
    longitude: 2.17
    feed_url: https://barcelona.publicbikesystem.net/customer/gbfs/v2/gbfs.json
    language: es
    join_policy: lenient
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)

	entries := c.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "bike-share-toronto", entries[0].Tag)

	e, ok := c.Get("bicing")
	require.True(t, ok)
	assert.Equal(t, "Barcelona", e.City)
	assert.InDelta(t, 41.39, e.Latitude, 1e-9)
	assert.Equal(t, "es", e.Language)
	assert.Equal(t, "lenient", e.JoinPolicy)
}

func TestCatalog_Nil(t *testing.T) {
	var c *Catalog
	assert.Nil(t, c.Entries())
	_, ok := c.Get("bicing")
	assert.False(t, ok)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "systems.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"no tag":        "systems:\n  - feed_url: https://a/gbfs.json\n",
		"duplicate":     "systems:\n  - {tag: a, feed_url: 'https://a/x'}\n  - {tag: a, feed_url: 'https://a/y'}\n",
		"no feed":       "systems:\n  - tag: a\n",
		"bad scheme":    "systems:\n  - {tag: a, feed_url: 'ftp://a/x'}\n",
		"bad policy":    "systems:\n  - {tag: a, feed_url: 'https://a/x', join_policy: maybe}\n",
		"not yaml list": "systems: 3\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestResolve(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)

	e, err := c.Resolve("bicing")
	require.NoError(t, err)
	assert.Equal(t, "Bicing", e.Name)

	e, err = c.Resolve("https://gbfs.example.com/gbfs.json")
	require.NoError(t, err)
	assert.Equal(t, "gbfs.example.com", e.Tag)
	assert.Equal(t, "https://gbfs.example.com/gbfs.json", e.FeedURL)

	_, err = c.Resolve("nope")
	assert.ErrorContains(t, err, "unknown system")

	var empty *Catalog
	_, err = empty.Resolve("https://gbfs.example.com/gbfs.json")
	assert.NoError(t, err)
}

func TestEntry_System(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)
	e, _ := c.Get("bicing")

	sys := e.System(gbfs.WithJoinPolicy(gbfs.JoinStrict))
	assert.Equal(t, "bicing", sys.Tag())
	assert.Equal(t, e.FeedURL, sys.FeedURL())
	assert.Equal(t, e.FeedURL, sys.Meta().GBFSHref)
	assert.Equal(t, "Barcelona", sys.Meta().City)
}
