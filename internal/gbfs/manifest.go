// Package gbfs resolves, joins and normalizes GBFS station feeds.
package gbfs

import (
	"encoding/json"
	"sort"

	"github.com/rotisserie/eris"
)

// Feed names consumed by the station join.
const (
	FeedStationInformation = "station_information"
	FeedStationStatus      = "station_status"
)

// DefaultLanguage is the manifest language consulted when none is configured.
const DefaultLanguage = "en"

// Feeds maps a feed name to its URL.
type Feeds map[string]string

// URL returns the URL of the named feed.
func (f Feeds) URL(name string) (string, bool) {
	u, ok := f[name]
	return u, ok
}

// Names returns the feed names in sorted order.
func (f Feeds) Names() []string {
	names := make([]string, 0, len(f))
	for n := range f {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Require fails with ErrMissingFeed naming the first absent feed.
func (f Feeds) Require(names ...string) error {
	for _, n := range names {
		if _, ok := f[n]; !ok {
			return eris.Wrapf(ErrMissingFeed, "feed %q", n)
		}
	}
	return nil
}

type manifestDoc struct {
	Data map[string]struct {
		Feeds []struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		} `json:"feeds"`
	} `json:"data"`
}

// ResolveManifest extracts the feed URLs listed under lang in a gbfs.json
// document. Entries without a name or URL are ignored; a repeated name keeps
// the last URL.
func ResolveManifest(data []byte, lang string) (Feeds, error) {
	if lang == "" {
		lang = DefaultLanguage
	}

	var doc manifestDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(ErrMalformedManifest, "decode: %v", err)
	}
	if doc.Data == nil {
		return nil, eris.Wrap(ErrMalformedManifest, "no data object")
	}

	section, ok := doc.Data[lang]
	if !ok {
		return nil, eris.Wrapf(ErrMissingLanguage, "language %q", lang)
	}

	feeds := make(Feeds, len(section.Feeds))
	for _, f := range section.Feeds {
		if f.Name == "" || f.URL == "" {
			continue
		}
		feeds[f.Name] = f.URL
	}
	return feeds, nil
}
