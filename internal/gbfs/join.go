package gbfs

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/gbfs-cli/internal/fetcher"
)

// DefaultJoinKey is the field shared by the station feeds.
const DefaultJoinKey = "station_id"

// Record is one raw station object from a feed.
type Record map[string]any

// JoinPolicy decides what happens when a primary key is absent from a
// secondary feed.
type JoinPolicy int

const (
	// JoinStrict fails the whole join with ErrJoinKey.
	JoinStrict JoinPolicy = iota
	// JoinLenient drops the key and keeps going.
	JoinLenient
)

func (p JoinPolicy) String() string {
	if p == JoinLenient {
		return "lenient"
	}
	return "strict"
}

// ParseJoinPolicy parses "strict" or "lenient". Empty means strict.
func ParseJoinPolicy(s string) (JoinPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return JoinStrict, nil
	case "lenient":
		return JoinLenient, nil
	}
	return JoinStrict, eris.Errorf("gbfs: unknown join policy %q", s)
}

// FetchError reports a transport failure for one feed. It matches ErrFetch
// and unwraps to the requester's error.
type FetchError struct {
	Feed string
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("gbfs: fetch feed %q from %s: %v", e.Feed, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is reports whether target is ErrFetch.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// Joiner fetches station feeds and merges their records by a shared key.
type Joiner struct {
	Requester fetcher.Requester
	Key       string // default DefaultJoinKey
	Policy    JoinPolicy
}

// feedIndex keeps the records of one feed by key, in encounter order.
type feedIndex struct {
	keys  []string
	byKey map[string]Record
}

// Join fetches the primary and secondary feeds concurrently and returns one
// merged record per key of the primary feed, in the primary feed's order.
// Secondary fields overwrite primary fields on collision. Keys found only in
// a secondary feed are ignored.
func (j *Joiner) Join(ctx context.Context, feeds Feeds, primary string, secondaries ...string) ([]Record, error) {
	key := j.Key
	if key == "" {
		key = DefaultJoinKey
	}

	names := append([]string{primary}, secondaries...)
	if err := feeds.Require(names...); err != nil {
		return nil, err
	}

	indexes := make([]feedIndex, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			records, err := j.fetchFeed(gctx, name, feeds[name])
			if err != nil {
				return err
			}
			indexes[i] = buildIndex(name, key, records)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	base := indexes[0]
	merged := make([]Record, 0, len(base.keys))
	for _, k := range base.keys {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "gbfs: join cancelled")
		}

		out, ok, err := j.mergeKey(k, base.byKey[k], names[1:], indexes[1:])
		if err != nil {
			return nil, err
		}
		if ok {
			merged = append(merged, out)
		}
	}
	return merged, nil
}

func (j *Joiner) mergeKey(k string, base Record, names []string, indexes []feedIndex) (Record, bool, error) {
	out := make(Record, len(base))
	for f, v := range base {
		out[f] = v
	}
	for i, idx := range indexes {
		rec, ok := idx.byKey[k]
		if !ok {
			if j.Policy == JoinLenient {
				zap.L().Warn("gbfs: station missing from feed, skipping",
					zap.String("station_id", k),
					zap.String("feed", names[i]),
				)
				return nil, false, nil
			}
			return nil, false, eris.Wrapf(ErrJoinKey, "station %q not in feed %q", k, names[i])
		}
		for f, v := range rec {
			out[f] = v
		}
	}
	return out, true, nil
}

type feedDoc struct {
	Data *struct {
		Stations []Record `json:"stations"`
	} `json:"data"`
}

func (j *Joiner) fetchFeed(ctx context.Context, name, url string) ([]Record, error) {
	data, err := j.Requester.Request(ctx, url, fetcher.RequestOptions{})
	if err != nil {
		return nil, &FetchError{Feed: name, URL: url, Err: err}
	}

	doc, err := fetcher.DecodeJSON[feedDoc](data)
	if err != nil {
		return nil, eris.Wrapf(ErrMalformedFeed, "feed %q from %s: %v", name, url, err)
	}
	if doc.Data == nil || doc.Data.Stations == nil {
		return nil, eris.Wrapf(ErrMalformedFeed, "feed %q from %s: no data.stations list", name, url)
	}
	return doc.Data.Stations, nil
}

func buildIndex(feed, key string, records []Record) feedIndex {
	idx := feedIndex{
		keys:  make([]string, 0, len(records)),
		byKey: make(map[string]Record, len(records)),
	}
	skipped := 0
	for _, rec := range records {
		k, ok := keyString(rec[key])
		if rec == nil || !ok {
			skipped++
			continue
		}
		if _, seen := idx.byKey[k]; !seen {
			idx.keys = append(idx.keys, k)
		}
		idx.byKey[k] = rec
	}
	if skipped > 0 {
		zap.L().Warn("gbfs: records without join key skipped",
			zap.String("feed", feed),
			zap.String("key", key),
			zap.Int("skipped", skipped),
		)
	}
	return idx
}

// keyString renders a join key value as text so "7000" and 7000 match.
func keyString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	}
	return "", false
}
