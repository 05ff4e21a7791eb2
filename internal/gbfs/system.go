package gbfs

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gbfs-cli/internal/fetcher"
	"github.com/sells-group/gbfs-cli/internal/model"
)

// snapshot is the published result of one successful update.
type snapshot struct {
	stations  []model.Station
	updatedAt time.Time
}

// System is a GBFS bike-share system. Update replaces the published stations
// only when a full cycle succeeds, so readers never observe a partial set.
type System struct {
	meta     model.SystemMeta
	feedURL  string
	language string
	policy   JoinPolicy
	current  atomic.Pointer[snapshot]
}

// Option configures a System.
type Option func(*System)

// WithLanguage selects the manifest language section.
func WithLanguage(lang string) Option {
	return func(s *System) {
		if lang != "" {
			s.language = lang
		}
	}
}

// WithJoinPolicy sets how stations missing from the status feed are handled.
func WithJoinPolicy(p JoinPolicy) Option {
	return func(s *System) { s.policy = p }
}

// NewSystem creates a System reading the gbfs.json manifest at feedURL.
func NewSystem(meta model.SystemMeta, feedURL string, opts ...Option) *System {
	meta.GBFSHref = feedURL
	s := &System{
		meta:     meta,
		feedURL:  feedURL,
		language: DefaultLanguage,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Meta returns the system metadata.
func (s *System) Meta() model.SystemMeta { return s.meta }

// Tag returns the system tag.
func (s *System) Tag() string { return s.meta.Tag }

// FeedURL returns the manifest URL.
func (s *System) FeedURL() string { return s.feedURL }

// Stations returns the stations published by the last successful update.
// The slice is shared and must not be modified.
func (s *System) Stations() []model.Station {
	if snap := s.current.Load(); snap != nil {
		return snap.stations
	}
	return nil
}

// UpdatedAt returns when the stations were last published, or the zero time.
func (s *System) UpdatedAt() time.Time {
	if snap := s.current.Load(); snap != nil {
		return snap.updatedAt
	}
	return time.Time{}
}

// Snapshot returns the stations and publish time of the last successful
// update from a single load. ok is false before the first one.
func (s *System) Snapshot() (stations []model.Station, updatedAt time.Time, ok bool) {
	snap := s.current.Load()
	if snap == nil {
		return nil, time.Time{}, false
	}
	return snap.stations, snap.updatedAt, true
}

// Ready reports whether at least one update has succeeded.
func (s *System) Ready() bool {
	return s.current.Load() != nil
}

// Update runs one full cycle: manifest, feeds, join, normalize, publish.
func (s *System) Update(ctx context.Context, req fetcher.Requester) error {
	log := zap.L().With(zap.String("system", s.meta.Tag), zap.String("feed_url", s.feedURL))

	stations, err := s.collect(ctx, req, log)
	if err != nil {
		log.Error("gbfs: update failed, keeping previous stations", zap.Error(err))
		return err
	}

	s.current.Store(&snapshot{stations: stations, updatedAt: time.Now().UTC()})
	log.Info("gbfs: update complete", zap.Int("stations", len(stations)))
	return nil
}

func (s *System) collect(ctx context.Context, req fetcher.Requester, log *zap.Logger) ([]model.Station, error) {
	raw, err := req.Request(ctx, s.feedURL, fetcher.RequestOptions{Raw: true})
	if err != nil {
		return nil, &FetchError{Feed: "gbfs", URL: s.feedURL, Err: err}
	}

	feeds, err := ResolveManifest(raw, s.language)
	if err != nil {
		return nil, err
	}

	j := &Joiner{Requester: req, Policy: s.policy}
	records, err := j.Join(ctx, feeds, FeedStationInformation, FeedStationStatus)
	if err != nil {
		return nil, err
	}

	stations := make([]model.Station, 0, len(records))
	var planned, rejected int
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "gbfs: update cancelled")
		}

		st, ok, err := NewStation(rec)
		switch {
		case err != nil && (errors.Is(err, ErrMissingField) || errors.Is(err, ErrInvalidField)):
			rejected++
			log.Warn("gbfs: skipping invalid station",
				zap.Any("station_id", rec[DefaultJoinKey]),
				zap.Error(err),
			)
		case err != nil:
			return nil, err
		case !ok:
			planned++
		default:
			stations = append(stations, st)
		}
	}

	if planned > 0 || rejected > 0 {
		log.Debug("gbfs: stations excluded",
			zap.Int("planned", planned),
			zap.Int("rejected", rejected),
		)
	}
	return stations, nil
}
