// Package store persists station snapshots and cached feed responses.
package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gbfs-cli/internal/fetcher"
	"github.com/sells-group/gbfs-cli/internal/model"
)

// Snapshot is one persisted update of a system.
type Snapshot struct {
	ID        string           `json:"id"`
	System    model.SystemMeta `json:"system"`
	Stations  []model.Station  `json:"stations"`
	FetchedAt time.Time        `json:"fetched_at"`
}

// Store defines snapshot and response cache persistence.
type Store interface {
	// Snapshots
	SaveSnapshot(ctx context.Context, meta model.SystemMeta, stations []model.Station, fetchedAt time.Time) (*Snapshot, error)
	LatestSnapshot(ctx context.Context, tag string) (*Snapshot, error)

	// Response cache
	GetCachedResponse(ctx context.Context, key string) ([]byte, error)
	SetCachedResponse(ctx context.Context, key string, data []byte, ttl time.Duration) error
	DeleteExpiredResponses(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Config selects and configures a Store.
type Config struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite or postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// Open returns the Store for cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "gbfs.db"
		}
		return NewSQLite(dsn)
	case "postgres", "postgresql":
		if cfg.DatabaseURL == "" {
			return nil, eris.New("store: postgres requires database_url")
		}
		return NewPostgres(ctx, cfg.DatabaseURL, cfg.MaxConns)
	}
	return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
}

func marshalExtra(e model.Extra) ([]byte, error) {
	b, err := json.Marshal(e)
	return b, eris.Wrap(err, "store: marshal extra")
}

func unmarshalExtra(b []byte) (model.Extra, error) {
	if len(b) == 0 {
		return model.Extra{}, nil
	}
	e, err := fetcher.DecodeJSON[model.Extra](b)
	return e, eris.Wrap(err, "store: unmarshal extra")
}
