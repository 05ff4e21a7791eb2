package main

import (
	"context"
	"errors"
	"io/fs"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/gbfs-cli/internal/catalog"
	"github.com/sells-group/gbfs-cli/internal/config"
	"github.com/sells-group/gbfs-cli/internal/fetcher"
	"github.com/sells-group/gbfs-cli/internal/gbfs"
	"github.com/sells-group/gbfs-cli/internal/resilience"
	"github.com/sells-group/gbfs-cli/internal/store"
)

// newRequester builds the HTTP requester from fetch settings. cache may be nil.
func newRequester(fc config.FetchConfig, cache fetcher.Cache) (fetcher.Requester, error) {
	session := fetcher.NewSession(fc.UserAgent)
	session.SetVerifyTLS(!fc.InsecureSkipVerify)
	if fc.ProxyURL != "" {
		if err := session.SetProxy(fc.ProxyURL); err != nil {
			return nil, eris.Wrap(err, "configure proxy")
		}
		if fc.ProxyEnabled {
			session.EnableProxy()
		}
	}

	s := fetcher.NewScraper(session, fetcher.ScraperOptions{
		Timeout:     fc.Timeout(),
		Retry:       resilience.FromRetryConfig(fc.MaxRetries, fc.InitialBackoffMs, fc.MaxBackoffMs),
		Breaker:     resilience.FromCircuitConfig(fc.BreakerThreshold, fc.BreakerResetSecs),
		DefaultRate: rate.Limit(fc.RatePerSec),
		Cache:       cache,
	})
	return withEncoding(s, fc.Encoding), nil
}

// withEncoding applies a fallback charset to requests that set none.
func withEncoding(req fetcher.Requester, encoding string) fetcher.Requester {
	if encoding == "" {
		return req
	}
	return fetcher.RequesterFunc(func(ctx context.Context, rawURL string, opts fetcher.RequestOptions) ([]byte, error) {
		if opts.Encoding == "" {
			opts.Encoding = encoding
		}
		return req.Request(ctx, rawURL, opts)
	})
}

// loadCatalog reads the catalog file. A missing file yields an empty catalog
// so feed URLs still work.
func loadCatalog(path string) (*catalog.Catalog, error) {
	c, err := catalog.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		zap.L().Debug("catalog file not found, only feed URLs are accepted", zap.String("path", path))
		return nil, nil
	}
	return c, err
}

// systemDefaults returns the gbfs options configured globally.
func systemDefaults(gc config.GBFSConfig) ([]gbfs.Option, error) {
	policy, err := gbfs.ParseJoinPolicy(gc.JoinPolicy)
	if err != nil {
		return nil, err
	}
	return []gbfs.Option{gbfs.WithLanguage(gc.Language), gbfs.WithJoinPolicy(policy)}, nil
}

// resolveSystem turns a catalog tag or feed URL into a System.
func resolveSystem(c *config.Config, tagOrURL string) (*gbfs.System, error) {
	cat, err := loadCatalog(c.Catalog.Path)
	if err != nil {
		return nil, err
	}
	entry, err := cat.Resolve(tagOrURL)
	if err != nil {
		return nil, err
	}
	defaults, err := systemDefaults(c.GBFS)
	if err != nil {
		return nil, err
	}
	return entry.System(defaults...), nil
}

func storeConfig(sc config.StoreConfig) store.Config {
	return store.Config{Driver: sc.Driver, DatabaseURL: sc.DatabaseURL, MaxConns: sc.MaxConns}
}

// openStore opens and migrates the configured store.
func openStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	st, err := store.Open(ctx, storeConfig(sc))
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// responseCache returns the persistent response cache when a TTL is set,
// or nil.
func responseCache(st store.Store, fc config.FetchConfig) fetcher.Cache {
	if st == nil || fc.CacheTTL() <= 0 {
		return nil
	}
	return store.NewResponseCache(st, fc.CacheTTL())
}
