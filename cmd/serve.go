package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/gbfs-cli/internal/api"
	"github.com/sells-group/gbfs-cli/internal/fetcher"
	"github.com/sells-group/gbfs-cli/internal/gbfs"
	"github.com/sells-group/gbfs-cli/internal/monitoring"
	"github.com/sells-group/gbfs-cli/internal/store"
)

var (
	servePort    int
	serveSystems []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve station data over HTTP with periodic refresh",
	Long:  "Starts an HTTP API over the catalog systems (or --system values). Each system is refreshed in the background; a failed refresh keeps the last good stations.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if servePort > 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		systems, err := serveTargets(serveSystems)
		if err != nil {
			return err
		}
		if len(systems) == 0 {
			return eris.Errorf("no systems to serve: add entries to %s or pass --system", cfg.Catalog.Path)
		}

		var st store.Store
		if cfg.Server.Persist || cfg.Fetch.CacheTTLSecs > 0 {
			if st, err = openStore(ctx, cfg.Store); err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		req, err := newRequester(cfg.Fetch, responseCache(st, cfg.Fetch))
		if err != nil {
			return err
		}

		var persist store.Store
		if cfg.Server.Persist {
			persist = st
		}

		reg := api.NewRegistry(systems...)
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           api.NewRouter(reg, api.Options{CORSOrigins: cfg.Server.CORSOrigins}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, sys := range systems {
			g.Go(func() error {
				refreshLoop(gctx, sys, req, persist, cfg.Server.RefreshInterval())
				return nil
			})
		}
		if st != nil && cfg.Fetch.CacheTTLSecs > 0 {
			g.Go(func() error {
				pruneLoop(gctx, st, cfg.Fetch.CacheTTL())
				return nil
			})
		}

		checker := monitoring.NewChecker(
			monitoring.NewCollector(reg),
			monitoring.NewAlerter(cfg.Monitoring),
			cfg.Monitoring,
		)
		g.Go(func() error {
			checker.Run(gctx)
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		g.Go(func() error {
			zap.L().Info("starting server",
				zap.Int("port", cfg.Server.Port),
				zap.Int("systems", len(systems)),
				zap.Duration("refresh", cfg.Server.RefreshInterval()),
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (overrides config)")
	serveCmd.Flags().StringArrayVar(&serveSystems, "system", nil, "catalog tag or feed URL to serve (repeatable, default: whole catalog)")
	rootCmd.AddCommand(serveCmd)
}

// serveTargets builds the systems to serve: the named ones, or every
// catalog entry when none are named.
func serveTargets(names []string) ([]*gbfs.System, error) {
	if len(names) > 0 {
		out := make([]*gbfs.System, 0, len(names))
		for _, n := range names {
			sys, err := resolveSystem(cfg, n)
			if err != nil {
				return nil, err
			}
			out = append(out, sys)
		}
		return out, nil
	}

	cat, err := loadCatalog(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	defaults, err := systemDefaults(cfg.GBFS)
	if err != nil {
		return nil, err
	}
	entries := cat.Entries()
	out := make([]*gbfs.System, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.System(defaults...))
	}
	return out, nil
}

// refreshLoop updates sys immediately and then every interval until ctx is
// done. Failures are logged by the system and retried on the next tick.
func refreshLoop(ctx context.Context, sys *gbfs.System, req fetcher.Requester, persist store.Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		refreshOnce(ctx, sys, req, persist)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func refreshOnce(ctx context.Context, sys *gbfs.System, req fetcher.Requester, persist store.Store) {
	if err := sys.Update(ctx, req); err != nil {
		return
	}
	if persist == nil {
		return
	}
	stations, updatedAt, _ := sys.Snapshot()
	if _, err := persist.SaveSnapshot(ctx, sys.Meta(), stations, updatedAt); err != nil {
		zap.L().Error("save snapshot", zap.String("system", sys.Tag()), zap.Error(err))
	}
}

// pruneLoop deletes expired cached responses once per ttl.
func pruneLoop(ctx context.Context, st store.Store, ttl time.Duration) {
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := st.DeleteExpiredResponses(ctx)
			if err != nil {
				zap.L().Warn("prune response cache", zap.Error(err))
				continue
			}
			if n > 0 {
				zap.L().Debug("pruned response cache", zap.Int("deleted", n))
			}
		}
	}
}
