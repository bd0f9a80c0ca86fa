package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	spacetravel "github.com/eringen/spacetravel"
	"github.com/eringen/spacetravel/content"
	"github.com/eringen/spacetravel/localstore"
	"github.com/eringen/spacetravel/metrics"
	"github.com/eringen/spacetravel/prismic"
	"github.com/eringen/spacetravel/views"
)

// openSource returns the content source selected by cfg and a function
// releasing it.
func openSource(ctx context.Context, cfg spacetravel.SiteConfig, rec prismic.Recorder, logger *slog.Logger) (content.Source, func() error, error) {
	switch cfg.ContentSource {
	case spacetravel.SourceSQLite:
		store, err := localstore.Open(cfg.LocalDatabasePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open local store: %w", err)
		}
		if cfg.FixturesPath != "" {
			n, err := store.LoadFixturesFile(ctx, cfg.FixturesPath)
			if err != nil {
				store.Close()
				return nil, nil, fmt.Errorf("load fixtures: %w", err)
			}
			logger.Info("fixtures loaded", "path", cfg.FixturesPath, "documents", n)
		}
		return store, store.Close, nil
	default:
		client, err := prismic.New(prismic.Config{
			Endpoint:    cfg.PrismicEndpoint,
			AccessToken: cfg.PrismicAccessToken,
			HTTPClient:  &http.Client{Timeout: cfg.CMSTimeout},
			Logger:      logger,
			Recorder:    rec,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, func() error { return nil }, nil
	}
}

func newMetrics(cfg spacetravel.SiteConfig) (*prom.Registry, *metrics.Recorder) {
	if !cfg.MetricsEnabled {
		return nil, nil
	}
	reg := prom.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewRecorder(reg)
}

func serve(ctx context.Context, cfg spacetravel.SiteConfig, logger *slog.Logger) error {
	reg, rec := newMetrics(cfg)
	var cmsRec prismic.Recorder
	if rec != nil {
		cmsRec = rec
	}
	src, closeSource, err := openSource(ctx, cfg, cmsRec, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	opts := []spacetravel.Option{spacetravel.WithLogger(logger)}
	if reg != nil {
		opts = append(opts, spacetravel.WithMetrics(reg, rec))
	}
	app := spacetravel.New(cfg, src, views.Funcs(), opts...)
	defer app.Close()
	if !cfg.PreviewEnabled() {
		logger.Warn("SESSION_SECRET is not set, previews are disabled")
	}
	return app.Start(ctx)
}

func build(ctx context.Context, cfg spacetravel.SiteConfig, logger *slog.Logger) error {
	src, closeSource, err := openSource(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	app := spacetravel.New(cfg, src, views.Funcs(), spacetravel.WithLogger(logger))
	return app.Generator.BuildSite(ctx)
}

func seed(ctx context.Context, cfg spacetravel.SiteConfig, file string, logger *slog.Logger) error {
	if cfg.ContentSource != spacetravel.SourceSQLite {
		return errors.New("seed requires CONTENT_SOURCE=sqlite")
	}
	store, err := localstore.Open(cfg.LocalDatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()
	n, err := store.LoadFixturesFile(ctx, file)
	if err != nil {
		return err
	}
	logger.Info("fixtures loaded", "path", file, "documents", n, "database", cfg.LocalDatabasePath)
	return nil
}
