package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/FranksOps/keyrank/internal/config"
	"github.com/FranksOps/keyrank/internal/fingerprint"
	"github.com/FranksOps/keyrank/internal/keyword"
	"github.com/FranksOps/keyrank/internal/phrase"
	"github.com/FranksOps/keyrank/internal/pipeline"
	"github.com/FranksOps/keyrank/internal/rank"
	"github.com/FranksOps/keyrank/internal/scraper"
	"github.com/FranksOps/keyrank/internal/serp"
	"github.com/FranksOps/keyrank/internal/storage"
	"github.com/FranksOps/keyrank/internal/storage/csvbackend"
	"github.com/FranksOps/keyrank/internal/storage/jsonbackend"
	"github.com/FranksOps/keyrank/internal/storage/postgres"
	"github.com/FranksOps/keyrank/internal/storage/sqlite"
	"github.com/FranksOps/keyrank/pkg/proxy"
	"github.com/FranksOps/keyrank/pkg/ratelimit"
	"github.com/FranksOps/keyrank/pkg/useragent"
)

// loadConfig resolves the configuration for cmd, honouring --config and
// any explicitly set flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.Load(path, cmd.Flags())
}

// newLogger builds the process logger from cfg.
func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// app holds the long-lived components shared by analyze and serve.
type app struct {
	pipeline *pipeline.Pipeline
	store    storage.Backend
	logger   *slog.Logger
}

func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// newApp wires fetchers, the search provider, the phrase extractor and the
// optional report archive into a pipeline.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	profile, err := fingerprint.ParseProfile(cfg.Fetch.Fingerprint)
	if err != nil {
		return nil, err
	}

	var proxies *proxy.Pool
	if cfg.Fetch.ProxyFile != "" {
		proxies = proxy.NewPool(proxy.Config{})
		if err := proxies.LoadFile(cfg.Fetch.ProxyFile); err != nil {
			return nil, fmt.Errorf("load proxies: %w", err)
		}
		logger.Info("proxy pool loaded", "count", proxies.Len())
	}

	uas := useragent.ForBrowser(string(profile))
	if len(cfg.Fetch.UserAgents) > 0 {
		uas = useragent.NewPool(cfg.Fetch.UserAgents)
	}

	fetcher, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:      cfg.Fetch.Timeout,
		MaxRedirects: cfg.Fetch.MaxRedirects,
		UseCookieJar: cfg.Fetch.CookieJar,
		ProxyPool:    proxies,
		UAPool:       uas,
		Fingerprint:  profile,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("create fetcher: %w", err)
	}

	provider, err := newProvider(ctx, cfg.Search, fetcher, logger)
	if err != nil {
		return nil, err
	}

	normalizer := keyword.NewNormalizer(cfg.Keywords.ExcludeTerms...)
	if len(cfg.Keywords.StopTerms) > 0 {
		normalizer = keyword.NewNormalizerWithStopTerms(cfg.Keywords.StopTerms, cfg.Keywords.ExcludeTerms...)
	}

	strategy, err := phrase.ParseStrategy(cfg.Phrases.Strategy)
	if err != nil {
		return nil, err
	}
	extractor, err := phrase.New(phrase.Config{
		Strategy:   strategy,
		MaxPhrases: cfg.Phrases.MaxPhrases,
		OpenAI: phrase.OpenAIConfig{
			APIKey:  cfg.Phrases.OpenAI.APIKey,
			BaseURL: cfg.Phrases.OpenAI.BaseURL,
			Model:   cfg.Phrases.OpenAI.Model,
			Timeout: cfg.Phrases.OpenAI.Timeout,
		},
	}, normalizer, logger)
	if err != nil {
		return nil, err
	}

	store, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	pcfg := pipeline.Config{
		Fetcher: scraper.NewMetadataFetcher(fetcher, scraper.MetadataConfig{
			RespectRobots:   cfg.Fetch.RespectRobots,
			RobotsUserAgent: "keyrank",
			Logger:          logger,
		}),
		Collector: keyword.NewCollector(keyword.CollectorConfig{
			Normalizer:    normalizer,
			Extractor:     extractor,
			MaxCandidates: cfg.Keywords.MaxCandidates,
			Logger:        logger,
		}),
		Resolver:    rank.NewResolver(provider, cfg.Search.Window, logger),
		Store:       store,
		Concurrency: cfg.Search.Concurrency,
		Timeout:     cfg.Analysis.Timeout,
		Logger:      logger,
	}

	p, err := pipeline.New(pcfg)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}
	return &app{pipeline: p, store: store, logger: logger}, nil
}

// newProvider builds the search provider named by cfg.Provider. A single
// limiter paces every lookup the provider serves.
func newProvider(ctx context.Context, cfg config.SearchConfig, fetcher *scraper.Fetcher, logger *slog.Logger) (serp.Provider, error) {
	limiter := ratelimit.NewLimiter(cfg.RequestsPerSecond, cfg.Jitter)

	switch cfg.Provider {
	case "google":
		return serp.NewGoogleScrape(fetcher, serp.GoogleConfig{
			BaseURL:  cfg.BaseURL,
			Language: cfg.Language,
			Limiter:  limiter,
			Logger:   logger,
		}), nil
	case "customsearch":
		cs, err := serp.NewCustomSearch(ctx, serp.CustomSearchConfig{
			APIKey:   cfg.APIKey,
			EngineID: cfg.EngineID,
			Language: cfg.Language,
			Endpoint: cfg.BaseURL,
			Limiter:  limiter,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		return cs, nil
	}
	return nil, fmt.Errorf("unknown search provider %q", cfg.Provider)
}

var errNoStorage = errors.New("no report storage configured (set --storage and --dsn)")

// openStorage opens the configured archive. It returns a nil Backend for
// the "none" backend.
func openStorage(ctx context.Context, cfg config.StorageConfig) (storage.Backend, error) {
	var (
		b   storage.Backend
		err error
	)
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "sqlite":
		b, err = sqlite.New(cfg.DSN)
	case "postgres":
		b, err = postgres.New(ctx, cfg.DSN)
	case "json":
		b, err = jsonbackend.New(cfg.DSN)
	case "csv":
		b, err = csvbackend.New(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Backend, err)
	}
	return b, nil
}
