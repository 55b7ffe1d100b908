package main

import (
	"fmt"
	"log/slog"

	"github.com/bryan-buckman/headlines/internal/cache"
	"github.com/bryan-buckman/headlines/internal/config"
	"github.com/bryan-buckman/headlines/internal/database"
	"github.com/bryan-buckman/headlines/internal/favorites"
	"github.com/bryan-buckman/headlines/internal/feed"
	"github.com/bryan-buckman/headlines/internal/newsapi"
	"github.com/bryan-buckman/headlines/internal/preferences"
	"github.com/bryan-buckman/headlines/internal/rss"
	"github.com/bryan-buckman/headlines/internal/search"
	"github.com/bryan-buckman/headlines/internal/server"
)

// app holds every long-lived component built from the configuration.
type app struct {
	store     database.Store
	headlines *feed.Engine
	results   *feed.Engine
	searcher  *search.Controller
	favorites *favorites.Synchronizer
	prefs     *preferences.Service
}

func newSource(cfg *config.Config, logger *slog.Logger) (feed.Source, error) {
	if err := cfg.ValidateSource(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	var src feed.Source
	switch cfg.Feed.Source {
	case config.SourceRSS:
		f, err := rss.NewFetcher(rss.Options{URL: cfg.Feed.RSSURL, Logger: logger})
		if err != nil {
			return nil, err
		}
		src = f
	default:
		c, err := newsapi.New(newsapi.Options{
			BaseURL:       cfg.API.BaseURL,
			APIKey:        cfg.API.Key,
			Timeout:       cfg.API.Timeout,
			RatePerSecond: cfg.API.RatePerSecond,
			Burst:         cfg.API.Burst,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		src = c
	}
	if cfg.Cache.Size > 0 {
		src = cache.New(src, cfg.Cache.Size, cfg.Cache.TTL)
	}
	return src, nil
}

func openStore(cfg *config.Config, logger *slog.Logger) (database.Store, error) {
	store, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	logger.Debug("store opened", "type", store.DatabaseType())
	return store, nil
}

// newApp gives the headline and search engines separate sources so that one
// session reloading page 0 never changes the list the other is paging through.
func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	topSrc, err := newSource(cfg, logger)
	if err != nil {
		return nil, err
	}
	searchSrc, err := newSource(cfg, logger)
	if err != nil {
		return nil, err
	}
	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	results := feed.NewEngine(searchSrc, cfg.Feed.PageSize, logger)
	return &app{
		store:     store,
		headlines: feed.NewEngine(topSrc, cfg.Feed.PageSize, logger),
		results:   results,
		searcher:  search.NewController(results, cfg.Search.Debounce, logger),
		favorites: favorites.New(store, logger),
		prefs:     preferences.New(store),
	}, nil
}

func (a *app) server(logger *slog.Logger) *server.Server {
	return server.New(server.Deps{
		Headlines: a.headlines,
		Search:    a.results,
		Searcher:  a.searcher,
		Favorites: a.favorites,
		Prefs:     a.prefs,
		Logger:    logger,
	})
}

func (a *app) Close() error {
	a.searcher.Close()
	a.headlines.Close()
	a.results.Close()
	return a.store.Close()
}
