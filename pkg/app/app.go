// Package app wires storage, services and the HTTP router from a Config.
package app

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
	rediscache "github.com/wadjakorntonsri/go-tracking-links/pkg/adapters/cache/redis"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/adapters/handler"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/config"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/core/services"
)

type App struct {
	Handler  http.Handler
	Store    *sqlite.SQLiteRepository
	Links    *services.LinkService
	Tracking *services.TrackingService
	Stats    *services.StatsService

	closers []func() error
}

// New opens the database and, when REDIS_URL is set, the link cache. An
// unreachable Redis is logged and the app runs without a cache.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*App, error) {
	store, err := sqlite.NewSQLiteRepository(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a := &App{Store: store, closers: []func() error{store.Close}}

	opts := []services.Option{
		services.WithLogger(logger),
		services.WithCodeLength(cfg.CodeLength),
		services.WithTrackingTimeout(cfg.TrackingTimeout),
	}

	if cfg.RedisURL != "" {
		client, err := rediscache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("redis unavailable, running without link cache")
		} else {
			a.closers = append(a.closers, client.Close)
			opts = append(opts, services.WithCache(rediscache.NewLinkCache(client, cfg.CacheTTL)))
			logger.Info("link cache enabled")
		}
	}

	recorder := services.NewRecorder(store, store, opts...)
	a.Links = services.NewLinkService(store, opts...)
	a.Tracking = services.NewTrackingService(store, store, recorder, opts...)
	a.Stats = services.NewStatsService(store, store, store, opts...)

	a.Handler = handler.NewRouter(cfg, handler.Services{
		Links:    a.Links,
		Tracking: a.Tracking,
		Stats:    a.Stats,
		Actors:   store,
	}, logger)
	return a, nil
}

// Close releases the cache client and the database, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// NewLogger builds the process logger: JSON in production, text elsewhere.
func NewLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if cfg.IsProduction() {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.WithField("log_level", cfg.LogLevel).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
