package staffplancli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/phillip-england/staffplan/internal/config"
	"github.com/phillip-england/staffplan/internal/feeds"
	"github.com/phillip-england/staffplan/internal/logging"
	"github.com/phillip-england/staffplan/internal/planner"
	"github.com/phillip-england/staffplan/internal/store"
	"github.com/phillip-england/staffplan/internal/template"
)

// app is everything a command needs once configuration is loaded.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	svc     planner.Service
	closers []func() error
}

func bootstrap(ctx context.Context, envFile string) (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	if err := ensureParentDirs(cfg.DBPath); err != nil {
		return nil, err
	}
	st := store.New(cfg.DBPath)
	if err := st.InitSchema(ctx); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	profiles, err := template.LoadProfiles(cfg.ProfilePath)
	if err != nil {
		return nil, err
	}

	var cache feeds.Cache = feeds.NewStoreCache(st)
	if cfg.RedisAddr != "" {
		rc, err := feeds.NewRedisCache(cfg.RedisAddr, logger)
		if err != nil {
			logger.Warn("redis unavailable, caching feeds in sqlite", zap.Error(err))
		} else {
			cache = rc
			a.closers = append(a.closers, rc.Close)
		}
	}

	client := feeds.NewClient(cfg.WeatherURL, cfg.PTOURL, cfg.HTTPTimeout)
	a.svc = planner.NewService(
		st,
		template.NewResolver(profiles),
		feeds.NewSyncer(planner.FeedWeather, client.FetchWeather, cache, logger),
		feeds.NewSyncer(planner.FeedPTO, client.FetchPTO, cache, logger),
		planner.Options{
			HorizonWeeks:         cfg.HorizonWeeks,
			IncludeDelivery:      cfg.IncludeDelivery,
			NormalsLookbackYears: cfg.NormalsLookbackYear,
		},
		logger,
	)
	return a, nil
}

func (a *app) Close() {
	for _, c := range a.closers {
		_ = c()
	}
	_ = a.logger.Sync()
}

func ensureParentDirs(paths ...string) error {
	for _, p := range paths {
		dir := filepath.Dir(p)
		if dir == "." || dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
