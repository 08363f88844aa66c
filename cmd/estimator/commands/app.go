package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/wonny/surveyprogress/internal/contracts"
	"github.com/wonny/surveyprogress/internal/coordinator"
	"github.com/wonny/surveyprogress/internal/facade"
	"github.com/wonny/surveyprogress/internal/progress"
	"github.com/wonny/surveyprogress/pkg/config"
	"github.com/wonny/surveyprogress/pkg/database"
	"github.com/wonny/surveyprogress/pkg/httputil"
	"github.com/wonny/surveyprogress/pkg/logger"
	"github.com/wonny/surveyprogress/pkg/redis"
)

// app holds the wired dependencies shared by the commands
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	db     *database.DB
	redis  *redis.Client
	source contracts.SeriesSource
	coord  *coordinator.Coordinator
	facade *facade.Facade
}

// loadConfig reads configuration and builds the logger (stderr, so table and
// JSON output on stdout stay clean)
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, logger.NewWithWriter(cfg, os.Stderr), nil
}

// newApp wires config → source → coordinator → facade
func newApp(ctx context.Context) (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log}

	a.source, err = a.newSource(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	coordCfg, err := coordinator.ConfigFrom(cfg.Estimation)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("estimation config: %w", err)
	}

	var opts []coordinator.Option
	if cfg.Redis.Enabled {
		a.redis, err = redis.New(ctx, cfg)
		if err != nil {
			// 원격 캐시는 선택 사항: 메모리 캐시로 계속
			log.WithError(err).Warn("Redis unavailable, using in-memory cache only")
		} else {
			opts = append(opts, coordinator.WithRemoteCache(redis.NewCache(a.redis, "surveyprogress")))
		}
	}

	a.coord = coordinator.New(a.source, coordCfg, log.Component("coordinator"), opts...)
	a.facade = facade.New(a.coord, log.Component("facade"))
	return a, nil
}

// newSource picks the progress source from --source/--location and config
func (a *app) newSource(ctx context.Context) (contracts.SeriesSource, error) {
	kind := sourceKind
	if kind == "" {
		switch {
		case a.cfg.Database.Enabled():
			kind = "db"
		case a.cfg.Feed.URL != "":
			kind = "http"
		default:
			return nil, fmt.Errorf("no progress source: set DATABASE_URL, PROGRESS_FEED_URL or --source")
		}
	}

	switch kind {
	case "db":
		db, err := database.New(ctx, a.cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		a.log.Info("Connected to database")
		return progress.NewRepository(db.Pool), nil

	case "http":
		url := sourceLocation
		if url == "" {
			url = a.cfg.Feed.URL
		}
		if url == "" {
			return nil, fmt.Errorf("http source needs --location or PROGRESS_FEED_URL")
		}
		return progress.NewHTTPSource(a.httpClient(), url), nil

	case "html":
		if sourceLocation == "" {
			return nil, fmt.Errorf("html source needs --location")
		}
		return progress.NewHTMLReportSource(a.httpClient(), sourceLocation), nil

	case "file", "json", "yaml":
		if sourceLocation == "" {
			return nil, fmt.Errorf("file source needs --location")
		}
		return progress.LoadFile(sourceLocation)

	default:
		return nil, fmt.Errorf("unknown source %q (db|http|html|file)", kind)
	}
}

func (a *app) httpClient() *httputil.Client {
	return httputil.New(a.log, a.cfg.Feed.Timeout).WithRateLimit(a.cfg.Feed.RequestsPerSec)
}

// itemLister sources that can enumerate work items
type itemLister interface {
	ListItems(ctx context.Context, from, to time.Time) ([]string, error)
}

// Close releases connections
func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	a.db.Close()
}
