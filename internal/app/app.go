package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"

	redisclient "github.com/yungbote/questionbank/internal/clients/redis"
	"github.com/yungbote/questionbank/internal/data/aggregates"
	"github.com/yungbote/questionbank/internal/data/db"
	apphttp "github.com/yungbote/questionbank/internal/http"
	"github.com/yungbote/questionbank/internal/observability"
	"github.com/yungbote/questionbank/internal/platform/config"
	"github.com/yungbote/questionbank/internal/platform/envutil"
	"github.com/yungbote/questionbank/internal/platform/logger"
)

type App struct {
	Log     *logger.Logger
	Cfg     *config.Config
	Store   *db.Store
	Bank    *aggregates.QuestionBank
	Metrics *observability.Metrics
	Cache   *redisclient.QuestionCache
	Router  *gin.Engine
	Server  *apphttp.Server

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

// New builds the app from LOG_MODE, .env, the YAML config file and environment overrides.
func New(ctx context.Context) (*App, error) {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	cfg, err := config.Load(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}
	return Build(ctx, cfg, log, observability.Init(log, cfg.MetricsEnabled))
}

// Build wires every component from an already resolved config. metrics may be nil.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger, metrics *observability.Metrics) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if log == nil {
		log = logger.Nop()
	}
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     cfg.OTelEnabled,
		ServiceName: "questionbank",
		Environment: cfg.Env,
	})

	log.Info("Opening question store...", "path", cfg.DefaultDBPath)
	store, err := db.Open(ctx, cfg.DefaultDBPath, db.Options{Create: cfg.CreateDB, Log: log})
	if err != nil {
		_ = otelShutdown(ctx)
		return nil, fmt.Errorf("open store: %w", err)
	}
	rememberStore(cfg, log)

	cache := wireCache(ctx, cfg, log, metrics)
	bank := wireBank(store, log, metrics, cache)
	server := wireServer(cfg, log, metrics, store, bank)

	return &App{
		Log:          log,
		Cfg:          cfg,
		Store:        store,
		Bank:         bank,
		Metrics:      metrics,
		Cache:        cache,
		Router:       server.Engine,
		Server:       server,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches background collectors. It is safe to call once.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.Metrics.StartStoreCollector(ctx, a.Log, a.Store.DB())
	if a.Cache != nil {
		a.Metrics.StartRedisCollector(ctx, a.Log, a.Cache.Client())
	}
}

// Run serves HTTP until ctx is cancelled, then shuts down within the configured timeout.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("HTTP server listening", "addr", a.Server.Addr())
		errCh <- a.Server.Run()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			a.Log.Warn("http shutdown failed", "error", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Log.Warn("redis close failed", "error", err)
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Log.Warn("store close failed", "error", err)
		}
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}

// rememberStore records the opened store in the recent-databases list of the config file it came from.
func rememberStore(cfg *config.Config, log *logger.Logger) {
	if cfg.Path() == "" || db.IsPostgresLocation(cfg.DefaultDBPath) {
		return
	}
	cfg.RememberDatabase(cfg.DefaultDBPath)
	if err := cfg.Save(""); err != nil {
		log.Warn("could not update recent databases", "path", cfg.Path(), "error", err)
	}
}
