package app

import (
	"context"

	redisclient "github.com/yungbote/questionbank/internal/clients/redis"
	"github.com/yungbote/questionbank/internal/data/aggregates"
	"github.com/yungbote/questionbank/internal/data/db"
	apphttp "github.com/yungbote/questionbank/internal/http"
	httpH "github.com/yungbote/questionbank/internal/http/handlers"
	"github.com/yungbote/questionbank/internal/observability"
	"github.com/yungbote/questionbank/internal/platform/config"
	"github.com/yungbote/questionbank/internal/platform/logger"
)

// wireCache connects the optional fetch cache. The app runs without it when Redis is not
// configured or unreachable.
func wireCache(ctx context.Context, cfg *config.Config, log *logger.Logger, metrics *observability.Metrics) *redisclient.QuestionCache {
	if cfg.Redis.Addr == "" {
		return nil
	}
	log.Info("Connecting question cache...", "addr", cfg.Redis.Addr)
	cache, err := redisclient.NewQuestionCache(ctx, redisclient.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      cfg.Redis.TTL,
	}, log, metrics)
	if err != nil {
		log.Warn("question cache disabled", "error", err)
		return nil
	}
	return cache
}

func wireBank(store *db.Store, log *logger.Logger, metrics *observability.Metrics, cache *redisclient.QuestionCache) *aggregates.QuestionBank {
	opts := aggregates.Options{Hooks: aggregates.NewObservabilityHooks(metrics)}
	if cache != nil {
		opts.Cache = cache
	}
	return aggregates.NewQuestionBank(store.DB(), log, opts)
}

func wireServer(cfg *config.Config, log *logger.Logger, metrics *observability.Metrics, store *db.Store, bank *aggregates.QuestionBank) *apphttp.Server {
	log.Info("Wiring router...")
	return apphttp.NewServer(cfg.HTTP.Addr, apphttp.RouterConfig{
		Log:             log,
		Metrics:         metrics,
		CORSOrigins:     cfg.HTTP.CORSOrigins,
		QuestionHandler: httpH.NewQuestionHandler(log, bank, cfg.PageSize),
		HealthHandler:   httpH.NewHealthHandler(store.DB()),
	})
}
