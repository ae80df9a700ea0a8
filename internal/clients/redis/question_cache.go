package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/questionbank/internal/domain/question"
	"github.com/yungbote/questionbank/internal/observability"
	"github.com/yungbote/questionbank/internal/platform/logger"
)

const defaultKeyPrefix = "qb:question:"

type Config struct {
	Addr      string
	Password  string
	DB        int
	TTL       time.Duration
	KeyPrefix string
}

// QuestionCache is a read-through cache for single-question fetches. Entries expire after TTL and
// are deleted when the question is saved or deleted.
type QuestionCache struct {
	log     *logger.Logger
	rdb     *goredis.Client
	ttl     time.Duration
	prefix  string
	metrics *observability.Metrics
}

// NewQuestionCache connects to cfg.Addr and pings it before returning.
func NewQuestionCache(ctx context.Context, cfg Config, log *logger.Logger, metrics *observability.Metrics) (*QuestionCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newQuestionCache(rdb, cfg, log, metrics), nil
}

func newQuestionCache(rdb *goredis.Client, cfg Config, log *logger.Logger, metrics *observability.Metrics) *QuestionCache {
	prefix := cfg.KeyPrefix
	if strings.TrimSpace(prefix) == "" {
		prefix = defaultKeyPrefix
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &QuestionCache{
		log:     log.With("service", "RedisQuestionCache"),
		rdb:     rdb,
		ttl:     ttl,
		prefix:  prefix,
		metrics: metrics,
	}
}

func (c *QuestionCache) Client() *goredis.Client { return c.rdb }

func (c *QuestionCache) key(uid string) string { return c.prefix + uid }

func (c *QuestionCache) Get(ctx context.Context, uid string) (*question.Question, bool, error) {
	if c == nil || c.rdb == nil {
		return nil, false, fmt.Errorf("redis question cache not initialized")
	}
	raw, err := c.rdb.Get(ctx, c.key(uid)).Bytes()
	if errors.Is(err, goredis.Nil) {
		c.metrics.IncCacheLookup("miss")
		return nil, false, nil
	}
	if err != nil {
		c.metrics.IncCacheLookup("error")
		return nil, false, err
	}
	var q question.Question
	if err := json.Unmarshal(raw, &q); err != nil {
		c.metrics.IncCacheLookup("error")
		c.log.Warn("dropping undecodable cache entry", "uid", uid, "error", err)
		_ = c.rdb.Del(ctx, c.key(uid)).Err()
		return nil, false, nil
	}
	c.metrics.IncCacheLookup("hit")
	return &q, true, nil
}

func (c *QuestionCache) Set(ctx context.Context, q question.Question) error {
	if c == nil || c.rdb == nil {
		return fmt.Errorf("redis question cache not initialized")
	}
	raw, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key(q.UID), raw, c.ttl).Err()
}

func (c *QuestionCache) Invalidate(ctx context.Context, uids ...string) error {
	if c == nil || c.rdb == nil {
		return fmt.Errorf("redis question cache not initialized")
	}
	keys := make([]string, 0, len(uids))
	for _, u := range uids {
		if u = strings.TrimSpace(u); u != "" {
			keys = append(keys, c.key(u))
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *QuestionCache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
