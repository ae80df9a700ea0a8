package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/questionbank/internal/platform/envutil"
	"github.com/yungbote/questionbank/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	opTotal      *CounterVec
	opLatency    *HistogramVec
	opConstraint *CounterVec
	opIOFailure  *CounterVec

	migrationRecords *CounterVec
	cacheLookups     *CounterVec

	storeStats *GaugeVec
	redisUp    *Gauge
	redisPing  *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Init returns the process-wide metrics registry, or nil when metrics are disabled.
func Init(log *logger.Logger, enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = New()
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

func Current() *Metrics {
	return instance
}

// New builds an unregistered metrics set. Tests use it directly.
func New() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("qb_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"qb_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		),
		apiInflight: NewGauge("qb_api_inflight_requests", "In-flight API requests."),

		opTotal: NewCounterVec("qb_store_operations_total", "Question store operations by operation/status.", []string{"operation", "status"}),
		opLatency: NewHistogramVec(
			"qb_store_operation_duration_seconds",
			"Question store operation latency in seconds by operation/status.",
			[]string{"operation", "status"},
			nil,
		),
		opConstraint: NewCounterVec("qb_store_constraint_violations_total", "Constraint violations by operation.", []string{"operation"}),
		opIOFailure:  NewCounterVec("qb_store_io_failures_total", "Storage I/O failures by operation.", []string{"operation"}),

		migrationRecords: NewCounterVec("qb_migration_records_total", "Legacy corpus records by outcome.", []string{"outcome"}),
		cacheLookups:     NewCounterVec("qb_cache_lookups_total", "Question cache lookups by result.", []string{"result"}),

		storeStats: NewGaugeVec("qb_store_pool", "database/sql pool stats for the question store.", []string{"stat"}),
		redisUp:    NewGauge("qb_redis_up", "Redis reachability (1 up, 0 down)."),
		redisPing:  NewGauge("qb_redis_ping_seconds", "Redis ping latency in seconds."),
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	writers := []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.opTotal, m.opLatency, m.opConstraint, m.opIOFailure,
		m.migrationRecords, m.cacheLookups,
		m.storeStats, m.redisUp, m.redisPing,
	}
	for _, mw := range writers {
		if err := mw.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveOperation(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	op = strings.TrimSpace(op)
	status = strings.TrimSpace(status)
	m.opTotal.Inc(op, status)
	m.opLatency.Observe(dur.Seconds(), op, status)
}

func (m *Metrics) IncConstraintViolation(op string) {
	if m == nil {
		return
	}
	m.opConstraint.Inc(strings.TrimSpace(op))
}

func (m *Metrics) IncIOFailure(op string) {
	if m == nil {
		return
	}
	m.opIOFailure.Inc(strings.TrimSpace(op))
}

// IncMigrationRecord counts one corpus record; outcome is migrated, skipped or failed.
func (m *Metrics) IncMigrationRecord(outcome string) {
	if m == nil {
		return
	}
	m.migrationRecords.Inc(outcome)
}

// IncCacheLookup counts a cache lookup; result is hit, miss or error.
func (m *Metrics) IncCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.Inc(result)
}

// OperationCount reports how many times op finished with status.
func (m *Metrics) OperationCount(op, status string) float64 {
	if m == nil {
		return 0
	}
	return m.opTotal.Value(op, status)
}

func scrapeInterval() time.Duration {
	d := envutil.Duration("METRICS_SCRAPE_INTERVAL", 15*time.Second)
	if d < time.Second {
		return time.Second
	}
	return d
}

// StartStoreCollector samples the store's connection pool until ctx is done.
func (m *Metrics) StartStoreCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sampleStore(log, db)
			}
		}
	}()
}

func (m *Metrics) sampleStore(log *logger.Logger, db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		if log != nil {
			log.Warn("metrics: store stats unavailable", "error", err)
		}
		return
	}
	stats := sqlDB.Stats()
	m.storeStats.Set(float64(stats.OpenConnections), "open_connections")
	m.storeStats.Set(float64(stats.InUse), "in_use")
	m.storeStats.Set(float64(stats.Idle), "idle")
	m.storeStats.Set(float64(stats.WaitCount), "wait_count")
	m.storeStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
	m.storeStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
}

// StartRedisCollector pings rdb on every scrape interval until ctx is done.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb *redis.Client) {
	if m == nil || rdb == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}
