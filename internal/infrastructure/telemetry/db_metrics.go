package telemetry

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBMetricsConfig tunes query and pool instrumentation.
type DBMetricsConfig struct {
	Enabled bool
	// Queries slower than this count toward the slow query total (default 200ms).
	SlowQueryThreshold time.Duration
	// How often pool stats are sampled (default 15s).
	PoolStatsInterval time.Duration
}

// DefaultDBMetricsConfig returns the defaults used when config leaves the
// thresholds unset.
func DefaultDBMetricsConfig() DBMetricsConfig {
	return DBMetricsConfig{
		Enabled:            true,
		SlowQueryThreshold: 200 * time.Millisecond,
		PoolStatsInterval:  15 * time.Second,
	}
}

// DBMetrics records query latency, query counts, slow queries, and
// connection pool utilization.
type DBMetrics struct {
	poolConnections    *Gauge
	poolConnectionsMax *Gauge
	queryTotal         *Counter
	queryDuration      *Histogram
	slowQueryTotal     *Counter

	slowThreshold time.Duration
	interval      time.Duration
	logger        *zap.Logger
	stopCh        chan struct{}
	wg            sync.WaitGroup
	stopOnce      sync.Once
}

// NewDBMetrics creates the instruments on the given meter.
func NewDBMetrics(meter metric.Meter, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowQueryThreshold == 0 {
		cfg.SlowQueryThreshold = 200 * time.Millisecond
	}
	if cfg.PoolStatsInterval == 0 {
		cfg.PoolStatsInterval = 15 * time.Second
	}

	poolConnections, err := NewGauge(meter,
		"db_pool_connections",
		"Number of connections in the pool by state",
		"{connection}")
	if err != nil {
		return nil, err
	}

	poolConnectionsMax, err := NewGauge(meter,
		"db_pool_connections_max",
		"Maximum number of connections in the pool",
		"{connection}")
	if err != nil {
		return nil, err
	}

	queryTotal, err := NewCounter(meter,
		"db_query_total",
		"Total number of database queries by operation type",
		"{query}")
	if err != nil {
		return nil, err
	}

	queryDuration, err := NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database query latency distribution in seconds",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	slowQueryTotal, err := NewCounter(meter,
		"db_slow_query_total",
		"Total number of database queries over the slow threshold",
		"{query}")
	if err != nil {
		return nil, err
	}

	return &DBMetrics{
		poolConnections:    poolConnections,
		poolConnectionsMax: poolConnectionsMax,
		queryTotal:         queryTotal,
		queryDuration:      queryDuration,
		slowQueryTotal:     slowQueryTotal,
		slowThreshold:      cfg.SlowQueryThreshold,
		interval:           cfg.PoolStatsInterval,
		logger:             logger,
		stopCh:             make(chan struct{}),
	}, nil
}

// RecordQuery records one completed query.
func (m *DBMetrics) RecordQuery(ctx context.Context, operation, table string, duration time.Duration) {
	operation = strings.ToUpper(operation)
	if operation == "" {
		operation = "UNKNOWN"
	}

	m.queryTotal.Inc(ctx, AttrDBOperation.String(operation))
	m.queryDuration.RecordDuration(ctx, duration, AttrDBOperation.String(operation))

	if duration > m.slowThreshold {
		if table == "" {
			table = "unknown"
		}
		m.slowQueryTotal.Inc(ctx, AttrDBTable.String(table))
	}
}

// ObservePool records one snapshot of the connection pool state.
func (m *DBMetrics) ObservePool(ctx context.Context, sqlDB *sql.DB) {
	stats := sqlDB.Stats()

	m.poolConnectionsMax.Record(ctx, int64(stats.MaxOpenConnections))
	m.poolConnections.Record(ctx, int64(stats.Idle), AttrDBState.String("idle"))
	m.poolConnections.Record(ctx, int64(stats.InUse), AttrDBState.String("in_use"))
	m.poolConnections.Record(ctx, int64(stats.OpenConnections), AttrDBState.String("open"))
}

// WatchPool samples pool stats on the configured interval until Stop is
// called or the context ends.
func (m *DBMetrics) WatchPool(ctx context.Context, sqlDB *sql.DB) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.ObservePool(ctx, sqlDB)

		for {
			select {
			case <-ticker.C:
				m.ObservePool(ctx, sqlDB)
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	m.logger.Info("Sampling database pool stats",
		zap.Duration("interval", m.interval),
	)
}

// Stop terminates pool watching. Safe to call multiple times.
func (m *DBMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()
	})
}

type dbMetricsContextKey struct{}

// queryMetricsPlugin is a GORM plugin feeding DBMetrics from query callbacks.
type queryMetricsPlugin struct {
	metrics *DBMetrics
}

// NewQueryMetricsPlugin wraps DBMetrics as a GORM plugin.
func NewQueryMetricsPlugin(metrics *DBMetrics) gorm.Plugin {
	return &queryMetricsPlugin{metrics: metrics}
}

func (p *queryMetricsPlugin) Name() string {
	return "query_metrics"
}

func (p *queryMetricsPlugin) Initialize(db *gorm.DB) error {
	start := func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		db.Statement.Context = context.WithValue(ctx, dbMetricsContextKey{}, time.Now())
	}
	finish := func(operation string) func(*gorm.DB) {
		return func(db *gorm.DB) {
			op := operation
			if op == "" {
				op = sniffOperation(db.Statement.SQL.String())
			}
			p.record(db, op)
		}
	}

	cb := db.Callback()
	regs := []error{
		cb.Create().Before("gorm:create").Register("query_metrics:start_create", start),
		cb.Create().After("gorm:create").Register("query_metrics:finish_create", finish("INSERT")),
		cb.Query().Before("gorm:query").Register("query_metrics:start_query", start),
		cb.Query().After("gorm:query").Register("query_metrics:finish_query", finish("SELECT")),
		cb.Update().Before("gorm:update").Register("query_metrics:start_update", start),
		cb.Update().After("gorm:update").Register("query_metrics:finish_update", finish("UPDATE")),
		cb.Delete().Before("gorm:delete").Register("query_metrics:start_delete", start),
		cb.Delete().After("gorm:delete").Register("query_metrics:finish_delete", finish("DELETE")),
		cb.Row().Before("gorm:row").Register("query_metrics:start_row", start),
		cb.Row().After("gorm:row").Register("query_metrics:finish_row", finish("")),
		cb.Raw().Before("gorm:raw").Register("query_metrics:start_raw", start),
		cb.Raw().After("gorm:raw").Register("query_metrics:finish_raw", finish("")),
	}
	for _, err := range regs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *queryMetricsPlugin) record(db *gorm.DB, operation string) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}

	var duration time.Duration
	if startTime, ok := ctx.Value(dbMetricsContextKey{}).(time.Time); ok {
		duration = time.Since(startTime)
	}

	p.metrics.RecordQuery(ctx, operation, db.Statement.Table, duration)
}

// sniffOperation classifies raw SQL by its leading keyword.
func sniffOperation(sql string) string {
	sql = strings.TrimSpace(strings.ToUpper(sql))
	for _, op := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(sql, op) {
			return op
		}
	}
	return "OTHER"
}

// RegisterDBMetrics creates DBMetrics, attaches the GORM plugin, and starts
// pool stat sampling. Returns nil when metrics are disabled; the caller owns
// the returned instance and must call Stop on shutdown.
func RegisterDBMetrics(ctx context.Context, db *gorm.DB, meterProvider *MeterProvider, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	if !cfg.Enabled || meterProvider == nil || !meterProvider.IsEnabled() {
		logger.Debug("Database metrics disabled, nothing registered")
		return nil, nil
	}

	metrics, err := NewDBMetrics(meterProvider.Meter("db.client"), cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := db.Use(NewQueryMetricsPlugin(metrics)); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	metrics.WatchPool(ctx, sqlDB)

	logger.Info("Database metrics registered",
		zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold),
		zap.Duration("pool_stats_interval", cfg.PoolStatsInterval),
	)

	return metrics, nil
}
