package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig tunes per-query span creation.
type DBTracingConfig struct {
	Enabled bool
	// RecordSQLValues includes bind parameters in span SQL statements.
	// Payment amounts and tenant names end up in the collector when this
	// is on, so it stays off outside development.
	RecordSQLValues bool
	// Queries slower than this get a slow_query event on their span
	// (default 200ms).
	SlowQueryThreshold time.Duration
	// DBName labels the spans (default "postgresql").
	DBName string
}

// DefaultDBTracingConfig keeps bind parameters out of spans.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		Enabled:            false,
		RecordSQLValues:    false,
		SlowQueryThreshold: 200 * time.Millisecond,
		DBName:             "postgresql",
	}
}

// RegisterDBTracing installs otelgorm on the connection so every query runs
// inside its own span, plus callbacks that enrich those spans with row
// counts, table names, errors, and slow query events.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		logger.Debug("Database tracing disabled, queries run untraced")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.RecordSQLValues {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	enricher := &spanEnricher{threshold: cfg.SlowQueryThreshold}
	if err := enricher.register(db); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.Bool("record_sql_values", cfg.RecordSQLValues),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold),
	)
	return nil
}

type queryStartKey struct{}

// spanEnricher annotates the span otelgorm opened for each statement.
// The before callback stamps a start time on the statement context; the
// after callback reads it back to spot slow queries.
type spanEnricher struct {
	threshold time.Duration
}

func (e *spanEnricher) before(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
	}
}

func (e *spanEnricher) after(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}

	// A lookup that misses is a normal outcome, not a span error.
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	if start, ok := ctx.Value(queryStartKey{}).(time.Time); ok {
		if elapsed := time.Since(start); elapsed > e.threshold {
			span.SetAttributes(attribute.Bool("db.slow_query", true))
			span.AddEvent("slow_query", trace.WithAttributes(
				attribute.Int64("duration_ms", elapsed.Milliseconds()),
				attribute.Int64("threshold_ms", e.threshold.Milliseconds()),
			))
		}
	}
}

func (e *spanEnricher) register(db *gorm.DB) error {
	regs := []error{
		db.Callback().Create().Before("gorm:create").Register("dbtrace:before_create", e.before),
		db.Callback().Create().After("gorm:create").Register("dbtrace:after_create", e.after),
		db.Callback().Query().Before("gorm:query").Register("dbtrace:before_query", e.before),
		db.Callback().Query().After("gorm:query").Register("dbtrace:after_query", e.after),
		db.Callback().Update().Before("gorm:update").Register("dbtrace:before_update", e.before),
		db.Callback().Update().After("gorm:update").Register("dbtrace:after_update", e.after),
		db.Callback().Delete().Before("gorm:delete").Register("dbtrace:before_delete", e.before),
		db.Callback().Delete().After("gorm:delete").Register("dbtrace:after_delete", e.after),
		db.Callback().Row().Before("gorm:row").Register("dbtrace:before_row", e.before),
		db.Callback().Row().After("gorm:row").Register("dbtrace:after_row", e.after),
		db.Callback().Raw().Before("gorm:raw").Register("dbtrace:before_raw", e.before),
		db.Callback().Raw().After("gorm:raw").Register("dbtrace:after_raw", e.after),
	}
	return errors.Join(regs...)
}
