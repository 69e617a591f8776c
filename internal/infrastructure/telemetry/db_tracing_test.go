package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type tracedTenancy struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:100"`
}

func (tracedTenancy) TableName() string { return "tenancies" }

// openSQLiteDB gives the callbacks a real GORM pipeline to hook into
// without needing Postgres.
func openSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tracedTenancy{}))
	return db
}

// localSpanRecorder returns a provider that is not installed globally, so
// these tests cannot leak spans into the rest of the package.
func localSpanRecorder(t *testing.T) (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, recorder
}

func TestDefaultDBTracingConfig(t *testing.T) {
	cfg := DefaultDBTracingConfig()

	assert.False(t, cfg.Enabled)
	assert.False(t, cfg.RecordSQLValues, "bind parameters must stay out of spans unless opted in")
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThreshold)
	assert.Equal(t, "postgresql", cfg.DBName)
}

func TestRegisterDBTracing(t *testing.T) {
	t.Run("disabled registers nothing", func(t *testing.T) {
		db := openSQLiteDB(t)
		cfg := DefaultDBTracingConfig()

		require.NoError(t, RegisterDBTracing(db, cfg, zaptest.NewLogger(t)))
		assert.Nil(t, db.Callback().Query().Get("dbtrace:after_query"))
	})

	t.Run("enabled installs plugin and callbacks", func(t *testing.T) {
		db := openSQLiteDB(t)
		cfg := DefaultDBTracingConfig()
		cfg.Enabled = true
		cfg.DBName = "sqlite"

		require.NoError(t, RegisterDBTracing(db, cfg, zaptest.NewLogger(t)))
		assert.NotNil(t, db.Callback().Query().Get("dbtrace:after_query"))

		// Queries still work with the callbacks in place.
		require.NoError(t, db.Create(&tracedTenancy{Name: "12 Harbour St"}).Error)
	})

	t.Run("double registration fails", func(t *testing.T) {
		db := openSQLiteDB(t)
		cfg := DefaultDBTracingConfig()
		cfg.Enabled = true
		cfg.DBName = "sqlite"

		require.NoError(t, RegisterDBTracing(db, cfg, zaptest.NewLogger(t)))
		assert.Error(t, RegisterDBTracing(db, cfg, zaptest.NewLogger(t)))
	})
}

func TestSpanEnricher_After(t *testing.T) {
	t.Run("annotates rows and table", func(t *testing.T) {
		db := openSQLiteDB(t)
		tp, recorder := localSpanRecorder(t)
		enricher := &spanEnricher{threshold: 200 * time.Millisecond}

		ctx, span := tp.Tracer("test").Start(context.Background(), "tenancy.create")
		tx := db.WithContext(ctx).Create(&tracedTenancy{Name: "4 Mill Lane"})
		require.NoError(t, tx.Error)

		enricher.after(tx.Statement.DB)
		span.End()

		spans := recorder.Ended()
		require.Len(t, spans, 1)

		attrs := map[string]any{}
		for _, kv := range spans[0].Attributes() {
			attrs[string(kv.Key)] = kv.Value.AsInterface()
		}
		assert.Equal(t, int64(1), attrs["db.rows_affected"])
		assert.Equal(t, "tenancies", attrs["db.sql.table"])
	})

	t.Run("record not found is not a span error", func(t *testing.T) {
		db := openSQLiteDB(t)
		tp, recorder := localSpanRecorder(t)
		enricher := &spanEnricher{threshold: 200 * time.Millisecond}

		ctx, span := tp.Tracer("test").Start(context.Background(), "tenancy.get")
		var out tracedTenancy
		tx := db.WithContext(ctx).First(&out, 99999)
		require.Error(t, tx.Error)

		enricher.after(tx)
		span.End()

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		assert.NotEqual(t, "Error", spans[0].Status().Code.String())
	})

	t.Run("slow query gets an event", func(t *testing.T) {
		db := openSQLiteDB(t)
		tp, recorder := localSpanRecorder(t)
		enricher := &spanEnricher{threshold: time.Nanosecond}

		ctx, span := tp.Tracer("test").Start(context.Background(), "tenancy.list")
		ctx = context.WithValue(ctx, queryStartKey{}, time.Now().Add(-time.Second))

		var out []tracedTenancy
		tx := db.WithContext(ctx).Find(&out)
		require.NoError(t, tx.Error)

		enricher.after(tx.Statement.DB)
		span.End()

		spans := recorder.Ended()
		require.Len(t, spans, 1)

		var eventNames []string
		for _, ev := range spans[0].Events() {
			eventNames = append(eventNames, ev.Name)
		}
		assert.Contains(t, eventNames, "slow_query")
	})

	t.Run("tolerates absent span", func(t *testing.T) {
		db := openSQLiteDB(t)
		enricher := &spanEnricher{threshold: 200 * time.Millisecond}

		tx := db.WithContext(context.Background()).Find(&[]tracedTenancy{})
		enricher.after(tx.Statement.DB)
	})
}
