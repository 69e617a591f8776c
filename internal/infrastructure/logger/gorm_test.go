package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newGormTestLogger(t *testing.T, level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	t.Helper()
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), recorded
}

func traceQuery(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestNewGormLogger_Defaults(t *testing.T) {
	gl, _ := newGormTestLogger(t, gormlogger.Info)

	assert.Equal(t, gormlogger.Info, gl.logLevel)
	assert.Equal(t, 200*time.Millisecond, gl.slowThreshold)
	assert.True(t, gl.ignoreRecordNotFoundError)
}

func TestNewGormLogger_Options(t *testing.T) {
	gl, _ := newGormTestLogger(t, gormlogger.Info,
		WithSlowThreshold(500*time.Millisecond),
		WithIgnoreRecordNotFoundError(false),
	)

	assert.Equal(t, 500*time.Millisecond, gl.slowThreshold)
	assert.False(t, gl.ignoreRecordNotFoundError)
}

func TestGormLogger_LogMode_CopiesLogger(t *testing.T) {
	gl, _ := newGormTestLogger(t, gormlogger.Info)

	clone, ok := gl.LogMode(gormlogger.Warn).(*GormLogger)
	require.True(t, ok)

	assert.Equal(t, gormlogger.Warn, clone.logLevel)
	assert.Equal(t, gormlogger.Info, gl.logLevel)
}

func TestGormLogger_LevelGating(t *testing.T) {
	t.Run("info passes through", func(t *testing.T) {
		gl, recorded := newGormTestLogger(t, gormlogger.Info)
		gl.Info(context.Background(), "migrating %s", "payments")

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Contains(t, logs[0].Message, "migrating payments")
	})

	t.Run("silent drops everything", func(t *testing.T) {
		gl, recorded := newGormTestLogger(t, gormlogger.Silent)
		gl.Info(context.Background(), "dropped")
		gl.Trace(context.Background(), time.Now(), traceQuery("SELECT 1", 1), nil)

		assert.Empty(t, recorded.All())
	})
}

func TestGormLogger_Trace(t *testing.T) {
	t.Run("query errors log as SQL Error", func(t *testing.T) {
		gl, recorded := newGormTestLogger(t, gormlogger.Error)
		gl.Trace(context.Background(), time.Now(),
			traceQuery("SELECT * FROM payment_schedules", 0), errors.New("connection reset"))

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, "SQL Error", logs[0].Message)
	})

	t.Run("record not found is not an error", func(t *testing.T) {
		gl, recorded := newGormTestLogger(t, gormlogger.Error)
		gl.Trace(context.Background(), time.Now(),
			traceQuery("SELECT * FROM payment_schedules WHERE id = ?", 0), gormlogger.ErrRecordNotFound)

		assert.Empty(t, recorded.All())
	})

	t.Run("slow queries log as warnings", func(t *testing.T) {
		gl, recorded := newGormTestLogger(t, gormlogger.Warn, WithSlowThreshold(time.Nanosecond))
		gl.Trace(context.Background(), time.Now().Add(-time.Second),
			traceQuery("SELECT * FROM payments", 10), nil)

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Contains(t, logs[0].Message, "SLOW SQL")
		assert.Equal(t, zapcore.WarnLevel, logs[0].Level)
	})
}

func TestGormLogger_Trace_CarriesIdentity(t *testing.T) {
	gl, recorded := newGormTestLogger(t, gormlogger.Info)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, AgencyIDKey, "agency-1")
	gl.Trace(ctx, time.Now(), traceQuery("SELECT * FROM tenancies", 3), nil)

	logs := recorded.All()
	require.Len(t, logs, 1)

	fields := make(map[string]string)
	for _, field := range logs[0].Context {
		fields[field.Key] = field.String
	}
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "agency-1", fields["agency_id"])
}

func TestMapGormLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  gormlogger.LogLevel
	}{
		{"silent", gormlogger.Silent},
		{"error", gormlogger.Error},
		{"warn", gormlogger.Warn},
		{"info", gormlogger.Info},
		{"debug", gormlogger.Info},
		{"bogus", gormlogger.Warn},
		{"", gormlogger.Warn},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MapGormLogLevel(tt.input), "level %q", tt.input)
	}
}

func TestGormLoggerImplementsInterface(t *testing.T) {
	gl, _ := newGormTestLogger(t, gormlogger.Info)
	var _ gormlogger.Interface = gl
}
