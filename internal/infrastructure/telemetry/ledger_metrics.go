// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// LedgerMetrics provides business metrics for the payment ledger.
// It tracks schedule creation, payment activity, and arrears health.
type LedgerMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	scheduleCreatedTotal *Counter
	paymentRecordedTotal *Counter
	paymentAmountTotal   *Counter

	// Gauge metrics (point-in-time values)
	overdueScheduleCount *Gauge
	overdueAmount        *FloatGauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	// Data provider for periodic collection
	arrearsProvider ArrearsMetricsProvider
}

// ArrearsMetricsProvider provides arrears data for periodic metrics collection.
// This interface allows the telemetry layer to query ledger state without
// depending on the ledger domain directly.
type ArrearsMetricsProvider interface {
	// GetOverdueScheduleCount returns the number of overdue schedules for an agency
	GetOverdueScheduleCount(ctx context.Context, agencyID uuid.UUID) (int64, error)

	// GetOverdueAmount returns the total overdue balance for an agency
	GetOverdueAmount(ctx context.Context, agencyID uuid.UUID) (decimal.Decimal, error)
}

// LedgerMetricsConfig holds configuration for ledger metrics.
type LedgerMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	ArrearsProvider ArrearsMetricsProvider
}

// NewLedgerMetrics creates a new LedgerMetrics instance.
func NewLedgerMetrics(cfg LedgerMetricsConfig) (*LedgerMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	lm := &LedgerMetrics{
		meter:           cfg.Meter,
		logger:          logger,
		stopChan:        make(chan struct{}),
		arrearsProvider: cfg.ArrearsProvider,
	}

	// Initialize counter metrics
	var err error

	lm.scheduleCreatedTotal, err = NewCounter(
		cfg.Meter,
		"letably_schedule_created_total",
		"Total number of payment schedules created",
		"{schedules}",
	)
	if err != nil {
		return nil, err
	}

	lm.paymentRecordedTotal, err = NewCounter(
		cfg.Meter,
		"letably_payment_recorded_total",
		"Total number of payments recorded",
		"{payments}",
	)
	if err != nil {
		return nil, err
	}

	lm.paymentAmountTotal, err = NewCounter(
		cfg.Meter,
		"letably_payment_amount_total",
		"Total payment amount in pence",
		"{pence}",
	)
	if err != nil {
		return nil, err
	}

	// Arrears gauge metrics
	lm.overdueScheduleCount, err = NewGauge(
		cfg.Meter,
		"letably_overdue_schedule_count",
		"Number of schedules past their due date with an outstanding balance",
		"{schedules}",
	)
	if err != nil {
		return nil, err
	}

	lm.overdueAmount, err = NewFloatGauge(
		cfg.Meter,
		"letably_overdue_amount",
		"Total outstanding balance on overdue schedules",
		"{gbp}",
	)
	if err != nil {
		return nil, err
	}

	return lm, nil
}

// =============================================================================
// Schedule Metrics
// =============================================================================

// RecordScheduleCreated records a schedule creation event.
// This should be called from the application layer when a schedule is created.
func (lm *LedgerMetrics) RecordScheduleCreated(ctx context.Context, agencyID uuid.UUID, scheduleType, paymentType string) {
	lm.scheduleCreatedTotal.Inc(ctx,
		AttrAgencyID.String(agencyID.String()),
		AttrScheduleType.String(scheduleType),
		AttrPaymentType.String(paymentType),
	)
}

// =============================================================================
// Payment Metrics
// =============================================================================

// RecordPaymentAmount records the payment amount.
// Amount should be in the smallest currency unit (pence).
func (lm *LedgerMetrics) RecordPaymentAmount(ctx context.Context, agencyID uuid.UUID, amountPence int64) {
	lm.paymentAmountTotal.Add(ctx, amountPence,
		AttrAgencyID.String(agencyID.String()),
	)
}

// RecordPayment records a payment together with its amount and the schedule
// status it produced.
func (lm *LedgerMetrics) RecordPayment(ctx context.Context, agencyID uuid.UUID, amount decimal.Decimal, scheduleStatus string) {
	lm.paymentRecordedTotal.Inc(ctx,
		AttrAgencyID.String(agencyID.String()),
		AttrScheduleStatus.String(scheduleStatus),
	)

	// Convert to pence (multiply by 100)
	amountPence := amount.Mul(decimal.NewFromInt(100)).IntPart()
	lm.RecordPaymentAmount(ctx, agencyID, amountPence)
}

// =============================================================================
// Arrears Metrics
// =============================================================================

// RecordOverdueScheduleCount records the current number of overdue schedules.
// This is a gauge metric that should be updated periodically.
func (lm *LedgerMetrics) RecordOverdueScheduleCount(ctx context.Context, agencyID uuid.UUID, count int64) {
	lm.overdueScheduleCount.Record(ctx, count,
		AttrAgencyID.String(agencyID.String()),
	)
}

// RecordOverdueAmount records the current total overdue balance.
// This is a gauge metric that should be updated periodically.
func (lm *LedgerMetrics) RecordOverdueAmount(ctx context.Context, agencyID uuid.UUID, amount decimal.Decimal) {
	lm.overdueAmount.Record(ctx, amount.InexactFloat64(),
		AttrAgencyID.String(agencyID.String()),
	)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// AgencyProvider provides agency IDs for periodic metrics collection.
type AgencyProvider interface {
	GetActiveAgencyIDs(ctx context.Context) ([]uuid.UUID, error)
}

// StartPeriodicCollection starts periodic collection of gauge metrics.
// It collects arrears metrics every interval (default: 5 minutes).
// This is non-blocking - use Stop() to stop collection.
func (lm *LedgerMetrics) StartPeriodicCollection(ctx context.Context, agencyProvider AgencyProvider, interval time.Duration) {
	lm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go lm.runPeriodicCollection(ctx, agencyProvider, interval)
	})
}

// runPeriodicCollection runs the periodic collection loop.
func (lm *LedgerMetrics) runPeriodicCollection(ctx context.Context, agencyProvider AgencyProvider, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	lm.collectArrearsMetrics(ctx, agencyProvider)

	for {
		select {
		case <-lm.stopChan:
			lm.logger.Info("Stopping periodic ledger metrics collection")
			return
		case <-ctx.Done():
			lm.logger.Info("Context cancelled, stopping periodic ledger metrics collection")
			return
		case <-ticker.C:
			lm.collectArrearsMetrics(ctx, agencyProvider)
		}
	}
}

// collectArrearsMetrics collects arrears gauge metrics for all agencies.
func (lm *LedgerMetrics) collectArrearsMetrics(ctx context.Context, agencyProvider AgencyProvider) {
	if lm.arrearsProvider == nil {
		lm.logger.Debug("No arrears provider configured, skipping arrears metrics collection")
		return
	}

	agencyIDs, err := agencyProvider.GetActiveAgencyIDs(ctx)
	if err != nil {
		lm.logger.Error("Failed to get agency IDs for metrics collection", zap.Error(err))
		return
	}

	for _, agencyID := range agencyIDs {
		lm.collectAgencyArrearsMetrics(ctx, agencyID)
	}
}

// collectAgencyArrearsMetrics collects arrears metrics for a single agency.
func (lm *LedgerMetrics) collectAgencyArrearsMetrics(ctx context.Context, agencyID uuid.UUID) {
	// Collect overdue schedule count
	count, err := lm.arrearsProvider.GetOverdueScheduleCount(ctx, agencyID)
	if err != nil {
		lm.logger.Warn("Failed to get overdue schedule count for agency",
			zap.String("agency_id", agencyID.String()),
			zap.Error(err),
		)
	} else {
		lm.RecordOverdueScheduleCount(ctx, agencyID, count)
	}

	// Collect overdue amount
	amount, err := lm.arrearsProvider.GetOverdueAmount(ctx, agencyID)
	if err != nil {
		lm.logger.Warn("Failed to get overdue amount for agency",
			zap.String("agency_id", agencyID.String()),
			zap.Error(err),
		)
	} else {
		lm.RecordOverdueAmount(ctx, agencyID, amount)
	}
}

// Stop stops the periodic collection.
func (lm *LedgerMetrics) Stop() {
	lm.stopOnce.Do(func() {
		close(lm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewLedgerMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
