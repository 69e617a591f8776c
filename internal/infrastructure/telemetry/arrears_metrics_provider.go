// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormArrearsMetricsProvider implements ArrearsMetricsProvider using GORM.
// It queries the payment_schedules table directly for aggregated metrics,
// deriving overdueness from due dates rather than trusting the cached status.
type GormArrearsMetricsProvider struct {
	db *gorm.DB
}

// NewGormArrearsMetricsProvider creates a new GormArrearsMetricsProvider.
func NewGormArrearsMetricsProvider(db *gorm.DB) *GormArrearsMetricsProvider {
	return &GormArrearsMetricsProvider{db: db}
}

const paidSubquery = "COALESCE((SELECT SUM(p.amount) FROM payments p WHERE p.schedule_id = payment_schedules.id AND p.agency_id = payment_schedules.agency_id), 0)"

// GetOverdueScheduleCount returns the number of overdue schedules for an agency.
func (p *GormArrearsMetricsProvider) GetOverdueScheduleCount(ctx context.Context, agencyID uuid.UUID) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("payment_schedules").
		Where("agency_id = ?", agencyID).
		Where("due_date < ? AND status NOT IN ('paid')", time.Now()).
		Count(&count).Error

	return count, err
}

// GetOverdueAmount returns the total outstanding balance on overdue schedules.
func (p *GormArrearsMetricsProvider) GetOverdueAmount(ctx context.Context, agencyID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Overdue decimal.Decimal `gorm:"column:overdue"`
	}

	err := p.db.WithContext(ctx).
		Table("payment_schedules").
		Select("COALESCE(SUM(amount_due - "+paidSubquery+"), 0) AS overdue").
		Where("agency_id = ?", agencyID).
		Where("due_date < ? AND status NOT IN ('paid')", time.Now()).
		Scan(&result).Error

	if err != nil {
		return decimal.Zero, err
	}

	return result.Overdue, nil
}

// GormAgencyProvider implements AgencyProvider using GORM.
type GormAgencyProvider struct {
	db *gorm.DB
}

// NewGormAgencyProvider creates a new GormAgencyProvider.
func NewGormAgencyProvider(db *gorm.DB) *GormAgencyProvider {
	return &GormAgencyProvider{db: db}
}

// GetActiveAgencyIDs returns all registered agency IDs.
func (p *GormAgencyProvider) GetActiveAgencyIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := p.db.WithContext(ctx).
		Table("agencies").
		Select("id").
		Find(&ids).Error

	return ids, err
}
