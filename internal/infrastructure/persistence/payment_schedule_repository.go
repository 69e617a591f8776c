package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/letably/backend/internal/domain/ledger"
	"github.com/letably/backend/internal/domain/shared"
	"github.com/letably/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormPaymentScheduleRepository implements PaymentScheduleRepository using
// GORM. Every call runs inside an agency-bound transaction so the row-level
// security policies apply on top of the explicit predicates.
type GormPaymentScheduleRepository struct {
	db *Database
}

// NewGormPaymentScheduleRepository creates a new GormPaymentScheduleRepository
func NewGormPaymentScheduleRepository(db *Database) *GormPaymentScheduleRepository {
	return &GormPaymentScheduleRepository{db: db}
}

// FindByIDForAgency loads a schedule with its payments within an agency.
// A schedule that exists under another agency reads as not found.
func (r *GormPaymentScheduleRepository) FindByIDForAgency(ctx context.Context, agencyID, id uuid.UUID) (*ledger.PaymentSchedule, error) {
	var model models.PaymentScheduleModel
	err := r.db.AgencyTransaction(ctx, agencyID, func(tx *gorm.DB) error {
		return tx.
			Preload("Payments", func(db *gorm.DB) *gorm.DB {
				return db.Where("agency_id = ?", agencyID).Order("date ASC, created_at ASC")
			}).
			Where("agency_id = ? AND id = ?", agencyID, id).
			First(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForAgency lists schedules (with payments) for an agency
func (r *GormPaymentScheduleRepository) FindAllForAgency(ctx context.Context, agencyID uuid.UUID, filter ledger.ScheduleFilter) ([]ledger.PaymentSchedule, error) {
	var scheduleModels []models.PaymentScheduleModel
	err := r.db.AgencyTransaction(ctx, agencyID, func(tx *gorm.DB) error {
		query := tx.Model(&models.PaymentScheduleModel{}).
			Preload("Payments", func(db *gorm.DB) *gorm.DB {
				return db.Where("agency_id = ?", agencyID).Order("date ASC, created_at ASC")
			}).
			Where("agency_id = ?", agencyID)
		query = r.applyScheduleFilter(query, filter)
		return query.Find(&scheduleModels).Error
	})
	if err != nil {
		return nil, err
	}
	schedules := make([]ledger.PaymentSchedule, len(scheduleModels))
	for i := range scheduleModels {
		schedules[i] = *scheduleModels[i].ToDomain()
	}
	return schedules, nil
}

// CountForAgency counts schedules matching the filter
func (r *GormPaymentScheduleRepository) CountForAgency(ctx context.Context, agencyID uuid.UUID, filter ledger.ScheduleFilter) (int64, error) {
	var count int64
	err := r.db.AgencyTransaction(ctx, agencyID, func(tx *gorm.DB) error {
		query := tx.Model(&models.PaymentScheduleModel{}).
			Where("agency_id = ?", agencyID)
		query = r.applyScheduleFilterWithoutPagination(query, filter)
		return query.Count(&count).Error
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Create inserts a new schedule together with any initial payment rows
func (r *GormPaymentScheduleRepository) Create(ctx context.Context, schedule *ledger.PaymentSchedule) error {
	model := models.PaymentScheduleModelFromDomain(schedule)
	return r.db.AgencyTransaction(ctx, schedule.AgencyID, func(tx *gorm.DB) error {
		return tx.Create(model).Error
	})
}

// SaveWithLock persists the schedule row and its payment rows in one
// transaction guarded by a version-conditional update on the schedule.
//
// The domain aggregate has already incremented its version, so the condition
// matches the version the aggregate was loaded at. A concurrent writer that
// committed in between makes the conditional update match zero rows; in that
// case nothing is written, no payment row is touched, and
// shared.ErrConcurrencyConflict is returned for the caller to reload and
// retry. Payment rows are reconciled against the aggregate: removed ones are
// deleted, the rest upserted.
func (r *GormPaymentScheduleRepository) SaveWithLock(ctx context.Context, schedule *ledger.PaymentSchedule) error {
	model := models.PaymentScheduleModelFromDomain(schedule)

	return r.db.AgencyTransaction(ctx, schedule.AgencyID, func(tx *gorm.DB) error {
		result := tx.Model(&models.PaymentScheduleModel{}).
			Where("agency_id = ? AND id = ? AND version = ?",
				schedule.AgencyID, schedule.ID, schedule.Version-1).
			Updates(map[string]interface{}{
				"tenancy_id":   model.TenancyID,
				"member_id":    model.MemberID,
				"payment_type": model.PaymentType,
				"description":  model.Description,
				"due_date":     model.DueDate,
				"amount_due":   model.AmountDue,
				"status":       model.Status,
				"type":         model.Type,
				"version":      model.Version,
				"updated_at":   model.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}

		currentPaymentIDs := make([]uuid.UUID, len(model.Payments))
		for i := range model.Payments {
			currentPaymentIDs[i] = model.Payments[i].ID
		}

		if len(currentPaymentIDs) > 0 {
			if err := tx.Where("agency_id = ? AND schedule_id = ? AND id NOT IN ?",
				schedule.AgencyID, schedule.ID, currentPaymentIDs).
				Delete(&models.PaymentModel{}).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Where("agency_id = ? AND schedule_id = ?", schedule.AgencyID, schedule.ID).
				Delete(&models.PaymentModel{}).Error; err != nil {
				return err
			}
		}

		for i := range model.Payments {
			if err := tx.Save(&model.Payments[i]).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

// DeleteForAgency deletes a schedule within an agency, but only while it has
// no payment rows. The zero-payments condition is part of the DELETE itself,
// so a payment recorded concurrently makes the delete match nothing instead
// of being silently discarded. Zero rows are then classified: a surviving
// schedule row means payments arrived (conflict), otherwise not found.
func (r *GormPaymentScheduleRepository) DeleteForAgency(ctx context.Context, agencyID, id uuid.UUID) error {
	return r.db.AgencyTransaction(ctx, agencyID, func(tx *gorm.DB) error {
		result := tx.
			Where("agency_id = ? AND id = ?", agencyID, id).
			Where("NOT EXISTS (SELECT 1 FROM payments WHERE payments.schedule_id = payment_schedules.id AND payments.agency_id = payment_schedules.agency_id)").
			Delete(&models.PaymentScheduleModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			return nil
		}

		var remaining int64
		if err := tx.Model(&models.PaymentScheduleModel{}).
			Where("agency_id = ? AND id = ?", agencyID, id).
			Count(&remaining).Error; err != nil {
			return err
		}
		if remaining > 0 {
			return ledger.ErrScheduleHasPayments
		}
		return shared.ErrNotFound
	})
}

// SumTotalsForAgency aggregates outstanding, overdue and collected amounts
// over the schedules matching the filter. Outstanding and overdue are sums of
// remaining balances; collected is the sum of recorded payments.
func (r *GormPaymentScheduleRepository) SumTotalsForAgency(ctx context.Context, agencyID uuid.UUID, filter ledger.ScheduleFilter) (ledger.LedgerTotals, error) {
	var row struct {
		Outstanding decimal.Decimal
		Overdue     decimal.Decimal
		Collected   decimal.Decimal
	}

	paidSub := "COALESCE((SELECT SUM(p.amount) FROM payments p WHERE p.schedule_id = payment_schedules.id AND p.agency_id = payment_schedules.agency_id), 0)"

	err := r.db.AgencyTransaction(ctx, agencyID, func(tx *gorm.DB) error {
		query := tx.Model(&models.PaymentScheduleModel{}).
			Select(
				"COALESCE(SUM(amount_due - "+paidSub+"), 0) AS outstanding, "+
					"COALESCE(SUM(CASE WHEN due_date < ? AND status NOT IN ('paid') THEN amount_due - "+paidSub+" ELSE 0 END), 0) AS overdue, "+
					"COALESCE(SUM("+paidSub+"), 0) AS collected",
				time.Now()).
			Where("agency_id = ?", agencyID)
		query = r.applyScheduleFilterWithoutPagination(query, filter)
		return query.Scan(&row).Error
	})
	if err != nil {
		return ledger.LedgerTotals{}, err
	}

	return ledger.LedgerTotals{
		Outstanding: row.Outstanding,
		Overdue:     row.Overdue,
		Collected:   row.Collected,
	}, nil
}

// applyScheduleFilter applies filter options to the query
func (r *GormPaymentScheduleRepository) applyScheduleFilter(query *gorm.DB, filter ledger.ScheduleFilter) *gorm.DB {
	query = r.applyScheduleFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, ScheduleSortFields, "due_date")
	orderDir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(orderBy + " " + orderDir)

	return query
}

// applyScheduleFilterWithoutPagination applies filter options without pagination
func (r *GormPaymentScheduleRepository) applyScheduleFilterWithoutPagination(query *gorm.DB, filter ledger.ScheduleFilter) *gorm.DB {
	if filter.Search != "" {
		query = query.Where("description ILIKE ?", "%"+filter.Search+"%")
	}
	if filter.TenancyID != nil {
		query = query.Where("tenancy_id = ?", *filter.TenancyID)
	}
	if filter.MemberID != nil {
		query = query.Where("member_id = ?", *filter.MemberID)
	}
	if filter.PaymentType != nil {
		query = query.Where("payment_type = ?", *filter.PaymentType)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.DueFrom != nil {
		query = query.Where("due_date >= ?", *filter.DueFrom)
	}
	if filter.DueTo != nil {
		query = query.Where("due_date <= ?", *filter.DueTo)
	}
	if filter.Overdue != nil && *filter.Overdue {
		query = query.Where("due_date < ? AND status NOT IN ('paid')", time.Now())
	}

	return query
}

// Ensure GormPaymentScheduleRepository implements PaymentScheduleRepository
var _ ledger.PaymentScheduleRepository = (*GormPaymentScheduleRepository)(nil)
