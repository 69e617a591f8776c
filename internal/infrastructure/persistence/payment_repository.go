package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/letably/backend/internal/domain/ledger"
	"github.com/letably/backend/internal/domain/shared"
	"github.com/letably/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPaymentRepository implements PaymentRepository using GORM.
// It is read-only: payment rows are only ever written through the schedule
// aggregate so the balance invariant cannot be bypassed. Reads run inside an
// agency-bound transaction so the row-level security policies apply.
type GormPaymentRepository struct {
	db *Database
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *Database) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindAllForAgency lists payments for an agency within an optional date range
func (r *GormPaymentRepository) FindAllForAgency(ctx context.Context, agencyID uuid.UUID, from, to *time.Time, filter shared.Filter) ([]ledger.Payment, error) {
	var paymentModels []models.PaymentModel
	err := r.db.AgencyTransaction(ctx, agencyID, func(tx *gorm.DB) error {
		query := tx.Model(&models.PaymentModel{}).
			Where("agency_id = ?", agencyID)
		query = r.applyDateRange(query, from, to)

		if filter.Page > 0 && filter.PageSize > 0 {
			offset := (filter.Page - 1) * filter.PageSize
			query = query.Offset(offset).Limit(filter.PageSize)
		}

		orderBy := ValidateSortField(filter.OrderBy, PaymentSortFields, "date")
		orderDir := ValidateSortOrder(filter.OrderDir)
		query = query.Order(orderBy + " " + orderDir)

		return query.Find(&paymentModels).Error
	})
	if err != nil {
		return nil, err
	}
	payments := make([]ledger.Payment, len(paymentModels))
	for i := range paymentModels {
		payments[i] = *paymentModels[i].ToDomain()
	}
	return payments, nil
}

// CountForAgency counts payments for an agency within an optional date range
func (r *GormPaymentRepository) CountForAgency(ctx context.Context, agencyID uuid.UUID, from, to *time.Time) (int64, error) {
	var count int64
	err := r.db.AgencyTransaction(ctx, agencyID, func(tx *gorm.DB) error {
		query := tx.Model(&models.PaymentModel{}).
			Where("agency_id = ?", agencyID)
		query = r.applyDateRange(query, from, to)
		return query.Count(&count).Error
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *GormPaymentRepository) applyDateRange(query *gorm.DB, from, to *time.Time) *gorm.DB {
	if from != nil {
		query = query.Where("date >= ?", *from)
	}
	if to != nil {
		query = query.Where("date <= ?", *to)
	}
	return query
}

// Ensure GormPaymentRepository implements PaymentRepository
var _ ledger.PaymentRepository = (*GormPaymentRepository)(nil)
