package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/letably/backend/internal/domain/letting"
	"github.com/letably/backend/internal/domain/shared"
	"github.com/letably/backend/internal/infrastructure/persistence/models"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// GormAgencyRepository implements AgencyRepository using GORM.
// Agencies are the isolation boundary itself, so this is the one repository
// that does not take an agency ID parameter.
type GormAgencyRepository struct {
	db *gorm.DB
}

// NewGormAgencyRepository creates a new GormAgencyRepository
func NewGormAgencyRepository(db *gorm.DB) *GormAgencyRepository {
	return &GormAgencyRepository{db: db}
}

// FindByID finds an agency by its ID
func (r *GormAgencyRepository) FindByID(ctx context.Context, id uuid.UUID) (*letting.Agency, error) {
	var model models.AgencyModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCode finds an agency by its unique code
func (r *GormAgencyRepository) FindByCode(ctx context.Context, code string) (*letting.Agency, error) {
	var model models.AgencyModel
	if err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates an agency. A duplicate code maps to
// shared.ErrAlreadyExists via the unique index rather than a racy
// check-then-insert.
func (r *GormAgencyRepository) Save(ctx context.Context, agency *letting.Agency) error {
	model := models.AgencyModelFromDomain(agency)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique_violation (23505)
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// Ensure GormAgencyRepository implements AgencyRepository
var _ letting.AgencyRepository = (*GormAgencyRepository)(nil)
