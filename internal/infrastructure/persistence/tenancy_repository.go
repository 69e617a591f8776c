package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/letably/backend/internal/domain/letting"
	"github.com/letably/backend/internal/domain/shared"
	"github.com/letably/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormTenancyRepository implements TenancyRepository using GORM. Every call
// runs inside an agency-bound transaction so the row-level security policies
// apply on top of the explicit predicates.
type GormTenancyRepository struct {
	db *Database
}

// NewGormTenancyRepository creates a new GormTenancyRepository
func NewGormTenancyRepository(db *Database) *GormTenancyRepository {
	return &GormTenancyRepository{db: db}
}

// FindByIDForAgency finds a tenancy (with members) by ID within an agency.
// A tenancy that exists but belongs to another agency reads as not found.
func (r *GormTenancyRepository) FindByIDForAgency(ctx context.Context, agencyID, id uuid.UUID) (*letting.Tenancy, error) {
	var model models.TenancyModel
	err := r.db.AgencyTransaction(ctx, agencyID, func(tx *gorm.DB) error {
		return tx.
			Preload("Members", "agency_id = ?", agencyID).
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

// FindAllForAgency lists tenancies for an agency with filtering
func (r *GormTenancyRepository) FindAllForAgency(ctx context.Context, agencyID uuid.UUID, filter letting.TenancyFilter) ([]letting.Tenancy, error) {
	var tenancyModels []models.TenancyModel
	err := r.db.AgencyTransaction(ctx, agencyID, func(tx *gorm.DB) error {
		query := tx.Model(&models.TenancyModel{}).
			Preload("Members", "agency_id = ?", agencyID).
			Where("agency_id = ?", agencyID)
		query = r.applyTenancyFilter(query, filter)
		return query.Find(&tenancyModels).Error
	})
	if err != nil {
		return nil, err
	}
	tenancies := make([]letting.Tenancy, len(tenancyModels))
	for i := range tenancyModels {
		tenancies[i] = *tenancyModels[i].ToDomain()
	}
	return tenancies, nil
}

// CountForAgency counts tenancies for an agency with filtering
func (r *GormTenancyRepository) CountForAgency(ctx context.Context, agencyID uuid.UUID, filter letting.TenancyFilter) (int64, error) {
	var count int64
	err := r.db.AgencyTransaction(ctx, agencyID, func(tx *gorm.DB) error {
		query := tx.Model(&models.TenancyModel{}).
			Where("agency_id = ?", agencyID)
		query = r.applyTenancyFilterWithoutPagination(query, filter)
		return query.Count(&count).Error
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates a tenancy and its members in one transaction.
// Members removed from the aggregate are deleted; the rest are upserted.
func (r *GormTenancyRepository) Save(ctx context.Context, tenancy *letting.Tenancy) error {
	model := models.TenancyModelFromDomain(tenancy)

	return r.db.AgencyTransaction(ctx, tenancy.AgencyID, func(tx *gorm.DB) error {
		members := model.Members
		model.Members = nil

		if err := tx.Omit("Members").Save(model).Error; err != nil {
			return err
		}

		currentMemberIDs := make([]uuid.UUID, len(members))
		for i := range members {
			currentMemberIDs[i] = members[i].ID
		}

		if len(currentMemberIDs) > 0 {
			if err := tx.Where("agency_id = ? AND tenancy_id = ? AND id NOT IN ?",
				model.AgencyID, model.ID, currentMemberIDs).
				Delete(&models.TenancyMemberModel{}).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Where("agency_id = ? AND tenancy_id = ?", model.AgencyID, model.ID).
				Delete(&models.TenancyMemberModel{}).Error; err != nil {
				return err
			}
		}

		for i := range members {
			if err := tx.Save(&members[i]).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

// applyTenancyFilter applies filter options to the query
func (r *GormTenancyRepository) applyTenancyFilter(query *gorm.DB, filter letting.TenancyFilter) *gorm.DB {
	query = r.applyTenancyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	if filter.OrderBy != "" {
		orderDir := "ASC"
		if strings.ToLower(filter.OrderDir) == "desc" {
			orderDir = "DESC"
		}
		query = query.Order(filter.OrderBy + " " + orderDir)
	} else {
		query = query.Order("created_at DESC")
	}

	return query
}

// applyTenancyFilterWithoutPagination applies filter options without pagination
func (r *GormTenancyRepository) applyTenancyFilterWithoutPagination(query *gorm.DB, filter letting.TenancyFilter) *gorm.DB {
	if filter.Search != "" {
		query = query.Where("property_ref ILIKE ?", "%"+filter.Search+"%")
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.PropertyRef != nil {
		query = query.Where("property_ref = ?", *filter.PropertyRef)
	}

	return query
}

// Ensure GormTenancyRepository implements TenancyRepository
var _ letting.TenancyRepository = (*GormTenancyRepository)(nil)
