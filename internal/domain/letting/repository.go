package letting

import (
	"context"

	"github.com/letably/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// TenancyFilter defines filtering options for tenancy queries
type TenancyFilter struct {
	shared.Filter
	Status      *TenancyStatus
	PropertyRef *string
}

// AgencyRepository defines persistence for agencies
type AgencyRepository interface {
	// FindByID finds an agency by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Agency, error)

	// FindByCode finds an agency by its unique code
	FindByCode(ctx context.Context, code string) (*Agency, error)

	// Save creates or updates an agency
	Save(ctx context.Context, agency *Agency) error
}

// TenancyRepository defines persistence for tenancies and their members.
// Every method takes the agency ID explicitly; the storage layer additionally
// enforces the same boundary on its own.
type TenancyRepository interface {
	// FindByIDForAgency finds a tenancy (with members) by ID within an agency
	FindByIDForAgency(ctx context.Context, agencyID, id uuid.UUID) (*Tenancy, error)

	// FindAllForAgency lists tenancies for an agency with filtering
	FindAllForAgency(ctx context.Context, agencyID uuid.UUID, filter TenancyFilter) ([]Tenancy, error)

	// CountForAgency counts tenancies for an agency with filtering
	CountForAgency(ctx context.Context, agencyID uuid.UUID, filter TenancyFilter) (int64, error)

	// Save creates or updates a tenancy and its members
	Save(ctx context.Context, tenancy *Tenancy) error
}
