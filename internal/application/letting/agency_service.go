package letting

import (
	"context"

	"github.com/letably/backend/internal/domain/letting"
	"github.com/google/uuid"
)

// AgencyService handles agency onboarding and lookup
type AgencyService struct {
	agencyRepo letting.AgencyRepository
}

// NewAgencyService creates a new AgencyService
func NewAgencyService(agencyRepo letting.AgencyRepository) *AgencyService {
	return &AgencyService{agencyRepo: agencyRepo}
}

// CreateAgency registers a new agency. The code must be unique; a duplicate
// surfaces as ALREADY_EXISTS from the store.
func (s *AgencyService) CreateAgency(ctx context.Context, name, code string) (*letting.Agency, error) {
	agency, err := letting.NewAgency(name, code)
	if err != nil {
		return nil, err
	}

	if err := s.agencyRepo.Save(ctx, agency); err != nil {
		return nil, err
	}

	return agency, nil
}

// GetAgency loads an agency by ID
func (s *AgencyService) GetAgency(ctx context.Context, id uuid.UUID) (*letting.Agency, error) {
	return s.agencyRepo.FindByID(ctx, id)
}

// GetAgencyByCode loads an agency by its unique code
func (s *AgencyService) GetAgencyByCode(ctx context.Context, code string) (*letting.Agency, error) {
	return s.agencyRepo.FindByCode(ctx, code)
}
