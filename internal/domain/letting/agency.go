package letting

import (
	"github.com/letably/backend/internal/domain/shared"
)

// Agency is the platform tenant and the isolation boundary. Every other
// aggregate carries its AgencyID; agencies themselves are not agency-scoped.
type Agency struct {
	shared.BaseAggregateRoot
	Name string `json:"name"`
	Code string `json:"code"`
}

// NewAgency creates a new agency
func NewAgency(name, code string) (*Agency, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Agency name cannot be empty")
	}
	if code == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Agency code cannot be empty")
	}
	if len(code) > 50 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Agency code cannot exceed 50 characters")
	}

	return &Agency{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		Code:              code,
	}, nil
}
