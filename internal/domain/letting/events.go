package letting

import (
	"github.com/letably/backend/internal/domain/shared"
)

// Event types for the letting domain
const (
	EventTypeTenancyCreated   = "letting.tenancy.created"
	EventTypeTenancyActivated = "letting.tenancy.activated"
)

// TenancyCreatedEvent is raised when a tenancy is created
type TenancyCreatedEvent struct {
	shared.BaseDomainEvent
	PropertyRef string `json:"property_ref"`
}

// NewTenancyCreatedEvent creates a new TenancyCreatedEvent
func NewTenancyCreatedEvent(t *Tenancy) *TenancyCreatedEvent {
	return &TenancyCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTenancyCreated, "Tenancy", t.ID, t.AgencyID),
		PropertyRef:     t.PropertyRef,
	}
}

// TenancyActivatedEvent is raised when a tenancy becomes active
type TenancyActivatedEvent struct {
	shared.BaseDomainEvent
	PropertyRef string `json:"property_ref"`
	MemberCount int    `json:"member_count"`
}

// NewTenancyActivatedEvent creates a new TenancyActivatedEvent
func NewTenancyActivatedEvent(t *Tenancy) *TenancyActivatedEvent {
	return &TenancyActivatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTenancyActivated, "Tenancy", t.ID, t.AgencyID),
		PropertyRef:     t.PropertyRef,
		MemberCount:     len(t.Members),
	}
}
