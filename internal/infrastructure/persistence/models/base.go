package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/letably/backend/internal/domain/shared"
)

// BaseModel carries the columns every table has. It is the persistence
// twin of shared.BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain maps the row columns onto a domain BaseEntity.
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity copies identity and timestamps from the entity.
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// AggregateModel adds the optimistic-locking version column.
type AggregateModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

// FromDomainAggregateRoot copies base fields plus the version.
func (m *AggregateModel) FromDomainAggregateRoot(a shared.BaseAggregateRoot) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.Version = a.Version
}

// AgencyAggregateModel adds the owning agency column for rows that live
// inside an agency's isolation boundary.
type AgencyAggregateModel struct {
	AggregateModel
	AgencyID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// FromDomainAgencyAggregateRoot copies aggregate fields plus the agency.
func (m *AgencyAggregateModel) FromDomainAgencyAggregateRoot(a shared.AgencyAggregateRoot) {
	m.FromDomainAggregateRoot(a.BaseAggregateRoot)
	m.AgencyID = a.AgencyID
}

// PopulateAgencyAggregateRoot writes the row columns into an existing
// domain aggregate root.
func (m *AgencyAggregateModel) PopulateAgencyAggregateRoot(a *shared.AgencyAggregateRoot) {
	a.BaseAggregateRoot.BaseEntity = m.BaseModel.ToDomain()
	a.BaseAggregateRoot.Version = m.Version
	a.AgencyID = m.AgencyID
}
