package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/letably/backend/internal/domain/letting"
	"github.com/shopspring/decimal"
)

// AgencyModel is the persistence model for agencies. Agencies are the
// isolation boundary, so this is the one aggregate table without an
// agency_id column.
type AgencyModel struct {
	AggregateModel
	Name string `gorm:"type:varchar(255);not null"`
	Code string `gorm:"type:varchar(50);not null;uniqueIndex:idx_agency_code"`
}

// TableName specifies the table name for AgencyModel
func (AgencyModel) TableName() string {
	return "agencies"
}

// ToDomain converts the persistence model to a domain Agency entity.
func (m *AgencyModel) ToDomain() *letting.Agency {
	agency := &letting.Agency{
		Name: m.Name,
		Code: m.Code,
	}
	agency.BaseAggregateRoot.BaseEntity = m.BaseModel.ToDomain()
	agency.BaseAggregateRoot.Version = m.Version
	return agency
}

// FromDomain populates the persistence model from a domain Agency entity.
func (m *AgencyModel) FromDomain(a *letting.Agency) {
	m.FromDomainAggregateRoot(a.BaseAggregateRoot)
	m.Name = a.Name
	m.Code = a.Code
}

// AgencyModelFromDomain creates a new persistence model from a domain Agency entity.
func AgencyModelFromDomain(a *letting.Agency) *AgencyModel {
	m := &AgencyModel{}
	m.FromDomain(a)
	return m
}

// TenancyModel is the persistence model for tenancies.
type TenancyModel struct {
	AgencyAggregateModel
	PropertyRef string               `gorm:"type:varchar(255);not null;index:idx_tenancy_agency_property,priority:2"`
	Status      string               `gorm:"type:varchar(50);not null;default:'pending';index"`
	StartDate   time.Time            `gorm:"not null"`
	EndDate     time.Time            `gorm:"not null"`
	RentAmount  decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	RentDueDay  int                  `gorm:"not null;default:1"`
	Members     []TenancyMemberModel `gorm:"foreignKey:TenancyID;references:ID"`
}

// TableName specifies the table name for TenancyModel
func (TenancyModel) TableName() string {
	return "tenancies"
}

// ToDomain converts the persistence model to a domain Tenancy entity.
func (m *TenancyModel) ToDomain() *letting.Tenancy {
	tenancy := &letting.Tenancy{
		PropertyRef: m.PropertyRef,
		Status:      letting.TenancyStatus(m.Status),
		StartDate:   m.StartDate,
		EndDate:     m.EndDate,
		RentAmount:  m.RentAmount,
		RentDueDay:  m.RentDueDay,
		Members:     make([]letting.TenancyMember, len(m.Members)),
	}
	m.PopulateAgencyAggregateRoot(&tenancy.AgencyAggregateRoot)

	for i := range m.Members {
		tenancy.Members[i] = *m.Members[i].ToDomain()
	}

	return tenancy
}

// FromDomain populates the persistence model from a domain Tenancy entity.
func (m *TenancyModel) FromDomain(t *letting.Tenancy) {
	m.FromDomainAgencyAggregateRoot(t.AgencyAggregateRoot)
	m.PropertyRef = t.PropertyRef
	m.Status = t.Status.String()
	m.StartDate = t.StartDate
	m.EndDate = t.EndDate
	m.RentAmount = t.RentAmount
	m.RentDueDay = t.RentDueDay

	m.Members = make([]TenancyMemberModel, len(t.Members))
	for i := range t.Members {
		m.Members[i] = *TenancyMemberModelFromDomain(&t.Members[i])
	}
}

// TenancyModelFromDomain creates a new persistence model from a domain Tenancy entity.
func TenancyModelFromDomain(t *letting.Tenancy) *TenancyModel {
	m := &TenancyModel{}
	m.FromDomain(t)
	return m
}

// TenancyMemberModel is the persistence model for tenancy members. It carries
// its own agency_id even though the parent tenancy already has one, so that
// row-level security and the automatic agency filter apply to member rows
// directly.
type TenancyMemberModel struct {
	BaseModel
	AgencyID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	TenancyID uuid.UUID       `gorm:"type:uuid;not null;index"`
	FullName  string          `gorm:"type:varchar(255);not null"`
	Email     string          `gorm:"type:varchar(255)"`
	RentShare decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName specifies the table name for TenancyMemberModel
func (TenancyMemberModel) TableName() string {
	return "tenancy_members"
}

// ToDomain converts the persistence model to a domain TenancyMember entity.
func (m *TenancyMemberModel) ToDomain() *letting.TenancyMember {
	return &letting.TenancyMember{
		BaseEntity: m.BaseModel.ToDomain(),
		AgencyID:   m.AgencyID,
		TenancyID:  m.TenancyID,
		FullName:   m.FullName,
		Email:      m.Email,
		RentShare:  m.RentShare,
	}
}

// FromDomain populates the persistence model from a domain TenancyMember entity.
func (m *TenancyMemberModel) FromDomain(member *letting.TenancyMember) {
	m.FromDomainBaseEntity(member.BaseEntity)
	m.AgencyID = member.AgencyID
	m.TenancyID = member.TenancyID
	m.FullName = member.FullName
	m.Email = member.Email
	m.RentShare = member.RentShare
}

// TenancyMemberModelFromDomain creates a new persistence model from a domain TenancyMember entity.
func TenancyMemberModelFromDomain(member *letting.TenancyMember) *TenancyMemberModel {
	m := &TenancyMemberModel{}
	m.FromDomain(member)
	return m
}
