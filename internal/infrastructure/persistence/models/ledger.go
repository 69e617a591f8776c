package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/letably/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// PaymentScheduleModel is the persistence model for payment schedules.
// The cached status column is only ever written through the domain
// aggregate; readers that need the date-accurate value derive it instead.
type PaymentScheduleModel struct {
	AgencyAggregateModel
	TenancyID   uuid.UUID       `gorm:"type:uuid;not null;index:idx_schedule_agency_tenancy,priority:2"`
	MemberID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	PaymentType string          `gorm:"type:varchar(50);not null"`
	Description string          `gorm:"type:varchar(500)"`
	DueDate     time.Time       `gorm:"not null;index"`
	AmountDue   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Status      string          `gorm:"type:varchar(50);not null;default:'pending';index"`
	Type        string          `gorm:"type:varchar(50);not null;default:'manual'"`
	Payments    []PaymentModel  `gorm:"foreignKey:ScheduleID;references:ID"`
}

// TableName specifies the table name for PaymentScheduleModel
func (PaymentScheduleModel) TableName() string {
	return "payment_schedules"
}

// ToDomain converts the persistence model to a domain PaymentSchedule entity.
func (m *PaymentScheduleModel) ToDomain() *ledger.PaymentSchedule {
	schedule := &ledger.PaymentSchedule{
		TenancyID:   m.TenancyID,
		MemberID:    m.MemberID,
		PaymentType: ledger.PaymentType(m.PaymentType),
		Description: m.Description,
		DueDate:     m.DueDate,
		AmountDue:   m.AmountDue,
		Status:      ledger.ScheduleStatus(m.Status),
		Type:        ledger.ScheduleType(m.Type),
		Payments:    make([]ledger.Payment, len(m.Payments)),
	}
	m.PopulateAgencyAggregateRoot(&schedule.AgencyAggregateRoot)

	for i := range m.Payments {
		schedule.Payments[i] = *m.Payments[i].ToDomain()
	}

	return schedule
}

// FromDomain populates the persistence model from a domain PaymentSchedule entity.
func (m *PaymentScheduleModel) FromDomain(s *ledger.PaymentSchedule) {
	m.FromDomainAgencyAggregateRoot(s.AgencyAggregateRoot)
	m.TenancyID = s.TenancyID
	m.MemberID = s.MemberID
	m.PaymentType = s.PaymentType.String()
	m.Description = s.Description
	m.DueDate = s.DueDate
	m.AmountDue = s.AmountDue
	m.Status = s.Status.String()
	m.Type = string(s.Type)

	m.Payments = make([]PaymentModel, len(s.Payments))
	for i := range s.Payments {
		m.Payments[i] = *PaymentModelFromDomain(&s.Payments[i])
	}
}

// PaymentScheduleModelFromDomain creates a new persistence model from a domain PaymentSchedule entity.
func PaymentScheduleModelFromDomain(s *ledger.PaymentSchedule) *PaymentScheduleModel {
	m := &PaymentScheduleModel{}
	m.FromDomain(s)
	return m
}

// PaymentModel is the persistence model for recorded payments.
type PaymentModel struct {
	BaseModel
	AgencyID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ScheduleID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Date       time.Time       `gorm:"not null;index"`
	Reference  string          `gorm:"type:varchar(255)"`
}

// TableName specifies the table name for PaymentModel
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment entity.
func (m *PaymentModel) ToDomain() *ledger.Payment {
	return &ledger.Payment{
		BaseEntity: m.BaseModel.ToDomain(),
		AgencyID:   m.AgencyID,
		ScheduleID: m.ScheduleID,
		Amount:     m.Amount,
		Date:       m.Date,
		Reference:  m.Reference,
	}
}

// FromDomain populates the persistence model from a domain Payment entity.
func (m *PaymentModel) FromDomain(p *ledger.Payment) {
	m.FromDomainBaseEntity(p.BaseEntity)
	m.AgencyID = p.AgencyID
	m.ScheduleID = p.ScheduleID
	m.Amount = p.Amount
	m.Date = p.Date
	m.Reference = p.Reference
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment entity.
func PaymentModelFromDomain(p *ledger.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}
