package letting

import (
	"time"

	"github.com/letably/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TenancyStatus represents the lifecycle state of a tenancy
type TenancyStatus string

const (
	TenancyStatusPending            TenancyStatus = "pending"
	TenancyStatusAwaitingSignatures TenancyStatus = "awaiting_signatures"
	TenancyStatusActive             TenancyStatus = "active"
	TenancyStatusExpired            TenancyStatus = "expired"
)

// IsValid checks if the status is a valid TenancyStatus
func (s TenancyStatus) IsValid() bool {
	switch s {
	case TenancyStatusPending, TenancyStatusAwaitingSignatures,
		TenancyStatusActive, TenancyStatusExpired:
		return true
	}
	return false
}

// String returns the string representation of TenancyStatus
func (s TenancyStatus) String() string {
	return string(s)
}

// CanReceiveSchedules returns true if new payment schedules may be created
// against a tenancy in this status
func (s TenancyStatus) CanReceiveSchedules() bool {
	return s == TenancyStatusActive
}

// TenancyMember is one occupant of a tenancy. Payment schedules are assigned
// per member, not per tenancy, so that rent can be split individually.
type TenancyMember struct {
	shared.BaseEntity
	AgencyID  uuid.UUID       `json:"agency_id"`
	TenancyID uuid.UUID       `json:"tenancy_id"`
	FullName  string          `json:"full_name"`
	Email     string          `json:"email"`
	RentShare decimal.Decimal `json:"rent_share"` // this member's share of the monthly rent
}

// NewTenancyMember creates a new tenancy member
func NewTenancyMember(agencyID, tenancyID uuid.UUID, fullName, email string, rentShare decimal.Decimal) (*TenancyMember, error) {
	if fullName == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Member name cannot be empty")
	}
	if rentShare.IsNegative() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Rent share cannot be negative")
	}

	return &TenancyMember{
		BaseEntity: shared.NewBaseEntity(),
		AgencyID:   agencyID,
		TenancyID:  tenancyID,
		FullName:   fullName,
		Email:      email,
		RentShare:  rentShare,
	}, nil
}

// Tenancy is a lease instance. It owns zero or more members; the payment
// schedules assigned to its members are a separate aggregate (ledger package).
type Tenancy struct {
	shared.AgencyAggregateRoot
	PropertyRef string          `json:"property_ref"`
	Status      TenancyStatus   `json:"status"`
	StartDate   time.Time       `json:"start_date"`
	EndDate     time.Time       `json:"end_date"`
	RentAmount  decimal.Decimal `json:"rent_amount"`  // total monthly rent across members
	RentDueDay  int             `json:"rent_due_day"` // day of month rent falls due (1-28)
	Members     []TenancyMember `json:"members"`
}

// NewTenancy creates a new tenancy in pending state
func NewTenancy(agencyID uuid.UUID, propertyRef string, startDate, endDate time.Time, rentAmount decimal.Decimal, rentDueDay int) (*Tenancy, error) {
	if propertyRef == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Property reference cannot be empty")
	}
	if !endDate.After(startDate) {
		return nil, shared.NewDomainError("INVALID_INPUT", "Tenancy end date must be after start date")
	}
	if rentAmount.IsNegative() || rentAmount.IsZero() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Rent amount must be positive")
	}
	if rentDueDay < 1 || rentDueDay > 28 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Rent due day must be between 1 and 28")
	}

	t := &Tenancy{
		AgencyAggregateRoot: shared.NewAgencyAggregateRoot(agencyID),
		PropertyRef:         propertyRef,
		Status:              TenancyStatusPending,
		StartDate:           startDate,
		EndDate:             endDate,
		RentAmount:          rentAmount,
		RentDueDay:          rentDueDay,
		Members:             []TenancyMember{},
	}

	t.AddDomainEvent(NewTenancyCreatedEvent(t))

	return t, nil
}

// AddMember attaches an occupant to the tenancy
func (t *Tenancy) AddMember(fullName, email string, rentShare decimal.Decimal) (*TenancyMember, error) {
	if t.Status == TenancyStatusExpired {
		return nil, shared.NewDomainError("INVALID_STATE", "Cannot add members to an expired tenancy")
	}

	member, err := NewTenancyMember(t.AgencyID, t.ID, fullName, email, rentShare)
	if err != nil {
		return nil, err
	}

	t.Members = append(t.Members, *member)
	t.UpdatedAt = time.Now()
	t.IncrementVersion()

	return member, nil
}

// MemberByID returns the member with the given ID, or nil
func (t *Tenancy) MemberByID(memberID uuid.UUID) *TenancyMember {
	for i := range t.Members {
		if t.Members[i].ID == memberID {
			return &t.Members[i]
		}
	}
	return nil
}

// SendForSignatures moves a pending tenancy to awaiting_signatures
func (t *Tenancy) SendForSignatures() error {
	if t.Status != TenancyStatusPending {
		return shared.NewDomainError("INVALID_STATE", "Only a pending tenancy can be sent for signatures")
	}

	t.Status = TenancyStatusAwaitingSignatures
	t.UpdatedAt = time.Now()
	t.IncrementVersion()

	return nil
}

// Activate marks the tenancy as active. It requires at least one member so
// that generated schedules always have an assignee.
func (t *Tenancy) Activate() error {
	if t.Status != TenancyStatusPending && t.Status != TenancyStatusAwaitingSignatures {
		return shared.NewDomainError("INVALID_STATE", "Only a pending or awaiting-signatures tenancy can be activated")
	}
	if len(t.Members) == 0 {
		return shared.NewDomainError("INVALID_STATE", "Cannot activate a tenancy with no members")
	}

	t.Status = TenancyStatusActive
	t.UpdatedAt = time.Now()
	t.IncrementVersion()

	t.AddDomainEvent(NewTenancyActivatedEvent(t))

	return nil
}

// Expire marks the tenancy as expired
func (t *Tenancy) Expire() error {
	if t.Status != TenancyStatusActive {
		return shared.NewDomainError("INVALID_STATE", "Only an active tenancy can be expired")
	}

	t.Status = TenancyStatusExpired
	t.UpdatedAt = time.Now()
	t.IncrementVersion()

	return nil
}

// IsActive returns true if the tenancy is active
func (t *Tenancy) IsActive() bool {
	return t.Status == TenancyStatusActive
}
