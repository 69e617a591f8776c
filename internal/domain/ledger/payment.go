package ledger

import (
	"time"

	"github.com/letably/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment is one recorded settlement against exactly one schedule. Its
// identity is immutable; amount, date and reference are editable and the row
// is deletable independently. The ledger only records externally-settled
// payments, it never moves money.
type Payment struct {
	shared.BaseEntity
	AgencyID   uuid.UUID       `json:"agency_id"`
	ScheduleID uuid.UUID       `json:"payment_schedule_id"`
	Amount     decimal.Decimal `json:"amount"` // same sign convention as the schedule it offsets
	Date       time.Time       `json:"payment_date"`
	Reference  string          `json:"payment_reference,omitempty"`
}

// NewPayment creates a new payment row against a schedule
func NewPayment(agencyID, scheduleID uuid.UUID, amount decimal.Decimal, date time.Time, reference string) (*Payment, error) {
	if amount.IsZero() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Payment amount cannot be zero")
	}
	if date.IsZero() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Payment date is required")
	}

	return &Payment{
		BaseEntity: shared.NewBaseEntity(),
		AgencyID:   agencyID,
		ScheduleID: scheduleID,
		Amount:     amount,
		Date:       date,
		Reference:  reference,
	}, nil
}

// Amend updates the editable fields of the payment
func (p *Payment) Amend(amount decimal.Decimal, date time.Time, reference string) error {
	if amount.IsZero() {
		return shared.NewDomainError("INVALID_INPUT", "Payment amount cannot be zero")
	}
	if date.IsZero() {
		return shared.NewDomainError("INVALID_INPUT", "Payment date is required")
	}

	p.Amount = amount
	p.Date = date
	p.Reference = reference
	p.UpdatedAt = time.Now()

	return nil
}
