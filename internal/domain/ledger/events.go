package ledger

import (
	"time"

	"github.com/letably/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types for the ledger domain
const (
	EventTypeScheduleCreated       = "ledger.schedule.created"
	EventTypeScheduleStatusChanged = "ledger.schedule.status_changed"
	EventTypePaymentRecorded       = "ledger.payment.recorded"
	EventTypePaymentDeleted        = "ledger.payment.deleted"
)

// ScheduleCreatedEvent is raised when a payment schedule is created
type ScheduleCreatedEvent struct {
	shared.BaseDomainEvent
	TenancyID   uuid.UUID       `json:"tenancy_id"`
	MemberID    uuid.UUID       `json:"tenancy_member_id"`
	PaymentType PaymentType     `json:"payment_type"`
	AmountDue   decimal.Decimal `json:"amount_due"`
	DueDate     time.Time       `json:"due_date"`
	Type        ScheduleType    `json:"schedule_type"`
}

// NewScheduleCreatedEvent creates a new ScheduleCreatedEvent
func NewScheduleCreatedEvent(s *PaymentSchedule) *ScheduleCreatedEvent {
	return &ScheduleCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeScheduleCreated, "PaymentSchedule", s.ID, s.AgencyID),
		TenancyID:       s.TenancyID,
		MemberID:        s.MemberID,
		PaymentType:     s.PaymentType,
		AmountDue:       s.AmountDue,
		DueDate:         s.DueDate,
		Type:            s.Type,
	}
}

// ScheduleStatusChangedEvent is raised whenever a mutation moves a schedule
// between statuses. The notification layer consumes these to email
// stakeholders; delivery failures never roll back the ledger mutation.
type ScheduleStatusChangedEvent struct {
	shared.BaseDomainEvent
	PreviousStatus ScheduleStatus  `json:"previous_status"`
	NewStatus      ScheduleStatus  `json:"new_status"`
	AmountDue      decimal.Decimal `json:"amount_due"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
}

// NewScheduleStatusChangedEvent creates a new ScheduleStatusChangedEvent
func NewScheduleStatusChangedEvent(s *PaymentSchedule, previous ScheduleStatus) *ScheduleStatusChangedEvent {
	return &ScheduleStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeScheduleStatusChanged, "PaymentSchedule", s.ID, s.AgencyID),
		PreviousStatus:  previous,
		NewStatus:       s.Status,
		AmountDue:       s.AmountDue,
		AmountPaid:      s.TotalPaid(),
	}
}

// PaymentRecordedEvent is raised when a payment is appended to a schedule
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	PaymentID uuid.UUID       `json:"payment_id"`
	Amount    decimal.Decimal `json:"amount"`
	Remaining decimal.Decimal `json:"remaining_balance"`
}

// NewPaymentRecordedEvent creates a new PaymentRecordedEvent
func NewPaymentRecordedEvent(s *PaymentSchedule, p *Payment) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRecorded, "PaymentSchedule", s.ID, s.AgencyID),
		PaymentID:       p.ID,
		Amount:          p.Amount,
		Remaining:       s.RemainingBalance(),
	}
}

// PaymentDeletedEvent is raised when a payment row is removed
type PaymentDeletedEvent struct {
	shared.BaseDomainEvent
	PaymentID uuid.UUID       `json:"payment_id"`
	Remaining decimal.Decimal `json:"remaining_balance"`
}

// NewPaymentDeletedEvent creates a new PaymentDeletedEvent
func NewPaymentDeletedEvent(s *PaymentSchedule, paymentID uuid.UUID) *PaymentDeletedEvent {
	return &PaymentDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentDeleted, "PaymentSchedule", s.ID, s.AgencyID),
		PaymentID:       paymentID,
		Remaining:       s.RemainingBalance(),
	}
}
