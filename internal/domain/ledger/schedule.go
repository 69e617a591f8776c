package ledger

import (
	"time"

	"github.com/letably/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentType classifies what a schedule charges for
type PaymentType string

const (
	PaymentTypeRent      PaymentType = "rent"
	PaymentTypeDeposit   PaymentType = "deposit"
	PaymentTypeUtilities PaymentType = "utilities"
	PaymentTypeFees      PaymentType = "fees"
	PaymentTypeOther     PaymentType = "other"
)

// IsValid checks if the payment type is in the allowed set
func (p PaymentType) IsValid() bool {
	switch p {
	case PaymentTypeRent, PaymentTypeDeposit, PaymentTypeUtilities, PaymentTypeFees, PaymentTypeOther:
		return true
	}
	return false
}

// String returns the string representation of PaymentType
func (p PaymentType) String() string {
	return string(p)
}

// ScheduleType distinguishes generated schedules from manually created ones
type ScheduleType string

const (
	ScheduleTypeAutomated ScheduleType = "automated"
	ScheduleTypeManual    ScheduleType = "manual"
)

// IsValid checks if the schedule type is valid
func (s ScheduleType) IsValid() bool {
	return s == ScheduleTypeAutomated || s == ScheduleTypeManual
}

// PaymentSchedule is one expected cash movement owed between operator and
// occupant. A positive AmountDue is owed to the operator; a negative one is a
// credit owed back to the occupant. The schedule owns its Payment rows.
//
// Status is a cached value derived from (AmountDue, sum of payments, DueDate,
// today); it is recomputed on every payment mutation and never hand-set, with
// the single exception of the pending reset when all payments are removed.
type PaymentSchedule struct {
	shared.AgencyAggregateRoot
	TenancyID   uuid.UUID       `json:"tenancy_id"`
	MemberID    uuid.UUID       `json:"tenancy_member_id"`
	PaymentType PaymentType     `json:"payment_type"`
	Description string          `json:"description"`
	DueDate     time.Time       `json:"due_date"`
	AmountDue   decimal.Decimal `json:"amount_due"`
	Status      ScheduleStatus  `json:"status"`
	Type        ScheduleType    `json:"schedule_type"`
	Payments    []Payment       `json:"payments"`
}

func newSchedule(agencyID, tenancyID, memberID uuid.UUID, dueDate time.Time, amountDue decimal.Decimal, paymentType PaymentType, description string, scheduleType ScheduleType) (*PaymentSchedule, error) {
	if amountDue.IsZero() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Schedule amount due cannot be zero")
	}
	if !paymentType.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Unsupported payment type")
	}
	if dueDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Schedule due date is required")
	}
	if tenancyID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Tenancy ID cannot be empty")
	}
	if memberID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Tenancy member ID cannot be empty")
	}

	s := &PaymentSchedule{
		AgencyAggregateRoot: shared.NewAgencyAggregateRoot(agencyID),
		TenancyID:           tenancyID,
		MemberID:            memberID,
		PaymentType:         paymentType,
		Description:         description,
		DueDate:             dueDate,
		AmountDue:           amountDue,
		Status:              ScheduleStatusPending,
		Type:                scheduleType,
		Payments:            []Payment{},
	}

	s.AddDomainEvent(NewScheduleCreatedEvent(s))

	return s, nil
}

// NewManualSchedule creates a schedule entered by an operator
func NewManualSchedule(agencyID, tenancyID, memberID uuid.UUID, dueDate time.Time, amountDue decimal.Decimal, paymentType PaymentType, description string) (*PaymentSchedule, error) {
	return newSchedule(agencyID, tenancyID, memberID, dueDate, amountDue, paymentType, description, ScheduleTypeManual)
}

// NewAutomatedSchedule creates a schedule produced by schedule generation
func NewAutomatedSchedule(agencyID, tenancyID, memberID uuid.UUID, dueDate time.Time, amountDue decimal.Decimal, paymentType PaymentType, description string) (*PaymentSchedule, error) {
	return newSchedule(agencyID, tenancyID, memberID, dueDate, amountDue, paymentType, description, ScheduleTypeAutomated)
}

// TotalPaid sums the recorded payments
func (s *PaymentSchedule) TotalPaid() decimal.Decimal {
	total := decimal.Zero
	for i := range s.Payments {
		total = total.Add(s.Payments[i].Amount)
	}
	return total
}

// RemainingBalance returns the sign-aware amount still outstanding
func (s *PaymentSchedule) RemainingBalance() decimal.Decimal {
	return RemainingBalance(s.AmountDue, s.TotalPaid())
}

// IsCredit returns true if this schedule owes money back to the occupant
func (s *PaymentSchedule) IsCredit() bool {
	return s.AmountDue.IsNegative()
}

// PaymentByID returns the payment with the given ID, or nil
func (s *PaymentSchedule) PaymentByID(paymentID uuid.UUID) *Payment {
	for i := range s.Payments {
		if s.Payments[i].ID == paymentID {
			return &s.Payments[i]
		}
	}
	return nil
}

// UpdateTerms edits the amount due, due date, type and description. Editing
// an automated schedule downgrades it to manual; that transition is one-way.
//
// Existing payments are deliberately not revalidated against the new amount,
// matching the established behaviour; the status is still recomputed so the
// cached value stays a function of the new inputs.
func (s *PaymentSchedule) UpdateTerms(amountDue decimal.Decimal, dueDate time.Time, paymentType PaymentType, description string, today time.Time) error {
	if amountDue.IsZero() {
		return shared.NewDomainError("INVALID_INPUT", "Schedule amount due cannot be zero")
	}
	if !paymentType.IsValid() {
		return shared.NewDomainError("INVALID_INPUT", "Unsupported payment type")
	}
	if dueDate.IsZero() {
		return shared.NewDomainError("INVALID_INPUT", "Schedule due date is required")
	}

	s.AmountDue = amountDue
	s.DueDate = dueDate
	s.PaymentType = paymentType
	s.Description = description

	if s.Type == ScheduleTypeAutomated {
		s.Type = ScheduleTypeManual
	}

	s.recomputeStatus(today)
	s.UpdatedAt = time.Now()
	s.IncrementVersion()

	return nil
}

// RecordPayment appends a payment after validating the balance invariant, and
// recomputes the cached status.
func (s *PaymentSchedule) RecordPayment(amount decimal.Decimal, date time.Time, reference string, today time.Time) (*Payment, error) {
	if amount.IsZero() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Payment amount cannot be zero")
	}
	if err := CheckBalanceInvariant(s.AmountDue, s.TotalPaid(), amount); err != nil {
		return nil, err
	}

	payment, err := NewPayment(s.AgencyID, s.ID, amount, date, reference)
	if err != nil {
		return nil, err
	}

	previous := s.Status
	s.Payments = append(s.Payments, *payment)
	s.recomputeStatus(today)
	s.UpdatedAt = time.Now()
	s.IncrementVersion()

	s.AddDomainEvent(NewPaymentRecordedEvent(s, payment))
	s.emitStatusChange(previous)

	return payment, nil
}

// AmendPayment edits an existing payment, revalidating the balance invariant
// with the edited payment excluded from the prior total.
func (s *PaymentSchedule) AmendPayment(paymentID uuid.UUID, amount decimal.Decimal, date time.Time, reference string, today time.Time) (*Payment, error) {
	payment := s.PaymentByID(paymentID)
	if payment == nil {
		return nil, shared.ErrNotFound
	}
	if amount.IsZero() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Payment amount cannot be zero")
	}

	priorTotal := s.TotalPaid().Sub(payment.Amount)
	if err := CheckBalanceInvariant(s.AmountDue, priorTotal, amount); err != nil {
		return nil, err
	}

	if err := payment.Amend(amount, date, reference); err != nil {
		return nil, err
	}

	previous := s.Status
	s.recomputeStatus(today)
	s.UpdatedAt = time.Now()
	s.IncrementVersion()

	s.emitStatusChange(previous)

	return payment, nil
}

// RemovePayment deletes a payment unconditionally and recomputes the status.
// Removing the last payment resets the schedule to pending (or overdue when
// past due), which may move it back from paid or partial.
func (s *PaymentSchedule) RemovePayment(paymentID uuid.UUID, today time.Time) error {
	idx := -1
	for i := range s.Payments {
		if s.Payments[i].ID == paymentID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return shared.ErrNotFound
	}

	previous := s.Status
	s.Payments = append(s.Payments[:idx], s.Payments[idx+1:]...)
	s.recomputeStatus(today)
	s.UpdatedAt = time.Now()
	s.IncrementVersion()

	s.AddDomainEvent(NewPaymentDeletedEvent(s, paymentID))
	s.emitStatusChange(previous)

	return nil
}

// Revert deletes all linked payments and resets the status to pending. It is
// idempotent: reverting an already-reverted schedule is a no-op with the same
// end state.
func (s *PaymentSchedule) Revert() {
	previous := s.Status

	s.Payments = []Payment{}
	s.Status = ScheduleStatusPending
	s.UpdatedAt = time.Now()
	s.IncrementVersion()

	if previous != ScheduleStatusPending {
		s.AddDomainEvent(NewScheduleStatusChangedEvent(s, previous))
	}
}

// ErrScheduleHasPayments rejects deletion of a schedule that still owns
// payment rows. The storage layer returns the same error when a concurrent
// payment lands between the aggregate check and the delete statement.
var ErrScheduleHasPayments = shared.NewDomainError("CONFLICT",
	"Cannot delete a schedule with recorded payments; revert it first")

// CanDelete reports whether the schedule may be deleted. A schedule with any
// recorded payments must be reverted first.
func (s *PaymentSchedule) CanDelete() error {
	if len(s.Payments) > 0 {
		return ErrScheduleHasPayments
	}
	return nil
}

// DisplayStatus derives the status for the given date without mutating the
// cached column, so a schedule that crossed its due date since the last write
// still reads as overdue.
func (s *PaymentSchedule) DisplayStatus(today time.Time) ScheduleStatus {
	return ComputeStatus(s.AmountDue, s.TotalPaid(), s.DueDate, today)
}

// recomputeStatus is the only writer of the cached status column.
func (s *PaymentSchedule) recomputeStatus(today time.Time) {
	s.Status = ComputeStatus(s.AmountDue, s.TotalPaid(), s.DueDate, today)
}

func (s *PaymentSchedule) emitStatusChange(previous ScheduleStatus) {
	if s.Status != previous {
		s.AddDomainEvent(NewScheduleStatusChangedEvent(s, previous))
	}
}
