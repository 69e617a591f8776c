package ledger

import (
	"time"

	"github.com/letably/backend/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateScheduleInput carries the fields for creating a manual schedule
type CreateScheduleInput struct {
	AgencyID    uuid.UUID
	TenancyID   uuid.UUID
	MemberID    uuid.UUID
	PaymentType ledger.PaymentType
	Description string
	DueDate     time.Time
	AmountDue   decimal.Decimal
}

// UpdateScheduleInput carries the editable schedule fields
type UpdateScheduleInput struct {
	AmountDue   decimal.Decimal
	DueDate     time.Time
	PaymentType ledger.PaymentType
	Description string
}

// RecordPaymentInput carries the fields for recording a payment.
// IdempotencyKey is optional; when set, a repeated submission with the same
// key is rejected instead of recorded twice.
type RecordPaymentInput struct {
	Amount         decimal.Decimal
	Date           time.Time
	Reference      string
	IdempotencyKey string
}

// AmendPaymentInput carries the editable payment fields
type AmendPaymentInput struct {
	Amount    decimal.Decimal
	Date      time.Time
	Reference string
}

// ScheduleResult is the enriched view every schedule operation returns: the
// aggregate plus the derived amounts and the display status for today.
type ScheduleResult struct {
	Schedule   *ledger.PaymentSchedule `json:"schedule"`
	AmountPaid decimal.Decimal         `json:"amount_paid"`
	Remaining  decimal.Decimal         `json:"remaining_balance"`
	Status     ledger.ScheduleStatus   `json:"status"`
}

// PaymentResult extends ScheduleResult with the payment the operation touched
type PaymentResult struct {
	ScheduleResult
	Payment *ledger.Payment `json:"payment"`
}

// newScheduleResult derives the display view of a schedule for the given date
func newScheduleResult(s *ledger.PaymentSchedule, today time.Time) ScheduleResult {
	return ScheduleResult{
		Schedule:   s,
		AmountPaid: s.TotalPaid(),
		Remaining:  s.RemainingBalance(),
		Status:     s.DisplayStatus(today),
	}
}
