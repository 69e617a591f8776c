package ledger

import (
	"fmt"
	"time"

	"github.com/letably/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ScheduleStatus represents the derived settlement state of a payment schedule.
// The stored column is a cache; ComputeStatus is its only writer.
type ScheduleStatus string

const (
	ScheduleStatusPending ScheduleStatus = "pending"
	ScheduleStatusPartial ScheduleStatus = "partial"
	ScheduleStatusPaid    ScheduleStatus = "paid"
	ScheduleStatusOverdue ScheduleStatus = "overdue"
)

// IsValid checks if the status is a valid ScheduleStatus
func (s ScheduleStatus) IsValid() bool {
	switch s {
	case ScheduleStatusPending, ScheduleStatusPartial, ScheduleStatusPaid, ScheduleStatusOverdue:
		return true
	}
	return false
}

// String returns the string representation of ScheduleStatus
func (s ScheduleStatus) String() string {
	return string(s)
}

// IsSettled returns true once the schedule is fully paid
func (s ScheduleStatus) IsSettled() bool {
	return s == ScheduleStatusPaid
}

// ComputeStatus derives the status of a schedule from its amount due, the sum
// of its payments, its due date and the reference date. It is a pure function:
// identical inputs always produce identical output.
//
// "paid" always wins over "overdue": a fully settled schedule is never shown
// as overdue, regardless of when it was settled.
func ComputeStatus(amountDue, totalPaid decimal.Decimal, dueDate, today time.Time) ScheduleStatus {
	pastDue := dueDate.Before(truncateToDay(today))

	if totalPaid.Equal(amountDue) {
		return ScheduleStatusPaid
	}
	if totalPaid.IsZero() {
		if pastDue {
			return ScheduleStatusOverdue
		}
		return ScheduleStatusPending
	}
	if pastDue {
		return ScheduleStatusOverdue
	}
	return ScheduleStatusPartial
}

// SettlementState is the pending/partial distinction underneath an overdue
// display status; amount calculations use it rather than the display status.
func SettlementState(amountDue, totalPaid decimal.Decimal) ScheduleStatus {
	if totalPaid.Equal(amountDue) {
		return ScheduleStatusPaid
	}
	if totalPaid.IsZero() {
		return ScheduleStatusPending
	}
	return ScheduleStatusPartial
}

// RemainingBalance returns amount_due minus the payments already recorded.
// For a charge (amount_due > 0) this is how much is still owed to the
// operator; for a credit (amount_due < 0) it is how much is still owed back
// to the occupant, as a negative number.
func RemainingBalance(amountDue, totalPaid decimal.Decimal) decimal.Decimal {
	return amountDue.Sub(totalPaid)
}

// CheckBalanceInvariant validates a prospective payment amount against the
// remaining balance of a schedule. This is the single sign-aware comparison
// for both charge and credit schedules; call sites must not reimplement it.
//
// The resulting total must stay within [min(0, amountDue), max(0, amountDue)]:
// a charge (amountDue > 0) accepts only payments that keep the total in
// [0, amountDue], a credit (amountDue < 0) only refunds that keep it in
// [amountDue, 0]. Amounts whose sign opposes the schedule direction are
// rejected, not just overshoots.
func CheckBalanceInvariant(amountDue, priorTotal, amount decimal.Decimal) error {
	remaining := RemainingBalance(amountDue, priorTotal)
	newTotal := priorTotal.Add(amount)

	if amountDue.IsPositive() {
		if newTotal.IsNegative() {
			return shared.NewDomainError("INVALID_INPUT",
				"Payment amount would take the total paid below zero")
		}
		if amount.GreaterThan(remaining) {
			return shared.NewDomainError("INVALID_INPUT",
				fmt.Sprintf("Payment amount exceeds remaining balance of %s", remaining.StringFixed(2)))
		}
		return nil
	}

	if newTotal.IsPositive() {
		return shared.NewDomainError("INVALID_INPUT",
			"Payment amount would take the total refunded above zero")
	}
	if amount.LessThan(remaining) {
		return shared.NewDomainError("INVALID_INPUT",
			fmt.Sprintf("Refund amount exceeds remaining credit of %s", remaining.StringFixed(2)))
	}
	return nil
}

// truncateToDay drops the time-of-day component so that due-date comparisons
// are calendar-day comparisons.
func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
