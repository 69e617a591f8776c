package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var (
	statusToday     = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	statusPastDue   = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	statusFutureDue = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeStatus(t *testing.T) {
	tests := []struct {
		name      string
		amountDue string
		totalPaid string
		dueDate   time.Time
		want      ScheduleStatus
	}{
		{"unpaid before due date", "500.00", "0", statusFutureDue, ScheduleStatusPending},
		{"unpaid past due date", "500.00", "0", statusPastDue, ScheduleStatusOverdue},
		{"partially paid before due date", "500.00", "200.00", statusFutureDue, ScheduleStatusPartial},
		{"partially paid past due date", "500.00", "200.00", statusPastDue, ScheduleStatusOverdue},
		{"fully paid before due date", "500.00", "500.00", statusFutureDue, ScheduleStatusPaid},
		{"fully paid past due date stays paid", "500.00", "500.00", statusPastDue, ScheduleStatusPaid},
		{"credit unpaid before due date", "-200.00", "0", statusFutureDue, ScheduleStatusPending},
		{"credit unpaid past due date", "-200.00", "0", statusPastDue, ScheduleStatusOverdue},
		{"credit partially refunded", "-200.00", "-50.00", statusFutureDue, ScheduleStatusPartial},
		{"credit fully refunded past due date stays paid", "-200.00", "-200.00", statusPastDue, ScheduleStatusPaid},
		{"due today is not overdue", "500.00", "0", truncateToDay(statusToday), ScheduleStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeStatus(dec(tt.amountDue), dec(tt.totalPaid), tt.dueDate, statusToday)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeStatus_IsPure(t *testing.T) {
	// Same inputs must yield the same output regardless of call order.
	first := ComputeStatus(dec("500.00"), dec("250.00"), statusPastDue, statusToday)
	_ = ComputeStatus(dec("-100.00"), dec("-100.00"), statusFutureDue, statusToday)
	second := ComputeStatus(dec("500.00"), dec("250.00"), statusPastDue, statusToday)
	assert.Equal(t, first, second)
}

func TestSettlementState(t *testing.T) {
	// The pending/partial distinction underneath an overdue display status.
	assert.Equal(t, ScheduleStatusPending, SettlementState(dec("500.00"), dec("0")))
	assert.Equal(t, ScheduleStatusPartial, SettlementState(dec("500.00"), dec("100.00")))
	assert.Equal(t, ScheduleStatusPaid, SettlementState(dec("500.00"), dec("500.00")))
	assert.Equal(t, ScheduleStatusPartial, SettlementState(dec("-200.00"), dec("-150.00")))
}

func TestRemainingBalance(t *testing.T) {
	assert.True(t, dec("300.00").Equal(RemainingBalance(dec("500.00"), dec("200.00"))))
	assert.True(t, dec("-150.00").Equal(RemainingBalance(dec("-200.00"), dec("-50.00"))))
	assert.True(t, decimal.Zero.Equal(RemainingBalance(dec("500.00"), dec("500.00"))))
}

func TestCheckBalanceInvariant_Charge(t *testing.T) {
	// Charges: payments may never exceed what is owed.
	assert.NoError(t, CheckBalanceInvariant(dec("500.00"), dec("0"), dec("500.00")))
	assert.NoError(t, CheckBalanceInvariant(dec("500.00"), dec("200.00"), dec("300.00")))

	err := CheckBalanceInvariant(dec("500.00"), dec("500.00"), dec("1.00"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "0.00")

	err = CheckBalanceInvariant(dec("500.00"), dec("200.00"), dec("300.01"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "300.00")

	// A negative amount on a charge is rejected even when it would not
	// overshoot: the running total may never leave [0, amount_due].
	err = CheckBalanceInvariant(dec("500.00"), dec("0"), dec("-100.00"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "below zero")

	err = CheckBalanceInvariant(dec("500.00"), dec("200.00"), dec("-300.00"))
	assert.Error(t, err)
}

func TestCheckBalanceInvariant_Credit(t *testing.T) {
	// Credits: refunds may never exceed the remaining credit.
	assert.NoError(t, CheckBalanceInvariant(dec("-200.00"), dec("0"), dec("-200.00")))
	assert.NoError(t, CheckBalanceInvariant(dec("-200.00"), dec("-150.00"), dec("-50.00")))

	err := CheckBalanceInvariant(dec("-200.00"), dec("-200.00"), dec("-50.00"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "remaining credit")

	// A positive amount on a credit is the mirror-image sign mismatch.
	err = CheckBalanceInvariant(dec("-200.00"), dec("0"), dec("50.00"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "above zero")
}

func TestScheduleStatus_IsValid(t *testing.T) {
	tests := []struct {
		status  ScheduleStatus
		isValid bool
	}{
		{ScheduleStatusPending, true},
		{ScheduleStatusPartial, true},
		{ScheduleStatusPaid, true},
		{ScheduleStatusOverdue, true},
		{ScheduleStatus("cancelled"), false},
		{ScheduleStatus(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.isValid, tt.status.IsValid())
		})
	}
}
