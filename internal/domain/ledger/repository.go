package ledger

import (
	"context"
	"time"

	"github.com/letably/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ScheduleFilter defines filtering options for schedule queries
type ScheduleFilter struct {
	shared.Filter
	TenancyID   *uuid.UUID
	MemberID    *uuid.UUID
	PaymentType *PaymentType
	Status      *ScheduleStatus
	Type        *ScheduleType
	DueFrom     *time.Time
	DueTo       *time.Time
	Overdue     *bool
}

// LedgerTotals aggregates schedule amounts for reporting
type LedgerTotals struct {
	Outstanding decimal.Decimal `json:"outstanding"`
	Overdue     decimal.Decimal `json:"overdue"`
	Collected   decimal.Decimal `json:"collected"`
}

// PaymentScheduleRepository defines persistence for schedules and their
// payments. The agency ID is an explicit parameter on every call even though
// the storage layer enforces the same boundary independently; the redundancy
// is deliberate and must not be collapsed.
type PaymentScheduleRepository interface {
	// FindByIDForAgency loads a schedule with its payments within an agency.
	// Returns shared.ErrNotFound both when the row is absent and when it
	// belongs to another agency.
	FindByIDForAgency(ctx context.Context, agencyID, id uuid.UUID) (*PaymentSchedule, error)

	// FindAllForAgency lists schedules (with payments) for an agency
	FindAllForAgency(ctx context.Context, agencyID uuid.UUID, filter ScheduleFilter) ([]PaymentSchedule, error)

	// CountForAgency counts schedules matching the filter
	CountForAgency(ctx context.Context, agencyID uuid.UUID, filter ScheduleFilter) (int64, error)

	// Create inserts a new schedule
	Create(ctx context.Context, schedule *PaymentSchedule) error

	// SaveWithLock persists the aggregate - schedule row plus payment rows -
	// in one transaction guarded by a version-conditional update on the
	// schedule. A concurrent writer makes the conditional update match zero
	// rows, in which case shared.ErrConcurrencyConflict is returned and no
	// payment row is touched. This is the atomic check-and-insert the balance
	// invariant depends on.
	SaveWithLock(ctx context.Context, schedule *PaymentSchedule) error

	// DeleteForAgency deletes a schedule within an agency, atomically
	// conditioned on the schedule having no payment rows. A payment recorded
	// concurrently with the delete returns ErrScheduleHasPayments instead of
	// being discarded; an absent schedule returns shared.ErrNotFound.
	DeleteForAgency(ctx context.Context, agencyID, id uuid.UUID) error

	// SumTotalsForAgency aggregates outstanding/overdue/collected amounts
	SumTotalsForAgency(ctx context.Context, agencyID uuid.UUID, filter ScheduleFilter) (LedgerTotals, error)
}

// PaymentRepository provides read access to payment rows outside the
// schedule aggregate, for reporting.
type PaymentRepository interface {
	// FindAllForAgency lists payments for an agency within a date range
	FindAllForAgency(ctx context.Context, agencyID uuid.UUID, from, to *time.Time, filter shared.Filter) ([]Payment, error)

	// CountForAgency counts payments for an agency within a date range
	CountForAgency(ctx context.Context, agencyID uuid.UUID, from, to *time.Time) (int64, error)
}
