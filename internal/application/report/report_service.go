package report

import (
	"context"
	"time"

	"github.com/letably/backend/internal/domain/ledger"
	"github.com/letably/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReportService provides the read-only reporting views over the ledger. All
// queries run through the same isolation-enforcing store as the mutations;
// overdue is always a derived view, never a stored mutation.
type ReportService struct {
	scheduleRepo ledger.PaymentScheduleRepository
	paymentRepo  ledger.PaymentRepository
	now          func() time.Time
}

// NewReportService builds the read-side reporting service on the ledger
// repositories.
func NewReportService(
	scheduleRepo ledger.PaymentScheduleRepository,
	paymentRepo ledger.PaymentRepository,
) *ReportService {
	return &ReportService{
		scheduleRepo: scheduleRepo,
		paymentRepo:  paymentRepo,
		now:          time.Now,
	}
}

// LedgerSummaryResponse aggregates the agency's money position
type LedgerSummaryResponse struct {
	Outstanding decimal.Decimal `json:"outstanding"`
	Overdue     decimal.Decimal `json:"overdue"`
	Collected   decimal.Decimal `json:"collected"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// ScheduleReportRow is one schedule in a report listing, with derived amounts
type ScheduleReportRow struct {
	ScheduleID  uuid.UUID             `json:"schedule_id"`
	TenancyID   uuid.UUID             `json:"tenancy_id"`
	MemberID    uuid.UUID             `json:"tenancy_member_id"`
	PaymentType ledger.PaymentType    `json:"payment_type"`
	Description string                `json:"description"`
	DueDate     time.Time             `json:"due_date"`
	AmountDue   decimal.Decimal       `json:"amount_due"`
	AmountPaid  decimal.Decimal       `json:"amount_paid"`
	Remaining   decimal.Decimal       `json:"remaining_balance"`
	Status      ledger.ScheduleStatus `json:"status"`
	Type        ledger.ScheduleType   `json:"schedule_type"`
}

// LedgerSummary returns the outstanding / overdue / collected totals for an
// agency, optionally narrowed by the schedule filter.
func (s *ReportService) LedgerSummary(ctx context.Context, agencyID uuid.UUID, filter ledger.ScheduleFilter) (*LedgerSummaryResponse, error) {
	totals, err := s.scheduleRepo.SumTotalsForAgency(ctx, agencyID, filter)
	if err != nil {
		return nil, err
	}

	return &LedgerSummaryResponse{
		Outstanding: totals.Outstanding,
		Overdue:     totals.Overdue,
		Collected:   totals.Collected,
		GeneratedAt: s.now(),
	}, nil
}

// ListSchedules returns a page of schedule report rows. The status column is
// re-derived for today, so a schedule that crossed its due date since the
// last write still reads as overdue.
func (s *ReportService) ListSchedules(ctx context.Context, agencyID uuid.UUID, filter ledger.ScheduleFilter) (*shared.Paginated[ScheduleReportRow], error) {
	schedules, err := s.scheduleRepo.FindAllForAgency(ctx, agencyID, filter)
	if err != nil {
		return nil, err
	}

	total, err := s.scheduleRepo.CountForAgency(ctx, agencyID, filter)
	if err != nil {
		return nil, err
	}

	today := s.now()
	rows := make([]ScheduleReportRow, 0, len(schedules))
	for i := range schedules {
		rows = append(rows, scheduleReportRow(&schedules[i], today))
	}

	page := shared.NewPaginated(rows, total, filter.Page, filter.PageSize)
	return &page, nil
}

// ListOverdueSchedules is the arrears view: schedules past their due date and
// not settled, regardless of what the caller's filter says about overdue.
func (s *ReportService) ListOverdueSchedules(ctx context.Context, agencyID uuid.UUID, filter ledger.ScheduleFilter) (*shared.Paginated[ScheduleReportRow], error) {
	overdue := true
	filter.Overdue = &overdue
	return s.ListSchedules(ctx, agencyID, filter)
}

// ListPayments returns a page of payment rows for an agency within an
// optional date range.
func (s *ReportService) ListPayments(ctx context.Context, agencyID uuid.UUID, from, to *time.Time, filter shared.Filter) (*shared.Paginated[ledger.Payment], error) {
	payments, err := s.paymentRepo.FindAllForAgency(ctx, agencyID, from, to, filter)
	if err != nil {
		return nil, err
	}

	total, err := s.paymentRepo.CountForAgency(ctx, agencyID, from, to)
	if err != nil {
		return nil, err
	}

	page := shared.NewPaginated(payments, total, filter.Page, filter.PageSize)
	return &page, nil
}

func scheduleReportRow(s *ledger.PaymentSchedule, today time.Time) ScheduleReportRow {
	paid := s.TotalPaid()
	return ScheduleReportRow{
		ScheduleID:  s.ID,
		TenancyID:   s.TenancyID,
		MemberID:    s.MemberID,
		PaymentType: s.PaymentType,
		Description: s.Description,
		DueDate:     s.DueDate,
		AmountDue:   s.AmountDue,
		AmountPaid:  paid,
		Remaining:   s.RemainingBalance(),
		Status:      s.DisplayStatus(today),
		Type:        s.Type,
	}
}
