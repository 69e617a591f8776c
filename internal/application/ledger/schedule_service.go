package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/letably/backend/internal/domain/ledger"
	"github.com/letably/backend/internal/domain/letting"
	"github.com/letably/backend/internal/domain/shared"
	applogger "github.com/letably/backend/internal/infrastructure/logger"
	"github.com/letably/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ScheduleService implements the schedule lifecycle: manual creation,
// automated generation on tenancy activation, edits and deletion. It is the
// only entry point that creates schedule rows, so the active-tenancy and
// non-zero-amount invariants hold for generated rows too.
type ScheduleService struct {
	scheduleRepo ledger.PaymentScheduleRepository
	tenancyRepo  letting.TenancyRepository
	publisher    shared.EventPublisher
	now          func() time.Time
}

// NewScheduleService creates a new ScheduleService. The publisher may be nil
// when no notification pipeline is configured.
func NewScheduleService(
	scheduleRepo ledger.PaymentScheduleRepository,
	tenancyRepo letting.TenancyRepository,
	publisher shared.EventPublisher,
) *ScheduleService {
	return &ScheduleService{
		scheduleRepo: scheduleRepo,
		tenancyRepo:  tenancyRepo,
		publisher:    publisher,
		now:          time.Now,
	}
}

// CreateManualSchedule creates an operator-entered schedule against a member
// of an active tenancy.
func (s *ScheduleService) CreateManualSchedule(ctx context.Context, in CreateScheduleInput) (*ScheduleResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "create_manual_schedule")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrAgencyID, in.AgencyID.String(),
		telemetry.SpanAttrTenancyID, in.TenancyID.String(),
		telemetry.SpanAttrAmount, in.AmountDue.String(),
	)

	tenancy, err := s.tenancyRepo.FindByIDForAgency(ctx, in.AgencyID, in.TenancyID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !tenancy.Status.CanReceiveSchedules() {
		err := shared.NewDomainError("INVALID_STATE", "Schedules can only be created against an active tenancy")
		telemetry.RecordError(span, err)
		return nil, err
	}
	if tenancy.MemberByID(in.MemberID) == nil {
		telemetry.RecordError(span, shared.ErrNotFound)
		return nil, shared.ErrNotFound
	}

	schedule, err := ledger.NewManualSchedule(
		in.AgencyID, in.TenancyID, in.MemberID,
		in.DueDate, in.AmountDue, in.PaymentType, in.Description,
	)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.scheduleRepo.Create(ctx, schedule); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishEvents(ctx, schedule)

	result := newScheduleResult(schedule, s.now())
	return &result, nil
}

// GetSchedule loads a schedule with its payments and derives the display
// status for today.
func (s *ScheduleService) GetSchedule(ctx context.Context, agencyID, scheduleID uuid.UUID) (*ScheduleResult, error) {
	schedule, err := s.scheduleRepo.FindByIDForAgency(ctx, agencyID, scheduleID)
	if err != nil {
		return nil, err
	}

	result := newScheduleResult(schedule, s.now())
	return &result, nil
}

// ListSchedules returns a page of schedules with derived display statuses
func (s *ScheduleService) ListSchedules(ctx context.Context, agencyID uuid.UUID, filter ledger.ScheduleFilter) (*shared.Paginated[ScheduleResult], error) {
	schedules, err := s.scheduleRepo.FindAllForAgency(ctx, agencyID, filter)
	if err != nil {
		return nil, err
	}

	total, err := s.scheduleRepo.CountForAgency(ctx, agencyID, filter)
	if err != nil {
		return nil, err
	}

	today := s.now()
	results := make([]ScheduleResult, 0, len(schedules))
	for i := range schedules {
		results = append(results, newScheduleResult(&schedules[i], today))
	}

	page := shared.NewPaginated(results, total, filter.Page, filter.PageSize)
	return &page, nil
}

// UpdateSchedule edits the schedule terms. Editing an automated schedule
// downgrades it to manual; existing payments are kept as they are and the
// status is recomputed from the new amount.
func (s *ScheduleService) UpdateSchedule(ctx context.Context, agencyID, scheduleID uuid.UUID, in UpdateScheduleInput) (*ScheduleResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "update_schedule")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrAgencyID, agencyID.String(),
		telemetry.SpanAttrScheduleID, scheduleID.String(),
	)

	schedule, err := mutateScheduleWithRetry(ctx, s.scheduleRepo, agencyID, scheduleID, func(sched *ledger.PaymentSchedule) error {
		return sched.UpdateTerms(in.AmountDue, in.DueDate, in.PaymentType, in.Description, s.now())
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishEvents(ctx, schedule)

	result := newScheduleResult(schedule, s.now())
	return &result, nil
}

// DeleteSchedule removes a schedule without payments. A schedule that has any
// recorded payments must be reverted first; deleting it directly is CONFLICT.
func (s *ScheduleService) DeleteSchedule(ctx context.Context, agencyID, scheduleID uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "delete_schedule")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrAgencyID, agencyID.String(),
		telemetry.SpanAttrScheduleID, scheduleID.String(),
	)

	schedule, err := s.scheduleRepo.FindByIDForAgency(ctx, agencyID, scheduleID)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	if err := schedule.CanDelete(); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	if err := s.scheduleRepo.DeleteForAgency(ctx, agencyID, scheduleID); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	return nil
}

// GenerateForTenancy creates the monthly automated rent schedules for every
// member of an active tenancy, one row per member per rent period, using each
// member's rent share. Members with a zero share get no rows.
func (s *ScheduleService) GenerateForTenancy(ctx context.Context, agencyID, tenancyID uuid.UUID) ([]*ledger.PaymentSchedule, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "generate_schedules")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrAgencyID, agencyID.String(),
		telemetry.SpanAttrTenancyID, tenancyID.String(),
	)

	tenancy, err := s.tenancyRepo.FindByIDForAgency(ctx, agencyID, tenancyID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !tenancy.IsActive() {
		err := shared.NewDomainError("INVALID_STATE", "Schedules can only be generated for an active tenancy")
		telemetry.RecordError(span, err)
		return nil, err
	}

	dueDates := monthlyDueDates(tenancy.StartDate, tenancy.EndDate, tenancy.RentDueDay)

	created := make([]*ledger.PaymentSchedule, 0, len(dueDates)*len(tenancy.Members))
	for i := range tenancy.Members {
		member := &tenancy.Members[i]
		if member.RentShare.IsZero() {
			continue
		}

		for _, due := range dueDates {
			schedule, err := ledger.NewAutomatedSchedule(
				agencyID, tenancy.ID, member.ID,
				due, member.RentShare, ledger.PaymentTypeRent,
				fmt.Sprintf("Rent %s for %s", due.Format("January 2006"), tenancy.PropertyRef),
			)
			if err != nil {
				telemetry.RecordError(span, err)
				return nil, err
			}

			if err := s.scheduleRepo.Create(ctx, schedule); err != nil {
				telemetry.RecordError(span, err)
				return nil, err
			}

			s.publishEvents(ctx, schedule)
			created = append(created, schedule)
		}
	}

	telemetry.AddEvent(span, "schedules_generated", "count", len(created))
	return created, nil
}

// monthlyDueDates returns the rent due dates between start and end inclusive.
// dueDay is constrained to 1-28 at the domain level, so AddDate never skips a
// month.
func monthlyDueDates(start, end time.Time, dueDay int) []time.Time {
	first := time.Date(start.Year(), start.Month(), dueDay, 0, 0, 0, 0, start.Location())
	if first.Before(start) {
		first = first.AddDate(0, 1, 0)
	}

	var dates []time.Time
	for d := first; !d.After(end); d = d.AddDate(0, 1, 0) {
		dates = append(dates, d)
	}
	return dates
}

// publishEvents forwards the pending domain events to the notification
// publisher. Publishing is best effort: the mutation has already committed,
// so failures are logged and never reach the caller.
func (s *ScheduleService) publishEvents(ctx context.Context, schedule *ledger.PaymentSchedule) {
	if s.publisher == nil {
		return
	}

	events := schedule.GetDomainEvents()
	if len(events) == 0 {
		return
	}

	if err := s.publisher.Publish(ctx, events...); err != nil {
		applogger.L(ctx).Warn("failed to publish ledger events",
			zap.String("schedule_id", schedule.ID.String()), zap.Error(err))
	}
	schedule.ClearDomainEvents()
}
