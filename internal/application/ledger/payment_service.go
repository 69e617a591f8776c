package ledger

import (
	"context"
	"time"

	"github.com/letably/backend/internal/domain/ledger"
	"github.com/letably/backend/internal/domain/letting"
	"github.com/letably/backend/internal/domain/shared"
	applogger "github.com/letably/backend/internal/infrastructure/logger"
	"github.com/letably/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentService implements the ledger mutations: recording, amending and
// deleting payments against a schedule, plus the idempotent revert. Every
// mutation runs under the schedule's version-conditional write with a bounded
// retry, so the sign-aware balance invariant is checked atomically against
// persisted state.
type PaymentService struct {
	scheduleRepo ledger.PaymentScheduleRepository
	tenancyRepo  letting.TenancyRepository
	publisher    shared.EventPublisher
	idempotency  shared.IdempotencyStore
	idemConfig   shared.IdempotencyConfig
	now          func() time.Time
}

// NewPaymentService creates a new PaymentService. The publisher and the
// idempotency store may each be nil; the corresponding guard is then skipped.
func NewPaymentService(
	scheduleRepo ledger.PaymentScheduleRepository,
	tenancyRepo letting.TenancyRepository,
	publisher shared.EventPublisher,
	idempotency shared.IdempotencyStore,
) *PaymentService {
	return &PaymentService{
		scheduleRepo: scheduleRepo,
		tenancyRepo:  tenancyRepo,
		publisher:    publisher,
		idempotency:  idempotency,
		idemConfig:   shared.DefaultIdempotencyConfig(),
		now:          time.Now,
	}
}

// RecordPayment appends a payment to a schedule after the balance invariant
// check. When an idempotency key is supplied, a repeated submission with the
// same key is rejected with CONFLICT instead of recorded twice.
func (s *PaymentService) RecordPayment(ctx context.Context, agencyID, scheduleID uuid.UUID, in RecordPaymentInput) (*PaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "record_payment")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrAgencyID, agencyID.String(),
		telemetry.SpanAttrScheduleID, scheduleID.String(),
		telemetry.SpanAttrAmount, in.Amount.String(),
	)

	if err := s.checkIdempotencyKey(ctx, in.IdempotencyKey); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var payment *ledger.Payment
	schedule, err := mutateScheduleWithRetry(ctx, s.scheduleRepo, agencyID, scheduleID, func(sched *ledger.PaymentSchedule) error {
		if err := s.requireActiveTenancy(ctx, agencyID, sched.TenancyID); err != nil {
			return err
		}
		p, err := sched.RecordPayment(in.Amount, in.Date, in.Reference, s.now())
		if err != nil {
			return err
		}
		payment = p
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.markIdempotencyKey(ctx, in.IdempotencyKey)
	s.publishEvents(ctx, schedule)

	telemetry.AddEvent(span, "payment_recorded",
		telemetry.SpanAttrPaymentID, payment.ID.String(),
		telemetry.SpanAttrStatus, schedule.Status.String(),
	)

	return s.paymentResult(schedule, payment), nil
}

// AmendPayment edits an existing payment. The balance invariant is revalidated
// with the edited payment excluded from the prior total.
func (s *PaymentService) AmendPayment(ctx context.Context, agencyID, scheduleID, paymentID uuid.UUID, in AmendPaymentInput) (*PaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "amend_payment")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrAgencyID, agencyID.String(),
		telemetry.SpanAttrScheduleID, scheduleID.String(),
		telemetry.SpanAttrPaymentID, paymentID.String(),
	)

	var payment *ledger.Payment
	schedule, err := mutateScheduleWithRetry(ctx, s.scheduleRepo, agencyID, scheduleID, func(sched *ledger.PaymentSchedule) error {
		if err := s.requireActiveTenancy(ctx, agencyID, sched.TenancyID); err != nil {
			return err
		}
		p, err := sched.AmendPayment(paymentID, in.Amount, in.Date, in.Reference, s.now())
		if err != nil {
			return err
		}
		payment = p
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishEvents(ctx, schedule)

	return s.paymentResult(schedule, payment), nil
}

// DeletePayment removes a payment row unconditionally and recomputes the
// schedule status. Removing the last payment resets the schedule to pending,
// or overdue when past due.
func (s *PaymentService) DeletePayment(ctx context.Context, agencyID, scheduleID, paymentID uuid.UUID) (*ScheduleResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "delete_payment")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrAgencyID, agencyID.String(),
		telemetry.SpanAttrScheduleID, scheduleID.String(),
		telemetry.SpanAttrPaymentID, paymentID.String(),
	)

	schedule, err := mutateScheduleWithRetry(ctx, s.scheduleRepo, agencyID, scheduleID, func(sched *ledger.PaymentSchedule) error {
		return sched.RemovePayment(paymentID, s.now())
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishEvents(ctx, schedule)

	result := newScheduleResult(schedule, s.now())
	return &result, nil
}

// RevertSchedule deletes all linked payments and resets the schedule to
// pending. Reverting an already-reverted schedule is a no-op with the same
// end state.
func (s *PaymentService) RevertSchedule(ctx context.Context, agencyID, scheduleID uuid.UUID) (*ScheduleResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "revert_schedule")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrAgencyID, agencyID.String(),
		telemetry.SpanAttrScheduleID, scheduleID.String(),
	)

	schedule, err := mutateScheduleWithRetry(ctx, s.scheduleRepo, agencyID, scheduleID, func(sched *ledger.PaymentSchedule) error {
		sched.Revert()
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishEvents(ctx, schedule)

	result := newScheduleResult(schedule, s.now())
	return &result, nil
}

func (s *PaymentService) paymentResult(schedule *ledger.PaymentSchedule, payment *ledger.Payment) *PaymentResult {
	return &PaymentResult{
		ScheduleResult: newScheduleResult(schedule, s.now()),
		Payment:        payment,
	}
}

// requireActiveTenancy rejects payment mutations on a schedule whose tenancy
// is not active. Deleting a payment and reverting a schedule stay allowed so
// an expired tenancy's ledger can still be corrected.
func (s *PaymentService) requireActiveTenancy(ctx context.Context, agencyID, tenancyID uuid.UUID) error {
	tenancy, err := s.tenancyRepo.FindByIDForAgency(ctx, agencyID, tenancyID)
	if err != nil {
		return err
	}
	if !tenancy.IsActive() {
		return shared.NewDomainError("INVALID_STATE", "Payments can only be recorded against an active tenancy")
	}
	return nil
}

// checkIdempotencyKey rejects a submission whose key has already been seen.
// A store read error is logged and treated as "not seen" - the guard is an
// extra safety net, not a correctness dependency.
func (s *PaymentService) checkIdempotencyKey(ctx context.Context, key string) error {
	if key == "" || s.idempotency == nil || !s.idemConfig.Enabled {
		return nil
	}

	processed, err := s.idempotency.IsProcessed(ctx, key)
	if err != nil {
		applogger.L(ctx).Warn("idempotency store check failed", zap.Error(err))
		return nil
	}
	if processed {
		return shared.NewDomainError("CONFLICT", "A payment with this idempotency key was already recorded")
	}
	return nil
}

// markIdempotencyKey records the key after a successful mutation
func (s *PaymentService) markIdempotencyKey(ctx context.Context, key string) {
	if key == "" || s.idempotency == nil || !s.idemConfig.Enabled {
		return
	}

	if _, err := s.idempotency.MarkProcessed(ctx, key, s.idemConfig.TTL); err != nil {
		applogger.L(ctx).Warn("failed to mark idempotency key", zap.Error(err))
	}
}

// publishEvents forwards the pending domain events to the notification
// publisher; delivery failures never roll back the committed mutation.
func (s *PaymentService) publishEvents(ctx context.Context, schedule *ledger.PaymentSchedule) {
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
