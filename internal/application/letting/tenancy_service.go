package letting

import (
	"context"
	"time"

	"github.com/letably/backend/internal/domain/ledger"
	"github.com/letably/backend/internal/domain/letting"
	"github.com/letably/backend/internal/domain/shared"
	"github.com/letably/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ScheduleGenerator produces the automated rent schedules for a tenancy.
// Implemented by the ledger schedule service; the indirection keeps the
// tenancy lifecycle free of a direct dependency on the schedule engine.
type ScheduleGenerator interface {
	GenerateForTenancy(ctx context.Context, agencyID, tenancyID uuid.UUID) ([]*ledger.PaymentSchedule, error)
}

// MemberInput carries the fields for one tenancy occupant
type MemberInput struct {
	FullName  string
	Email     string
	RentShare decimal.Decimal
}

// CreateTenancyInput carries the fields for creating a tenancy
type CreateTenancyInput struct {
	AgencyID    uuid.UUID
	PropertyRef string
	StartDate   time.Time
	EndDate     time.Time
	RentAmount  decimal.Decimal
	RentDueDay  int
	Members     []MemberInput
}

// ActivationResult reports an activation together with the schedules it
// generated
type ActivationResult struct {
	Tenancy            *letting.Tenancy `json:"tenancy"`
	SchedulesGenerated int              `json:"schedules_generated"`
}

// TenancyService implements the tenancy lifecycle from pending through
// awaiting_signatures and active to expired. Activation triggers the
// automated schedule generation for the lease term.
type TenancyService struct {
	tenancyRepo letting.TenancyRepository
	agencyRepo  letting.AgencyRepository
	generator   ScheduleGenerator
	publisher   shared.EventPublisher
}

// NewTenancyService creates a new TenancyService. The generator and publisher
// may be nil; activation then skips the corresponding step.
func NewTenancyService(
	tenancyRepo letting.TenancyRepository,
	agencyRepo letting.AgencyRepository,
	generator ScheduleGenerator,
	publisher shared.EventPublisher,
) *TenancyService {
	return &TenancyService{
		tenancyRepo: tenancyRepo,
		agencyRepo:  agencyRepo,
		generator:   generator,
		publisher:   publisher,
	}
}

// CreateTenancy creates a pending tenancy with its initial members
func (s *TenancyService) CreateTenancy(ctx context.Context, in CreateTenancyInput) (*letting.Tenancy, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "letting", "create_tenancy")
	defer span.End()

	telemetry.SetAttributes(span, telemetry.SpanAttrAgencyID, in.AgencyID.String())

	if _, err := s.agencyRepo.FindByID(ctx, in.AgencyID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	tenancy, err := letting.NewTenancy(in.AgencyID, in.PropertyRef, in.StartDate, in.EndDate, in.RentAmount, in.RentDueDay)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	for _, m := range in.Members {
		if _, err := tenancy.AddMember(m.FullName, m.Email, m.RentShare); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}

	if err := s.tenancyRepo.Save(ctx, tenancy); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishEvents(ctx, tenancy)

	return tenancy, nil
}

// GetTenancy loads a tenancy with its members within an agency
func (s *TenancyService) GetTenancy(ctx context.Context, agencyID, tenancyID uuid.UUID) (*letting.Tenancy, error) {
	return s.tenancyRepo.FindByIDForAgency(ctx, agencyID, tenancyID)
}

// ListTenancies returns a page of tenancies for an agency
func (s *TenancyService) ListTenancies(ctx context.Context, agencyID uuid.UUID, filter letting.TenancyFilter) (*shared.Paginated[letting.Tenancy], error) {
	tenancies, err := s.tenancyRepo.FindAllForAgency(ctx, agencyID, filter)
	if err != nil {
		return nil, err
	}

	total, err := s.tenancyRepo.CountForAgency(ctx, agencyID, filter)
	if err != nil {
		return nil, err
	}

	page := shared.NewPaginated(tenancies, total, filter.Page, filter.PageSize)
	return &page, nil
}

// AddMember attaches an occupant to an existing tenancy
func (s *TenancyService) AddMember(ctx context.Context, agencyID, tenancyID uuid.UUID, in MemberInput) (*letting.TenancyMember, error) {
	tenancy, err := s.tenancyRepo.FindByIDForAgency(ctx, agencyID, tenancyID)
	if err != nil {
		return nil, err
	}

	member, err := tenancy.AddMember(in.FullName, in.Email, in.RentShare)
	if err != nil {
		return nil, err
	}

	if err := s.tenancyRepo.Save(ctx, tenancy); err != nil {
		return nil, err
	}

	return member, nil
}

// SendForSignatures moves a pending tenancy to awaiting_signatures
func (s *TenancyService) SendForSignatures(ctx context.Context, agencyID, tenancyID uuid.UUID) (*letting.Tenancy, error) {
	return s.transition(ctx, agencyID, tenancyID, (*letting.Tenancy).SendForSignatures)
}

// Activate marks the tenancy active and generates its automated rent
// schedules. The activation itself commits first; a generation failure is
// returned to the caller but does not undo the activation.
func (s *TenancyService) Activate(ctx context.Context, agencyID, tenancyID uuid.UUID) (*ActivationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "letting", "activate_tenancy")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrAgencyID, agencyID.String(),
		telemetry.SpanAttrTenancyID, tenancyID.String(),
	)

	tenancy, err := s.transition(ctx, agencyID, tenancyID, (*letting.Tenancy).Activate)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := &ActivationResult{Tenancy: tenancy}

	if s.generator != nil {
		schedules, err := s.generator.GenerateForTenancy(ctx, agencyID, tenancyID)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		result.SchedulesGenerated = len(schedules)
	}

	telemetry.AddEvent(span, "tenancy_activated",
		"schedules_generated", result.SchedulesGenerated,
	)

	return result, nil
}

// Expire marks an active tenancy as expired
func (s *TenancyService) Expire(ctx context.Context, agencyID, tenancyID uuid.UUID) (*letting.Tenancy, error) {
	return s.transition(ctx, agencyID, tenancyID, (*letting.Tenancy).Expire)
}

// transition loads a tenancy, applies the state change and saves it
func (s *TenancyService) transition(ctx context.Context, agencyID, tenancyID uuid.UUID, change func(*letting.Tenancy) error) (*letting.Tenancy, error) {
	tenancy, err := s.tenancyRepo.FindByIDForAgency(ctx, agencyID, tenancyID)
	if err != nil {
		return nil, err
	}

	if err := change(tenancy); err != nil {
		return nil, err
	}

	if err := s.tenancyRepo.Save(ctx, tenancy); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, tenancy)

	return tenancy, nil
}

// publishEvents forwards pending domain events; delivery is best effort
func (s *TenancyService) publishEvents(ctx context.Context, tenancy *letting.Tenancy) {
	if s.publisher == nil {
		return
	}

	events := tenancy.GetDomainEvents()
	if len(events) == 0 {
		return
	}

	_ = s.publisher.Publish(ctx, events...)
	tenancy.ClearDomainEvents()
}
