package ledger

import (
	"context"
	"errors"

	"github.com/letably/backend/internal/domain/ledger"
	"github.com/letably/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// maxSaveAttempts bounds the reload-and-reapply loop on version conflicts.
const maxSaveAttempts = 3

// mutateScheduleWithRetry loads a schedule, applies the mutation and persists
// it under the version-conditional write. When a concurrent writer bumps the
// version first, the loop reloads fresh state and reapplies the mutation, so
// the balance invariant is always checked against what is actually persisted.
// Exhausting the attempts surfaces CONFLICT to the caller.
func mutateScheduleWithRetry(
	ctx context.Context,
	repo ledger.PaymentScheduleRepository,
	agencyID, scheduleID uuid.UUID,
	mutate func(*ledger.PaymentSchedule) error,
) (*ledger.PaymentSchedule, error) {
	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		schedule, err := repo.FindByIDForAgency(ctx, agencyID, scheduleID)
		if err != nil {
			return nil, err
		}

		if err := mutate(schedule); err != nil {
			return nil, err
		}

		err = repo.SaveWithLock(ctx, schedule)
		if err == nil {
			return schedule, nil
		}
		if !errors.Is(err, shared.ErrConcurrencyConflict) {
			return nil, err
		}
	}

	return nil, shared.NewDomainError("CONFLICT", "Schedule was modified concurrently; please retry")
}
