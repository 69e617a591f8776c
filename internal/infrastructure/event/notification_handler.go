package event

import (
	"context"
	"fmt"

	"github.com/letably/backend/internal/domain/ledger"
	"github.com/letably/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// NotificationLogHandler is the in-process notification consumer. It turns
// ledger events into structured log entries that downstream tooling scrapes;
// deployments with a broker consume the same events from Kafka instead.
type NotificationLogHandler struct {
	logger *zap.Logger
}

// NewNotificationLogHandler creates a notification consumer writing to logger.
func NewNotificationLogHandler(logger *zap.Logger) *NotificationLogHandler {
	return &NotificationLogHandler{logger: logger}
}

// EventTypes subscribes the handler to every ledger notification event.
func (h *NotificationLogHandler) EventTypes() []string {
	return []string{
		ledger.EventTypeScheduleCreated,
		ledger.EventTypeScheduleStatusChanged,
		ledger.EventTypePaymentRecorded,
		ledger.EventTypePaymentDeleted,
	}
}

// Handle emits one notification entry per event.
func (h *NotificationLogHandler) Handle(ctx context.Context, evt shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_id", evt.EventID().String()),
		zap.String("agency_id", evt.AgencyID().String()),
		zap.String("schedule_id", evt.AggregateID().String()),
	}

	switch e := evt.(type) {
	case *ledger.ScheduleCreatedEvent:
		h.logger.Info("notification: schedule created", append(fields,
			zap.String("tenancy_id", e.TenancyID.String()),
			zap.String("payment_type", string(e.PaymentType)),
			zap.String("amount_due", e.AmountDue.String()),
			zap.Time("due_date", e.DueDate),
		)...)
	case *ledger.ScheduleStatusChangedEvent:
		h.logger.Info("notification: schedule status changed", append(fields,
			zap.String("previous_status", string(e.PreviousStatus)),
			zap.String("new_status", string(e.NewStatus)),
			zap.String("amount_paid", e.AmountPaid.String()),
		)...)
	case *ledger.PaymentRecordedEvent:
		h.logger.Info("notification: payment recorded", append(fields,
			zap.String("payment_id", e.PaymentID.String()),
			zap.String("amount", e.Amount.String()),
			zap.String("remaining_balance", e.Remaining.String()),
		)...)
	case *ledger.PaymentDeletedEvent:
		h.logger.Info("notification: payment deleted", append(fields,
			zap.String("payment_id", e.PaymentID.String()),
			zap.String("remaining_balance", e.Remaining.String()),
		)...)
	default:
		return fmt.Errorf("unexpected event type %s", evt.EventType())
	}
	return nil
}

var _ shared.EventHandler = (*NotificationLogHandler)(nil)
