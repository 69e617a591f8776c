package event

import (
	"github.com/letably/backend/internal/domain/ledger"
	"github.com/letably/backend/internal/domain/letting"
)

// RegisterAllEvents registers all domain event types with the serializer.
// Consumers that deserialize events from the broker need every published
// type listed here.
func RegisterAllEvents(serializer *EventSerializer) {
	// Letting domain
	serializer.Register(letting.EventTypeTenancyCreated, &letting.TenancyCreatedEvent{})
	serializer.Register(letting.EventTypeTenancyActivated, &letting.TenancyActivatedEvent{})

	// Ledger domain
	serializer.Register(ledger.EventTypeScheduleCreated, &ledger.ScheduleCreatedEvent{})
	serializer.Register(ledger.EventTypeScheduleStatusChanged, &ledger.ScheduleStatusChangedEvent{})
	serializer.Register(ledger.EventTypePaymentRecorded, &ledger.PaymentRecordedEvent{})
	serializer.Register(ledger.EventTypePaymentDeleted, &ledger.PaymentDeletedEvent{})
}
