package shared

import "context"

// EventHandler consumes domain events.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes lists the event types the handler wants. An empty slice
	// subscribes it to everything.
	EventTypes() []string
}

// EventPublisher delivers domain events to their consumers.
//
// Delivery is best effort: a mutation that has committed stays committed
// even when its events cannot be delivered, so implementations must never
// surface delivery failures as operation failures.
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventSubscriber manages handler registrations.
type EventSubscriber interface {
	// Subscribe registers a handler. With no explicit eventTypes, the
	// handler's own EventTypes decide what it receives.
	Subscribe(handler EventHandler, eventTypes ...string)
	// Unsubscribe removes a handler from every type it was registered for.
	Unsubscribe(handler EventHandler)
}

// EventBus is the full in-process bus: publish, subscribe, lifecycle.
type EventBus interface {
	EventPublisher
	EventSubscriber
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
