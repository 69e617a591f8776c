package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/letably/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// wildcardType keys handlers that subscribed with no event types.
const wildcardType = "*"

// InMemoryEventBus delivers domain events to subscribed handlers in the
// publishing goroutine. Delivery is best effort: the mutation that produced
// an event has already committed, so handler errors and panics are logged
// and never propagate to the publisher.
type InMemoryEventBus struct {
	mu            sync.RWMutex
	subscriptions map[string][]shared.EventHandler
	logger        *zap.Logger
}

// NewInMemoryEventBus creates an event bus with no subscriptions.
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	return &InMemoryEventBus{
		subscriptions: make(map[string][]shared.EventHandler),
		logger:        logger,
	}
}

// Publish delivers each event to its type's handlers and to wildcard
// handlers. Always returns nil; failures are logged per handler.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, evt := range events {
		for _, handler := range b.handlersFor(evt.EventType()) {
			if err := b.deliver(ctx, handler, evt); err != nil {
				b.logger.Error("event handler failed",
					zap.String("event_type", evt.EventType()),
					zap.String("event_id", evt.EventID().String()),
					zap.String("agency_id", evt.AgencyID().String()),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

// Subscribe registers a handler. With no explicit types the handler's own
// EventTypes decide; an empty result subscribes it to every event.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	if len(eventTypes) == 0 {
		eventTypes = []string{wildcardType}
	}

	b.mu.Lock()
	for _, eventType := range eventTypes {
		b.subscriptions[eventType] = append(b.subscriptions[eventType], handler)
	}
	b.mu.Unlock()

	b.logger.Debug("handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes a handler from every event type.
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.mu.Lock()
	for eventType, handlers := range b.subscriptions {
		kept := handlers[:0]
		for _, h := range handlers {
			if h != handler {
				kept = append(kept, h)
			}
		}
		if len(kept) == 0 {
			delete(b.subscriptions, eventType)
		} else {
			b.subscriptions[eventType] = kept
		}
	}
	b.mu.Unlock()

	b.logger.Debug("handler unsubscribed")
}

// Start satisfies shared.EventBus. The in-memory bus has no background work.
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.logger.Info("event bus started")
	return nil
}

// Stop satisfies shared.EventBus.
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.logger.Info("event bus stopped")
	return nil
}

func (b *InMemoryEventBus) handlersFor(eventType string) []shared.EventHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	typed := b.subscriptions[eventType]
	wildcard := b.subscriptions[wildcardType]
	handlers := make([]shared.EventHandler, 0, len(typed)+len(wildcard))
	handlers = append(handlers, typed...)
	handlers = append(handlers, wildcard...)
	return handlers
}

// deliver invokes a handler, converting a panic into an error so one bad
// handler cannot take down the publisher or starve its peers.
func (b *InMemoryEventBus) deliver(ctx context.Context, handler shared.EventHandler, evt shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler.Handle(ctx, evt)
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
