package event

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/letably/backend/internal/domain/shared"
)

// EventSerializer converts domain events to and from JSON. Deserialization
// needs a prototype per event type, since the wire format carries the type
// name as a string, not a Go type.
type EventSerializer struct {
	mu         sync.RWMutex
	prototypes map[string]reflect.Type
}

// NewEventSerializer creates a serializer with an empty type table.
func NewEventSerializer() *EventSerializer {
	return &EventSerializer{
		prototypes: make(map[string]reflect.Type),
	}
}

// Register maps a wire event type to a concrete event. The eventType must
// match what EventType() returns on the registered event, or consumers will
// fail to decode it.
func (s *EventSerializer) Register(eventType string, prototype shared.DomainEvent) {
	t := reflect.TypeOf(prototype)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	s.mu.Lock()
	s.prototypes[eventType] = t
	s.mu.Unlock()
}

// Serialize encodes an event as JSON.
func (s *EventSerializer) Serialize(evt shared.DomainEvent) ([]byte, error) {
	return json.Marshal(evt)
}

// Deserialize decodes JSON into a new instance of the registered type.
func (s *EventSerializer) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	s.mu.RLock()
	t, ok := s.prototypes[eventType]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	decoded := reflect.New(t).Interface()
	if err := json.Unmarshal(data, decoded); err != nil {
		return nil, fmt.Errorf("decoding %s event: %w", eventType, err)
	}

	evt, ok := decoded.(shared.DomainEvent)
	if !ok {
		return nil, fmt.Errorf("type registered for %s does not implement DomainEvent", eventType)
	}
	return evt, nil
}

// IsRegistered reports whether the event type has a prototype.
func (s *EventSerializer) IsRegistered(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.prototypes[eventType]
	return ok
}

// RegisteredTypes lists every known wire event type.
func (s *EventSerializer) RegisteredTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := make([]string, 0, len(s.prototypes))
	for eventType := range s.prototypes {
		types = append(types, eventType)
	}
	return types
}
