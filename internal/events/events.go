package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Event types.
const (
	// LocationsReloaded fires after locations.yaml was applied to the store.
	LocationsReloaded = "locations.reloaded"
	// OverridesChanged fires after an override of one location was written.
	OverridesChanged = "overrides.changed"
)

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// LocationsPayload lists the locations an event concerns.
type LocationsPayload struct {
	LocationIDs []int64 `json:"location_ids"`
}

// NewLocationsEvent builds an event whose payload is a LocationsPayload.
func NewLocationsEvent(eventType string, ids ...int64) Event {
	payload, _ := json.Marshal(LocationsPayload{LocationIDs: ids})
	return Event{Type: eventType, Payload: payload, CreatedAt: time.Now()}
}

// Locations decodes a LocationsPayload.
func (e Event) Locations() ([]int64, error) {
	var p LocationsPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return p.LocationIDs, nil
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish runs every subscriber of the event type synchronously and
// returns their joined errors. A failing handler does not stop the others.
func (b *EventBus) Publish(event Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
