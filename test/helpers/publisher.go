package helpers

import (
	"sync"

	"github.com/google/uuid"

	"github.com/dannymikay/agrimatch-go/internal/events"
)

// RecordingPublisher captures published events for assertions
type RecordingPublisher struct {
	mu         sync.Mutex
	Broadcasts []PublishedEvent
	Notified   []PublishedEvent
}

// PublishedEvent pairs an event with its destination
type PublishedEvent struct {
	Target uuid.UUID
	Event  events.Event
}

// Broadcast records an order room event
func (p *RecordingPublisher) Broadcast(orderID uuid.UUID, ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Broadcasts = append(p.Broadcasts, PublishedEvent{Target: orderID, Event: ev})
}

// NotifyMiddleman records a middleman stream event
func (p *RecordingPublisher) NotifyMiddleman(middlemanID uuid.UUID, ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Notified = append(p.Notified, PublishedEvent{Target: middlemanID, Event: ev})
}

// BroadcastTypes lists the broadcast event types in order
func (p *RecordingPublisher) BroadcastTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.Broadcasts))
	for _, e := range p.Broadcasts {
		types = append(types, e.Event.Type)
	}
	return types
}
