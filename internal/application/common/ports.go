package common

import (
	"context"

	"github.com/google/uuid"

	"github.com/dannymikay/agrimatch-go/internal/events"
)

// TxManager runs a function inside one database transaction. Repositories
// resolve the transaction handle from the context; a nested call joins the
// outer transaction.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Publisher fans events out to realtime subscribers. Handlers buffer events
// during the transaction and publish only after commit.
type Publisher interface {
	Broadcast(orderID uuid.UUID, ev events.Event)
	NotifyMiddleman(middlemanID uuid.UUID, ev events.Event)
}

// Outbox collects events during a handler run for post-commit publishing
type Outbox struct {
	room      []roomEvent
	middleman []middlemanEvent
}

type roomEvent struct {
	orderID uuid.UUID
	ev      events.Event
}

type middlemanEvent struct {
	middlemanID uuid.UUID
	ev          events.Event
}

// Broadcast queues an order-room event
func (o *Outbox) Broadcast(orderID uuid.UUID, ev events.Event) {
	o.room = append(o.room, roomEvent{orderID: orderID, ev: ev})
}

// NotifyMiddleman queues a middleman-stream event
func (o *Outbox) NotifyMiddleman(middlemanID uuid.UUID, ev events.Event) {
	o.middleman = append(o.middleman, middlemanEvent{middlemanID: middlemanID, ev: ev})
}

// Flush publishes every queued event to the publisher and clears the outbox
func (o *Outbox) Flush(pub Publisher) {
	for _, re := range o.room {
		pub.Broadcast(re.orderID, re.ev)
	}
	for _, me := range o.middleman {
		pub.NotifyMiddleman(me.middlemanID, me.ev)
	}
	o.room = nil
	o.middleman = nil
}
