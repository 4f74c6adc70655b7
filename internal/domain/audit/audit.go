// Package audit is the append-only trail of order lifecycle events. Entries
// are written in the same transaction as the mutation they describe and are
// never updated or deleted.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry records one transition or notable event on an order
type Entry struct {
	ID      uuid.UUID
	OrderID uuid.UUID

	FromStatus string
	ToStatus   string

	ActorType string
	ActorID   *uuid.UUID

	Reason    string
	ExtraData map[string]any

	CreatedAt time.Time
}

// NewEntry creates an audit entry stamped at now
func NewEntry(orderID uuid.UUID, fromStatus, toStatus, actorType string, actorID *uuid.UUID, reason string, extra map[string]any, now time.Time) *Entry {
	return &Entry{
		ID:         uuid.New(),
		OrderID:    orderID,
		FromStatus: fromStatus,
		ToStatus:   toStatus,
		ActorType:  actorType,
		ActorID:    actorID,
		Reason:     reason,
		ExtraData:  extra,
		CreatedAt:  now,
	}
}

// System actor types for entries not caused by a user request
const (
	ActorSystem  = "system"
	ActorMonitor = "monitor"
	ActorWebhook = "webhook"
)

// Repository defines the append-only audit store
type Repository interface {
	Append(ctx context.Context, e *Entry) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*Entry, error)
}
