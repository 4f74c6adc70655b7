package escrow

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines escrow persistence operations. At most one escrow exists
// per order (unique order_id).
type Repository interface {
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*Escrow, error)
	FindByOrderIDForUpdate(ctx context.Context, orderID uuid.UUID) (*Escrow, error)
	FindByIntentIDForUpdate(ctx context.Context, intentID string) (*Escrow, error)
	Create(ctx context.Context, e *Escrow) error
	Save(ctx context.Context, e *Escrow) error
}

// IntentMetadata links a processor-side authorization back to our rows
type IntentMetadata struct {
	OrderID  uuid.UUID
	EscrowID uuid.UUID
}

// PaymentProcessor abstracts the external payment processor. The processor
// enforces idempotency by intent id; callers treat every call as retryable.
type PaymentProcessor interface {
	// CreateIntent opens a manual-capture authorization for the amount and
	// returns the intent handle plus a client-facing secret.
	CreateIntent(ctx context.Context, amountCents int64, meta IntentMetadata) (intentID, clientSecret string, err error)

	// CaptureIntent captures a previously authorized intent.
	CaptureIntent(ctx context.Context, intentID string) error

	// Transfer moves cents to a connected account, grouped by order.
	Transfer(ctx context.Context, amountCents int64, destinationAccount, transferGroup string, metadata map[string]string) (transferID string, err error)

	// CancelOrRefund cancels an uncaptured intent, or refunds a captured one.
	CancelOrRefund(ctx context.Context, intentID string) error
}

// ProcessedEventStore deduplicates webhook deliveries. MarkProcessed returns
// false when the event id was already recorded.
type ProcessedEventStore interface {
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
}
