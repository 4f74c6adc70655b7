package escrow

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
)

// Status is the escrow lifecycle state. CANCELLED is reachable from any
// non-terminal state.
type Status string

const (
	StatusWaitingFunds Status = "WAITING_FUNDS"
	StatusFundsHeld    Status = "FUNDS_HELD"
	StatusPickedUp     Status = "PICKED_UP"
	StatusDelivered    Status = "DELIVERED"
	StatusCancelled    Status = "CANCELLED"
)

// DemoIntentPrefix marks processor handles fabricated in demo mode; no real
// processor call is ever made for these.
const DemoIntentPrefix = "pi_demo_"

// Escrow holds the buyer's funds for one order and releases them in tranches:
// 20% to the farmer on pickup, 60% farmer + 20% middleman on delivery, and a
// full refund of the unreleased balance on cancel. All amounts are integer
// minor-currency cents; split residue (at most 2 cents) stays in escrow.
type Escrow struct {
	ID      uuid.UUID
	OrderID uuid.UUID

	TotalAmountCents       int64
	FarmerReleasedCents    int64
	MiddlemanReleasedCents int64
	RefundedCents          int64

	Status Status

	PaymentIntentID        string
	TransferFarmerPickupID string
	TransferFarmerFinalID  string
	TransferMiddlemanID    string

	FundsHeldAt *time.Time
	PickedUpAt  *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewEscrow creates a WAITING_FUNDS escrow for an order
func NewEscrow(orderID uuid.UUID, totalAmountCents int64, clock shared.Clock) (*Escrow, error) {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	if totalAmountCents <= 0 {
		return nil, shared.NewValidationError("total_amount_cents", "must be positive")
	}
	now := clock.Now()
	return &Escrow{
		ID:               uuid.New(),
		OrderID:          orderID,
		TotalAmountCents: totalAmountCents,
		Status:           StatusWaitingFunds,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// Tranche math: floor division on integer cents.

// PickupTrancheCents is the 20% released to the farmer at pickup
func (e *Escrow) PickupTrancheCents() int64 {
	return e.TotalAmountCents * 20 / 100
}

// DeliveryFarmerTrancheCents is the 60% released to the farmer at delivery
func (e *Escrow) DeliveryFarmerTrancheCents() int64 {
	return e.TotalAmountCents * 60 / 100
}

// DeliveryMiddlemanTrancheCents is the 20% released to the middleman at delivery
func (e *Escrow) DeliveryMiddlemanTrancheCents() int64 {
	return e.TotalAmountCents * 20 / 100
}

// ReleasedCents is the sum of all outbound tranches so far
func (e *Escrow) ReleasedCents() int64 {
	return e.FarmerReleasedCents + e.MiddlemanReleasedCents
}

// IsDemoIntent reports whether this escrow uses a fabricated demo handle
func (e *Escrow) IsDemoIntent() bool {
	return strings.HasPrefix(e.PaymentIntentID, DemoIntentPrefix)
}

// MarkFundsHeld advances WAITING_FUNDS → FUNDS_HELD
func (e *Escrow) MarkFundsHeld(now time.Time) {
	e.Status = StatusFundsHeld
	e.FundsHeldAt = &now
	e.UpdatedAt = now
}

// MarkPickedUp records the pickup tranche and advances FUNDS_HELD → PICKED_UP
func (e *Escrow) MarkPickedUp(releasedCents int64, now time.Time) {
	e.FarmerReleasedCents += releasedCents
	e.Status = StatusPickedUp
	e.PickedUpAt = &now
	e.UpdatedAt = now
}

// MarkDelivered records the delivery tranches and advances PICKED_UP → DELIVERED
func (e *Escrow) MarkDelivered(farmerCents, middlemanCents int64, now time.Time) {
	e.FarmerReleasedCents += farmerCents
	e.MiddlemanReleasedCents += middlemanCents
	e.Status = StatusDelivered
	e.DeliveredAt = &now
	e.UpdatedAt = now
}

// MarkCancelled refunds the unreleased balance and advances to CANCELLED.
// After this, refunded + farmer_released = total.
func (e *Escrow) MarkCancelled(now time.Time) {
	e.RefundedCents = e.TotalAmountCents - e.FarmerReleasedCents
	e.Status = StatusCancelled
	e.CancelledAt = &now
	e.UpdatedAt = now
}
