package order

import (
	"time"

	"github.com/google/uuid"

	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
)

// BidStatus is the bid lifecycle state
type BidStatus string

const (
	BidPending   BidStatus = "PENDING"
	BidAccepted  BidStatus = "ACCEPTED"
	BidRejected  BidStatus = "REJECTED"
	BidWithdrawn BidStatus = "WITHDRAWN"
)

// Bid is a buyer's offer on part of an order's volume. Acceptance, rejection
// and withdrawal are terminal.
type Bid struct {
	ID      uuid.UUID
	OrderID uuid.UUID
	BuyerID uuid.UUID

	PricePerKg float64
	VolumeKg   float64
	Status     BidStatus
	Message    string
	ExpiresAt  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBid creates a PENDING bid
func NewBid(orderID, buyerID uuid.UUID, pricePerKg, volumeKg float64, message string, clock shared.Clock) (*Bid, error) {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	if pricePerKg <= 0 {
		return nil, shared.NewValidationError("offered_price_per_kg", "must be positive")
	}
	if volumeKg <= 0 {
		return nil, shared.NewValidationError("volume_kg", "must be positive")
	}

	now := clock.Now()
	return &Bid{
		ID:         uuid.New(),
		OrderID:    orderID,
		BuyerID:    buyerID,
		PricePerKg: pricePerKg,
		VolumeKg:   volumeKg,
		Status:     BidPending,
		Message:    message,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// TotalCents computes the escrow total for this bid: round(volume × price × 100)
func (b *Bid) TotalCents() int64 {
	cents := b.VolumeKg * b.PricePerKg * 100
	return int64(cents + 0.5)
}

// IsPending reports whether the bid can still be actioned
func (b *Bid) IsPending() bool {
	return b.Status == BidPending
}
