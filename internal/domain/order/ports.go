package order

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows marketplace listing queries
type ListFilter struct {
	Status   *Status
	CropType string
	FarmerID *uuid.UUID
	Limit    int
	Offset   int
}

// Repository defines order persistence operations. ForUpdate variants acquire
// a row-level exclusive lock and must run inside a transaction.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Order, error)
	List(ctx context.Context, filter ListFilter) ([]*Order, error)
	Save(ctx context.Context, o *Order) error
	Create(ctx context.Context, o *Order) error
	Delete(ctx context.Context, id uuid.UUID) error

	// FindExpiredLogisticsSearch selects orders stuck in LOGISTICS_SEARCH past
	// the cutoff, skipping rows locked by concurrent workers.
	FindExpiredLogisticsSearch(ctx context.Context, cutoff time.Time) ([]*Order, error)
}

// BidRepository defines bid persistence operations
type BidRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Bid, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Bid, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*Bid, error)
	FindAcceptedByOrder(ctx context.Context, orderID uuid.UUID) (*Bid, error)
	Create(ctx context.Context, b *Bid) error
	Save(ctx context.Context, b *Bid) error

	// RejectOtherPending marks every other PENDING bid on the order REJECTED,
	// returning the number of bids rejected.
	RejectOtherPending(ctx context.Context, orderID, acceptedBidID uuid.UUID) (int64, error)
}

// ImageGrader assigns a quality grade to a crop photo. Implementations
// degrade to a deterministic heuristic when no model endpoint is configured.
type ImageGrader interface {
	Grade(ctx context.Context, imageURL string) (grade string, confidence float64, err error)
}

// MarketPriceOracle is a best-effort price hint source; nil means unavailable
type MarketPriceOracle interface {
	FetchMarketPrice(ctx context.Context, cropType, region string) *float64
}
