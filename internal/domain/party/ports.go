package party

import (
	"context"

	"github.com/google/uuid"
)

// FarmerRepository defines farmer persistence operations
type FarmerRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Farmer, error)
	Save(ctx context.Context, f *Farmer) error
	Create(ctx context.Context, f *Farmer) error
}

// BuyerRepository defines buyer persistence operations
type BuyerRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Buyer, error)
	Save(ctx context.Context, b *Buyer) error
	Create(ctx context.Context, b *Buyer) error
}

// MiddlemanRepository defines middleman persistence operations
type MiddlemanRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Middleman, error)
	Save(ctx context.Context, m *Middleman) error
	Create(ctx context.Context, m *Middleman) error

	// UpdateLocation persists a GPS fix on the middleman row.
	UpdateLocation(ctx context.Context, id uuid.UUID, lat, lon float64) error
}
