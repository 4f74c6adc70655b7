// Package party holds the marketplace participants. Participants are
// referenced by id from orders, bids and assignments; they own nothing.
package party

import (
	"time"

	"github.com/google/uuid"

	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
)

// Role names used in auth claims and audit actor descriptors
const (
	RoleFarmer    = "farmer"
	RoleBuyer     = "buyer"
	RoleMiddleman = "middleman"
)

// TruckType classifies a middleman's vehicle. Only REEFER satisfies cold chain.
type TruckType string

const (
	TruckReefer     TruckType = "REEFER"
	TruckVentilated TruckType = "VENTILATED"
	TruckInsulated  TruckType = "INSULATED"
	TruckDryVan     TruckType = "DRY_VAN"
)

// SatisfiesColdChain reports whether the truck can carry cold-chain produce
func (t TruckType) SatisfiesColdChain() bool {
	return t == TruckReefer
}

// Farmer lists produce and receives 80% of the escrow total across tranches
type Farmer struct {
	ID       uuid.UUID
	Name     string
	Phone    string
	Email    string
	Location *shared.GeoPoint

	StripeAccountID   string
	TotalTransactions int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Buyer bids on listings and funds the escrow
type Buyer struct {
	ID               uuid.UUID
	Name             string
	Phone            string
	Email            string
	DeliveryLocation *shared.GeoPoint

	StripeCustomerID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Middleman is the trucker side of the marketplace
type Middleman struct {
	ID              uuid.UUID
	Name            string
	Phone           string
	Email           string
	CurrentLocation *shared.GeoPoint

	TruckCapacityKg float64
	TruckPlate      string
	TruckType       TruckType
	ServiceRadiusKm float64

	OnTimeRating    float64
	TotalDeliveries int
	IsAvailable     bool

	StripeAccountID string

	CreatedAt time.Time
	UpdatedAt time.Time
}
