package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dannymikay/agrimatch-go/internal/adapters/persistence"
	"github.com/dannymikay/agrimatch-go/internal/domain/order"
	"github.com/dannymikay/agrimatch-go/internal/domain/party"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
)

// FixedTime is the reference instant mock clocks start from in tests
var FixedTime = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

// NewFarmer persists a farmer at the given location and returns it
func NewFarmer(t *testing.T, db *gorm.DB, lat, lon float64) *party.Farmer {
	t.Helper()

	loc := mustPoint(t, lat, lon)
	f := &party.Farmer{
		ID:              uuid.New(),
		Name:            "Test Farmer",
		Phone:           "+254700000001",
		Location:        &loc,
		StripeAccountID: "acct_farmer_test",
		CreatedAt:       FixedTime,
		UpdatedAt:       FixedTime,
	}
	if err := persistence.NewGormFarmerRepository(db).Create(context.Background(), f); err != nil {
		t.Fatalf("failed to create farmer: %v", err)
	}
	return f
}

// NewBuyer persists a buyer with the given delivery location and returns it
func NewBuyer(t *testing.T, db *gorm.DB, lat, lon float64) *party.Buyer {
	t.Helper()

	loc := mustPoint(t, lat, lon)
	b := &party.Buyer{
		ID:               uuid.New(),
		Name:             "Test Buyer",
		Phone:            "+254700000002",
		DeliveryLocation: &loc,
		StripeCustomerID: "cus_buyer_test",
		CreatedAt:        FixedTime,
		UpdatedAt:        FixedTime,
	}
	if err := persistence.NewGormBuyerRepository(db).Create(context.Background(), b); err != nil {
		t.Fatalf("failed to create buyer: %v", err)
	}
	return b
}

// NewMiddleman persists an available middleman and returns it
func NewMiddleman(t *testing.T, db *gorm.DB, lat, lon float64, truck party.TruckType, capacityKg float64) *party.Middleman {
	t.Helper()

	loc := mustPoint(t, lat, lon)
	m := &party.Middleman{
		ID:              uuid.New(),
		Name:            "Test Middleman",
		Phone:           "+254700000003",
		CurrentLocation: &loc,
		TruckCapacityKg: capacityKg,
		TruckPlate:      "KDA 123X",
		TruckType:       truck,
		ServiceRadiusKm: 100,
		OnTimeRating:    4.5,
		IsAvailable:     true,
		StripeAccountID: "acct_middleman_test",
		CreatedAt:       FixedTime,
		UpdatedAt:       FixedTime,
	}
	if err := persistence.NewGormMiddlemanRepository(db).Create(context.Background(), m); err != nil {
		t.Fatalf("failed to create middleman: %v", err)
	}
	return m
}

// NewListedOrder persists a fresh LISTED order for the farmer and returns it
func NewListedOrder(t *testing.T, db *gorm.DB, farmerID uuid.UUID, volumeKg, pricePerKg float64) *order.Order {
	t.Helper()

	clock := shared.NewMockClock(FixedTime)
	o, err := order.NewOrder(farmerID, "tomato", "roma", volumeKg, pricePerKg, false, nil, clock)
	if err != nil {
		t.Fatalf("failed to build order: %v", err)
	}
	if err := persistence.NewGormOrderRepository(db).Create(context.Background(), o); err != nil {
		t.Fatalf("failed to create order: %v", err)
	}
	return o
}

// NewInTransitOrder persists an order already moved to IN_TRANSIT with the
// buyer attached. Callers needing QR hashes or an escrow set those up
// themselves.
func NewInTransitOrder(t *testing.T, db *gorm.DB, farmerID, buyerID uuid.UUID, volumeKg, pricePerKg float64) *order.Order {
	t.Helper()

	o := NewListedOrder(t, db, farmerID, volumeKg, pricePerKg)
	o.BuyerID = &buyerID
	o.AcceptedPricePerKg = &pricePerKg
	o.Status = order.StatusInTransit
	if err := persistence.NewGormOrderRepository(db).Save(context.Background(), o); err != nil {
		t.Fatalf("failed to move order in transit: %v", err)
	}
	return o
}

func mustPoint(t *testing.T, lat, lon float64) shared.GeoPoint {
	t.Helper()

	p, err := shared.NewGeoPoint(lat, lon)
	if err != nil {
		t.Fatalf("bad fixture coordinates: %v", err)
	}
	return p
}
