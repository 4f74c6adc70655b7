package commands_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dannymikay/agrimatch-go/internal/adapters/persistence"
	"github.com/dannymikay/agrimatch-go/internal/application/payments"
	"github.com/dannymikay/agrimatch-go/internal/application/verify/commands"
	"github.com/dannymikay/agrimatch-go/internal/domain/escrow"
	"github.com/dannymikay/agrimatch-go/internal/domain/logistics"
	"github.com/dannymikay/agrimatch-go/internal/domain/order"
	"github.com/dannymikay/agrimatch-go/internal/domain/party"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
	"github.com/dannymikay/agrimatch-go/internal/events"
	"github.com/dannymikay/agrimatch-go/test/helpers"
)

func TestVerifyDelivery_SettlesAtTheDoor(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	orders := persistence.NewGormOrderRepository(db)
	assignments := persistence.NewGormAssignmentRepository(db)
	escrows := persistence.NewGormEscrowRepository(db)
	middlemen := persistence.NewGormMiddlemanRepository(db)
	tx := persistence.NewGormTxManager(db)
	pub := &helpers.RecordingPublisher{}
	clock := shared.NewMockClock(helpers.FixedTime)
	escrowSvc := payments.NewEscrowService(escrows, nil, clock, true)

	farmer := helpers.NewFarmer(t, db, -1.2921, 36.8219)
	buyer := helpers.NewBuyer(t, db, -1.0333, 37.0693)
	o := helpers.NewInTransitOrder(t, db, farmer.ID, buyer.ID, 300, 1.90)

	rawToken, tokenHash, err := order.MintQRToken()
	require.NoError(t, err)
	o.DeliveryQRHash = tokenHash
	require.NoError(t, orders.Save(context.Background(), o))

	e := heldEscrow(t, db, o.ID, 57_000, clock)
	e.MarkPickedUp(e.PickupTrancheCents(), clock.Now())
	require.NoError(t, escrows.Save(context.Background(), e))

	middleman := helpers.NewMiddleman(t, db, -1.28, 36.83, party.TruckDryVan, 1000)
	acceptedAssignment(t, db, o.ID, middleman.ID, clock)

	handler := commands.NewVerifyDeliveryHandler(orders, assignments,
		persistence.NewGormFarmerRepository(db), persistence.NewGormBuyerRepository(db),
		middlemen, escrowSvc, persistence.NewGormAuditRepository(db), tx, pub, clock)

	// Act: scan right at the buyer's delivery point
	resp, err := handler.Handle(context.Background(), &commands.VerifyDeliveryCommand{
		OrderID:     o.ID,
		MiddlemanID: middleman.ID,
		QRToken:     rawToken,
		Latitude:    buyer.DeliveryLocation.Latitude,
		Longitude:   buyer.DeliveryLocation.Longitude,
	})

	// Assert
	require.NoError(t, err)
	settled := resp.(*commands.VerifyDeliveryResponse)
	assert.Equal(t, order.StatusSettled, settled.Order.Status)
	assert.Equal(t, escrow.StatusDelivered, settled.Escrow.Status)
	assert.Equal(t, int64(45_600), settled.Escrow.FarmerReleasedCents)
	assert.Equal(t, int64(11_400), settled.Escrow.MiddlemanReleasedCents)
	assert.True(t, settled.Proof.IsWithin)

	// The truck is free again
	m, err := middlemen.FindByID(context.Background(), middleman.ID)
	require.NoError(t, err)
	assert.True(t, m.IsAvailable)
	assert.Equal(t, 1, m.TotalDeliveries)

	types := pub.BroadcastTypes()
	assert.Contains(t, types, events.TypeFSMTransition)
	assert.Contains(t, types, events.TypeEscrowUpdate)
}

func TestVerifyDelivery_ValidTokenSettlesFarFromBuyer(t *testing.T) {
	// Arrange: the scan position is back at the farm, ~35 km from the buyer
	db := helpers.NewTestDB(t)
	orders := persistence.NewGormOrderRepository(db)
	assignments := persistence.NewGormAssignmentRepository(db)
	escrows := persistence.NewGormEscrowRepository(db)
	audits := persistence.NewGormAuditRepository(db)
	tx := persistence.NewGormTxManager(db)
	clock := shared.NewMockClock(helpers.FixedTime)
	escrowSvc := payments.NewEscrowService(escrows, nil, clock, true)

	farmer := helpers.NewFarmer(t, db, -1.2921, 36.8219)
	buyer := helpers.NewBuyer(t, db, -1.0333, 37.0693)
	o := helpers.NewInTransitOrder(t, db, farmer.ID, buyer.ID, 300, 1.90)

	rawToken, tokenHash, err := order.MintQRToken()
	require.NoError(t, err)
	o.DeliveryQRHash = tokenHash
	require.NoError(t, orders.Save(context.Background(), o))

	e := heldEscrow(t, db, o.ID, 57_000, clock)
	e.MarkPickedUp(e.PickupTrancheCents(), clock.Now())
	require.NoError(t, escrows.Save(context.Background(), e))

	middleman := helpers.NewMiddleman(t, db, -1.28, 36.83, party.TruckDryVan, 1000)
	acceptedAssignment(t, db, o.ID, middleman.ID, clock)

	handler := commands.NewVerifyDeliveryHandler(orders, assignments,
		persistence.NewGormFarmerRepository(db), persistence.NewGormBuyerRepository(db),
		persistence.NewGormMiddlemanRepository(db), escrowSvc, audits, tx,
		&helpers.RecordingPublisher{}, clock)

	// Act
	resp, err := handler.Handle(context.Background(), &commands.VerifyDeliveryCommand{
		OrderID:     o.ID,
		MiddlemanID: middleman.ID,
		QRToken:     rawToken,
		Latitude:    -1.2921,
		Longitude:   36.8219,
	})

	// Assert: the token alone settles; the position is evidence, not a gate
	require.NoError(t, err)
	settled := resp.(*commands.VerifyDeliveryResponse)
	assert.Equal(t, order.StatusSettled, settled.Order.Status)
	assert.Equal(t, escrow.StatusDelivered, settled.Escrow.Status)
	assert.Equal(t, int64(45_600), settled.Escrow.FarmerReleasedCents)
	assert.Equal(t, int64(11_400), settled.Escrow.MiddlemanReleasedCents)

	assert.False(t, settled.Proof.IsWithin)
	assert.Greater(t, settled.Proof.DistanceM, logistics.DefaultProximityThresholdM)
	assert.NotEmpty(t, settled.Proof.Hash)

	trail, err := audits.ListByOrder(context.Background(), o.ID)
	require.NoError(t, err)
	require.NotEmpty(t, trail)
	last := trail[len(trail)-1]
	assert.Equal(t, "delivery_verified", last.Reason)
	assert.Equal(t, false, last.ExtraData["within_threshold"])
}

func TestVerifyDelivery_WrongTokenLeavesEscrowAlone(t *testing.T) {
	db := helpers.NewTestDB(t)
	orders := persistence.NewGormOrderRepository(db)
	escrows := persistence.NewGormEscrowRepository(db)
	clock := shared.NewMockClock(helpers.FixedTime)
	escrowSvc := payments.NewEscrowService(escrows, nil, clock, true)

	farmer := helpers.NewFarmer(t, db, -1.2921, 36.8219)
	buyer := helpers.NewBuyer(t, db, -1.0333, 37.0693)
	o := helpers.NewInTransitOrder(t, db, farmer.ID, buyer.ID, 300, 1.90)

	_, tokenHash, err := order.MintQRToken()
	require.NoError(t, err)
	o.DeliveryQRHash = tokenHash
	require.NoError(t, orders.Save(context.Background(), o))

	e := heldEscrow(t, db, o.ID, 57_000, clock)
	e.MarkPickedUp(e.PickupTrancheCents(), clock.Now())
	require.NoError(t, escrows.Save(context.Background(), e))

	middleman := helpers.NewMiddleman(t, db, -1.28, 36.83, party.TruckDryVan, 1000)
	acceptedAssignment(t, db, o.ID, middleman.ID, clock)

	handler := commands.NewVerifyDeliveryHandler(orders,
		persistence.NewGormAssignmentRepository(db),
		persistence.NewGormFarmerRepository(db), persistence.NewGormBuyerRepository(db),
		persistence.NewGormMiddlemanRepository(db), escrowSvc,
		persistence.NewGormAuditRepository(db),
		persistence.NewGormTxManager(db), &helpers.RecordingPublisher{}, clock)

	_, err = handler.Handle(context.Background(), &commands.VerifyDeliveryCommand{
		OrderID:     o.ID,
		MiddlemanID: middleman.ID,
		QRToken:     "not-the-token",
		Latitude:    buyer.DeliveryLocation.Latitude,
		Longitude:   buyer.DeliveryLocation.Longitude,
	})

	var invalidToken *shared.InvalidTokenError
	require.ErrorAs(t, err, &invalidToken)

	stored, err := escrows.FindByOrderID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusPickedUp, stored.Status)
	assert.Equal(t, int64(11_400), stored.FarmerReleasedCents)
	assert.Zero(t, stored.MiddlemanReleasedCents)
}
