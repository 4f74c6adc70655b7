package commands_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dannymikay/agrimatch-go/internal/adapters/persistence"
	"github.com/dannymikay/agrimatch-go/internal/application/payments"
	"github.com/dannymikay/agrimatch-go/internal/application/verify/commands"
	"github.com/dannymikay/agrimatch-go/internal/domain/escrow"
	"github.com/dannymikay/agrimatch-go/internal/domain/order"
	"github.com/dannymikay/agrimatch-go/internal/domain/party"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
	"github.com/dannymikay/agrimatch-go/test/helpers"
)

// heldEscrow persists a FUNDS_HELD demo escrow for the order
func heldEscrow(t *testing.T, db *gorm.DB, orderID uuid.UUID, totalCents int64, clock shared.Clock) *escrow.Escrow {
	t.Helper()
	e, err := escrow.NewEscrow(orderID, totalCents, clock)
	require.NoError(t, err)
	e.PaymentIntentID = escrow.DemoIntentPrefix + e.ID.String()
	e.MarkFundsHeld(clock.Now())
	require.NoError(t, persistence.NewGormEscrowRepository(db).Create(context.Background(), e))
	return e
}

func TestVerifyPickup_ReleasesTrancheAndRefreshesHeartbeat(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	orders := persistence.NewGormOrderRepository(db)
	assignments := persistence.NewGormAssignmentRepository(db)
	escrows := persistence.NewGormEscrowRepository(db)
	tx := persistence.NewGormTxManager(db)
	pub := &helpers.RecordingPublisher{}
	clock := shared.NewMockClock(helpers.FixedTime)
	escrowSvc := payments.NewEscrowService(escrows, nil, clock, true)

	farmer := helpers.NewFarmer(t, db, -1.2921, 36.8219)
	buyer := helpers.NewBuyer(t, db, -1.0333, 37.0693)
	o := helpers.NewInTransitOrder(t, db, farmer.ID, buyer.ID, 300, 1.90)

	rawToken, tokenHash, err := order.MintQRToken()
	require.NoError(t, err)
	o.PickupQRHash = tokenHash
	require.NoError(t, orders.Save(context.Background(), o))

	heldEscrow(t, db, o.ID, 57_000, clock)

	middleman := helpers.NewMiddleman(t, db, -1.28, 36.83, party.TruckDryVan, 1000)
	a := acceptedAssignment(t, db, o.ID, middleman.ID, clock)

	// Tracker went quiet at the farm three hours ago, alarm already fired
	stale := helpers.FixedTime.Add(-3 * time.Hour)
	a.LastGPSPingAt = &stale
	a.GPSAlertSent = true
	require.NoError(t, assignments.Save(context.Background(), a))

	handler := commands.NewVerifyPickupHandler(orders, assignments,
		persistence.NewGormFarmerRepository(db), escrowSvc,
		persistence.NewGormAuditRepository(db), tx, pub, clock)

	// Act
	resp, err := handler.Handle(context.Background(), &commands.VerifyPickupCommand{
		OrderID:     o.ID,
		MiddlemanID: middleman.ID,
		QRToken:     rawToken,
	})

	// Assert: 20% tranche released
	require.NoError(t, err)
	released := resp.(*commands.VerifyPickupResponse).Escrow
	assert.Equal(t, escrow.StatusPickedUp, released.Status)
	assert.Equal(t, int64(11_400), released.FarmerReleasedCents)

	// The scan stamps a fresh heartbeat and re-arms the silence alarm
	refreshed, err := assignments.FindByID(context.Background(), a.ID)
	require.NoError(t, err)
	require.NotNil(t, refreshed.LastGPSPingAt)
	assert.Equal(t, clock.Now(), refreshed.LastGPSPingAt.UTC())
	assert.False(t, refreshed.GPSAlertSent)
}

func TestVerifyPickup_WrongTokenReleasesNothing(t *testing.T) {
	db := helpers.NewTestDB(t)
	orders := persistence.NewGormOrderRepository(db)
	assignments := persistence.NewGormAssignmentRepository(db)
	escrows := persistence.NewGormEscrowRepository(db)
	tx := persistence.NewGormTxManager(db)
	clock := shared.NewMockClock(helpers.FixedTime)
	escrowSvc := payments.NewEscrowService(escrows, nil, clock, true)

	farmer := helpers.NewFarmer(t, db, -1.2921, 36.8219)
	buyer := helpers.NewBuyer(t, db, -1.0333, 37.0693)
	o := helpers.NewInTransitOrder(t, db, farmer.ID, buyer.ID, 300, 1.90)

	_, tokenHash, err := order.MintQRToken()
	require.NoError(t, err)
	o.PickupQRHash = tokenHash
	require.NoError(t, orders.Save(context.Background(), o))

	heldEscrow(t, db, o.ID, 57_000, clock)

	middleman := helpers.NewMiddleman(t, db, -1.28, 36.83, party.TruckDryVan, 1000)
	acceptedAssignment(t, db, o.ID, middleman.ID, clock)

	handler := commands.NewVerifyPickupHandler(orders, assignments,
		persistence.NewGormFarmerRepository(db), escrowSvc,
		persistence.NewGormAuditRepository(db), tx, &helpers.RecordingPublisher{}, clock)

	_, err = handler.Handle(context.Background(), &commands.VerifyPickupCommand{
		OrderID:     o.ID,
		MiddlemanID: middleman.ID,
		QRToken:     "not-the-token",
	})

	var invalidToken *shared.InvalidTokenError
	require.ErrorAs(t, err, &invalidToken)

	e, err := escrows.FindByOrderID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusFundsHeld, e.Status)
	assert.Zero(t, e.FarmerReleasedCents)
}
