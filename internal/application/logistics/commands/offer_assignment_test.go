package commands_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dannymikay/agrimatch-go/internal/adapters/persistence"
	"github.com/dannymikay/agrimatch-go/internal/application/logistics/commands"
	"github.com/dannymikay/agrimatch-go/internal/domain/logistics"
	"github.com/dannymikay/agrimatch-go/internal/domain/order"
	"github.com/dannymikay/agrimatch-go/internal/domain/party"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
	"github.com/dannymikay/agrimatch-go/test/helpers"
)

// searchingOrder persists an order sitting in LOGISTICS_SEARCH
func searchingOrder(t *testing.T, db *gorm.DB, farmerID, buyerID uuid.UUID) *order.Order {
	t.Helper()
	o := helpers.NewListedOrder(t, db, farmerID, 500, 1.80)
	o.BuyerID = &buyerID
	o.Status = order.StatusLogisticsSearch
	require.NoError(t, persistence.NewGormOrderRepository(db).Save(context.Background(), o))
	return o
}

func TestOfferAssignment_SecondOfferOnLiveAssignmentIsRejected(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(helpers.FixedTime)
	pub := &helpers.RecordingPublisher{}

	farmer := helpers.NewFarmer(t, db, -1.2921, 36.8219)
	buyer := helpers.NewBuyer(t, db, -1.0333, 37.0693)
	o := searchingOrder(t, db, farmer.ID, buyer.ID)

	first := helpers.NewMiddleman(t, db, -1.28, 36.83, party.TruckDryVan, 1000)
	second := helpers.NewMiddleman(t, db, -1.25, 36.85, party.TruckDryVan, 1200)

	handler := commands.NewOfferAssignmentHandler(
		persistence.NewGormOrderRepository(db),
		persistence.NewGormAssignmentRepository(db),
		persistence.NewGormMiddlemanRepository(db),
		persistence.NewGormTxManager(db), pub, clock)

	_, err := handler.Handle(context.Background(), &commands.OfferAssignmentCommand{
		OrderID: o.ID, MiddlemanID: first.ID,
	})
	require.NoError(t, err)

	// Act: the offer to the first middleman is still open
	_, err = handler.Handle(context.Background(), &commands.OfferAssignmentCommand{
		OrderID: o.ID, MiddlemanID: second.ID,
	})

	// Assert
	var invalid *shared.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
}

func TestOfferAssignment_RejectedAssignmentIsReofferedInPlace(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	assignments := persistence.NewGormAssignmentRepository(db)
	clock := shared.NewMockClock(helpers.FixedTime)
	pub := &helpers.RecordingPublisher{}

	farmer := helpers.NewFarmer(t, db, -1.2921, 36.8219)
	buyer := helpers.NewBuyer(t, db, -1.0333, 37.0693)
	o := searchingOrder(t, db, farmer.ID, buyer.ID)

	first := helpers.NewMiddleman(t, db, -1.28, 36.83, party.TruckDryVan, 1000)
	second := helpers.NewMiddleman(t, db, -1.25, 36.85, party.TruckDryVan, 1200)

	handler := commands.NewOfferAssignmentHandler(
		persistence.NewGormOrderRepository(db), assignments,
		persistence.NewGormMiddlemanRepository(db),
		persistence.NewGormTxManager(db), pub, clock)

	resp, err := handler.Handle(context.Background(), &commands.OfferAssignmentCommand{
		OrderID: o.ID, MiddlemanID: first.ID,
	})
	require.NoError(t, err)
	offered := resp.(*commands.OfferAssignmentResponse).Assignment

	require.NoError(t, offered.Reject(clock.Now()))
	require.NoError(t, assignments.Save(context.Background(), offered))

	// Act
	km := 42.0
	resp, err = handler.Handle(context.Background(), &commands.OfferAssignmentCommand{
		OrderID: o.ID, MiddlemanID: second.ID, EstimatedDistanceKm: &km,
	})

	// Assert: same row, new middleman, clean heartbeat state
	require.NoError(t, err)
	reoffered := resp.(*commands.OfferAssignmentResponse).Assignment
	assert.Equal(t, offered.ID, reoffered.ID)
	assert.Equal(t, second.ID, reoffered.MiddlemanID)
	assert.Equal(t, logistics.AssignmentOffered, reoffered.Status)
	assert.Nil(t, reoffered.LastGPSPingAt)
	assert.Nil(t, reoffered.AcceptedAt)

	stored, err := assignments.FindByID(context.Background(), offered.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, stored.MiddlemanID)
}
