package monitor_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dannymikay/agrimatch-go/internal/adapters/persistence"
	"github.com/dannymikay/agrimatch-go/internal/application/monitor"
	"github.com/dannymikay/agrimatch-go/internal/domain/logistics"
	"github.com/dannymikay/agrimatch-go/internal/domain/order"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
	"github.com/dannymikay/agrimatch-go/internal/events"
	"github.com/dannymikay/agrimatch-go/test/helpers"
)

func TestHeartbeatMonitor_FlagsSilentTrackersOnce(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	assignments := persistence.NewGormAssignmentRepository(db)
	tx := persistence.NewGormTxManager(db)
	pub := &helpers.RecordingPublisher{}
	clock := shared.NewMockClock(helpers.FixedTime)

	farmer := helpers.NewFarmer(t, db, -1.2921, 36.8219)
	buyer := helpers.NewBuyer(t, db, -1.0333, 37.0693)

	silentOrder := helpers.NewInTransitOrder(t, db, farmer.ID, buyer.ID, 300, 1.90)
	silent := logistics.NewAssignment(silentOrder.ID, uuid.New(), nil, clock)
	require.NoError(t, silent.Accept(clock.Now()))
	require.NoError(t, assignments.Create(context.Background(), silent))

	chattyOrder := helpers.NewInTransitOrder(t, db, farmer.ID, buyer.ID, 300, 1.90)
	chatty := logistics.NewAssignment(chattyOrder.ID, uuid.New(), nil, clock)
	require.NoError(t, chatty.Accept(clock.Now()))
	require.NoError(t, assignments.Create(context.Background(), chatty))

	mon := monitor.NewHeartbeatMonitor(assignments, tx, pub, clock, nil)

	// Act: three hours of silence, but the chatty tracker pinged recently
	clock.Advance(3 * time.Hour)
	recent := clock.Now().Add(-10 * time.Minute)
	chatty.RecordHeartbeat(recent)
	require.NoError(t, assignments.Save(context.Background(), chatty))

	alerted, err := mon.Sweep(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, alerted)

	flagged, err := assignments.FindByID(context.Background(), silent.ID)
	require.NoError(t, err)
	assert.True(t, flagged.GPSAlertSent)

	require.Len(t, pub.Broadcasts, 1)
	ev := pub.Broadcasts[0]
	assert.Equal(t, silent.OrderID, ev.Target)
	assert.Equal(t, events.TypeGPSHeartbeatLost, ev.Event.Type)

	// One alert per silent period: the next sweep stays quiet
	again, err := mon.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again)
	assert.Len(t, pub.Broadcasts, 1)
}

func TestHeartbeatMonitor_AlertRearmsAfterNewPing(t *testing.T) {
	db := helpers.NewTestDB(t)
	assignments := persistence.NewGormAssignmentRepository(db)
	tx := persistence.NewGormTxManager(db)
	pub := &helpers.RecordingPublisher{}
	clock := shared.NewMockClock(helpers.FixedTime)

	farmer := helpers.NewFarmer(t, db, -1.2921, 36.8219)
	buyer := helpers.NewBuyer(t, db, -1.0333, 37.0693)
	o := helpers.NewInTransitOrder(t, db, farmer.ID, buyer.ID, 300, 1.90)

	a := logistics.NewAssignment(o.ID, uuid.New(), nil, clock)
	require.NoError(t, a.Accept(clock.Now()))
	require.NoError(t, assignments.Create(context.Background(), a))

	mon := monitor.NewHeartbeatMonitor(assignments, tx, pub, clock, nil)

	clock.Advance(3 * time.Hour)
	first, err := mon.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first)

	// Tracker comes back, then goes silent again
	a, err = assignments.FindByID(context.Background(), a.ID)
	require.NoError(t, err)
	a.RecordHeartbeat(clock.Now())
	require.NoError(t, assignments.Save(context.Background(), a))

	clock.Advance(3 * time.Hour)
	second, err := mon.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second)
	assert.Len(t, pub.Broadcasts, 2)
}

func TestHeartbeatMonitor_IgnoresSettledOrders(t *testing.T) {
	// Arrange: delivery completed, tracker switched off
	db := helpers.NewTestDB(t)
	assignments := persistence.NewGormAssignmentRepository(db)
	orders := persistence.NewGormOrderRepository(db)
	tx := persistence.NewGormTxManager(db)
	pub := &helpers.RecordingPublisher{}
	clock := shared.NewMockClock(helpers.FixedTime)

	farmer := helpers.NewFarmer(t, db, -1.2921, 36.8219)
	buyer := helpers.NewBuyer(t, db, -1.0333, 37.0693)
	o := helpers.NewInTransitOrder(t, db, farmer.ID, buyer.ID, 300, 1.90)

	a := logistics.NewAssignment(o.ID, uuid.New(), nil, clock)
	require.NoError(t, a.Accept(clock.Now()))
	require.NoError(t, assignments.Create(context.Background(), a))

	o.Status = order.StatusSettled
	require.NoError(t, orders.Save(context.Background(), o))

	mon := monitor.NewHeartbeatMonitor(assignments, tx, pub, clock, nil)

	// Act
	clock.Advance(3 * time.Hour)
	alerted, err := mon.Sweep(context.Background())

	// Assert: no alert for a delivery that already settled
	require.NoError(t, err)
	assert.Zero(t, alerted)
	assert.Empty(t, pub.Broadcasts)

	unflagged, err := assignments.FindByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.False(t, unflagged.GPSAlertSent)
}
