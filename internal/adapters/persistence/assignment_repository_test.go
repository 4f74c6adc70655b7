package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dannymikay/agrimatch-go/internal/adapters/persistence"
	"github.com/dannymikay/agrimatch-go/internal/domain/logistics"
	"github.com/dannymikay/agrimatch-go/internal/domain/order"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
	"github.com/dannymikay/agrimatch-go/test/helpers"
)

func TestAssignmentRepository_CreateAndFindAccepted(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormAssignmentRepository(db)
	orderID := uuid.New()
	middlemanID := uuid.New()

	clock := shared.NewMockClock(helpers.FixedTime)
	a := logistics.NewAssignment(orderID, middlemanID, nil, clock)
	require.NoError(t, repo.Create(context.Background(), a))

	// OFFERED assignments are not "accepted"
	_, err := repo.FindAcceptedByOrder(context.Background(), orderID)
	var notFound *shared.NotFoundError
	require.ErrorAs(t, err, &notFound)

	require.NoError(t, a.Accept(helpers.FixedTime))
	require.NoError(t, repo.Save(context.Background(), a))

	found, err := repo.FindAcceptedByOrder(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, found.ID)
	assert.Equal(t, middlemanID, found.MiddlemanID)
	require.NotNil(t, found.LastGPSPingAt)
}

func TestAssignmentRepository_ListByMiddleman(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormAssignmentRepository(db)
	middlemanID := uuid.New()

	clock := shared.NewMockClock(helpers.FixedTime)
	require.NoError(t, repo.Create(context.Background(), logistics.NewAssignment(uuid.New(), middlemanID, nil, clock)))
	require.NoError(t, repo.Create(context.Background(), logistics.NewAssignment(uuid.New(), middlemanID, nil, clock)))
	require.NoError(t, repo.Create(context.Background(), logistics.NewAssignment(uuid.New(), uuid.New(), nil, clock)))

	mine, err := repo.ListByMiddleman(context.Background(), middlemanID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestAssignmentRepository_FindStaleHeartbeats(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormAssignmentRepository(db)
	orders := persistence.NewGormOrderRepository(db)
	now := helpers.FixedTime
	clock := shared.NewMockClock(now)

	farmer := helpers.NewFarmer(t, db, -1.2921, 36.8219)
	buyer := helpers.NewBuyer(t, db, -1.0333, 37.0693)

	makeAccepted := func(lastPing time.Time, alertSent bool) (*order.Order, *logistics.Assignment) {
		o := helpers.NewInTransitOrder(t, db, farmer.ID, buyer.ID, 300, 1.90)
		a := logistics.NewAssignment(o.ID, uuid.New(), nil, clock)
		require.NoError(t, a.Accept(lastPing))
		a.GPSAlertSent = alertSent
		require.NoError(t, repo.Create(context.Background(), a))
		return o, a
	}

	_, silent := makeAccepted(now.Add(-3*time.Hour), false)
	makeAccepted(now.Add(-10*time.Minute), false) // recent ping
	makeAccepted(now.Add(-3*time.Hour), true)     // already alerted

	offeredOrder := helpers.NewInTransitOrder(t, db, farmer.ID, buyer.ID, 300, 1.90)
	offered := logistics.NewAssignment(offeredOrder.ID, uuid.New(), nil, clock)
	require.NoError(t, repo.Create(context.Background(), offered)) // never accepted

	// Assignments stay ACCEPTED after settlement; the sweep must skip them
	settledOrder, _ := makeAccepted(now.Add(-3*time.Hour), false)
	settledOrder.Status = order.StatusSettled
	require.NoError(t, orders.Save(context.Background(), settledOrder))

	stale, err := repo.FindStaleHeartbeats(context.Background(), now.Add(-2*time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, silent.ID, stale[0].ID)
}
