package persistence_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dannymikay/agrimatch-go/internal/adapters/persistence"
	"github.com/dannymikay/agrimatch-go/internal/domain/order"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
	"github.com/dannymikay/agrimatch-go/test/helpers"
)

func TestBidRepository_CreateAndList(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormBidRepository(db)
	farmer := helpers.NewFarmer(t, db, -1.2921, 36.8219)
	buyer := helpers.NewBuyer(t, db, -1.2864, 36.8172)
	o := helpers.NewListedOrder(t, db, farmer.ID, 500, 1.80)

	clock := shared.NewMockClock(helpers.FixedTime)
	bid, err := order.NewBid(o.ID, buyer.ID, 1.90, 300, "fresh batch?", clock)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), bid))

	bids, err := repo.ListByOrder(context.Background(), o.ID)
	require.NoError(t, err)
	require.Len(t, bids, 1)
	assert.Equal(t, bid.ID, bids[0].ID)
	assert.Equal(t, order.BidPending, bids[0].Status)
	assert.Equal(t, "fresh batch?", bids[0].Message)
}

func TestBidRepository_RejectOtherPending(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormBidRepository(db)
	farmer := helpers.NewFarmer(t, db, -1.2921, 36.8219)
	buyer := helpers.NewBuyer(t, db, -1.2864, 36.8172)
	o := helpers.NewListedOrder(t, db, farmer.ID, 500, 1.80)

	clock := shared.NewMockClock(helpers.FixedTime)
	var bids []*order.Bid
	for i := 0; i < 3; i++ {
		b, err := order.NewBid(o.ID, buyer.ID, 1.90+float64(i)*0.05, 300, "", clock)
		require.NoError(t, err)
		require.NoError(t, repo.Create(context.Background(), b))
		bids = append(bids, b)
	}

	accepted := bids[1]
	accepted.Status = order.BidAccepted
	require.NoError(t, repo.Save(context.Background(), accepted))

	rejected, err := repo.RejectOtherPending(context.Background(), o.ID, accepted.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rejected)

	found, err := repo.FindByID(context.Background(), accepted.ID)
	require.NoError(t, err)
	assert.Equal(t, order.BidAccepted, found.Status)

	for _, loser := range []*order.Bid{bids[0], bids[2]} {
		found, err := repo.FindByID(context.Background(), loser.ID)
		require.NoError(t, err)
		assert.Equal(t, order.BidRejected, found.Status)
	}
}

func TestBidRepository_FindAcceptedByOrder(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormBidRepository(db)
	farmer := helpers.NewFarmer(t, db, -1.2921, 36.8219)
	buyer := helpers.NewBuyer(t, db, -1.2864, 36.8172)
	o := helpers.NewListedOrder(t, db, farmer.ID, 500, 1.80)

	clock := shared.NewMockClock(helpers.FixedTime)
	b, err := order.NewBid(o.ID, buyer.ID, 1.90, 300, "", clock)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), b))

	// No accepted bid yet
	_, err = repo.FindAcceptedByOrder(context.Background(), o.ID)
	var notFound *shared.NotFoundError
	require.ErrorAs(t, err, &notFound)

	b.Status = order.BidAccepted
	require.NoError(t, repo.Save(context.Background(), b))

	found, err := repo.FindAcceptedByOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, found.ID)
}
