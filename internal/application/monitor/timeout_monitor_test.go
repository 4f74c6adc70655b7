package monitor_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dannymikay/agrimatch-go/internal/adapters/persistence"
	"github.com/dannymikay/agrimatch-go/internal/application/common"
	"github.com/dannymikay/agrimatch-go/internal/application/monitor"
	ordercommands "github.com/dannymikay/agrimatch-go/internal/application/orders/commands"
	"github.com/dannymikay/agrimatch-go/internal/application/payments"
	"github.com/dannymikay/agrimatch-go/internal/domain/escrow"
	"github.com/dannymikay/agrimatch-go/internal/domain/order"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
	"github.com/dannymikay/agrimatch-go/test/helpers"
)

func TestTimeoutMonitor_RollsBackExpiredSearches(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	orders := persistence.NewGormOrderRepository(db)
	bids := persistence.NewGormBidRepository(db)
	audits := persistence.NewGormAuditRepository(db)
	escrows := persistence.NewGormEscrowRepository(db)
	tx := persistence.NewGormTxManager(db)
	pub := &helpers.RecordingPublisher{}
	clock := shared.NewMockClock(helpers.FixedTime)
	escrowSvc := payments.NewEscrowService(escrows, nil, clock, true)

	farmer := helpers.NewFarmer(t, db, -1.2921, 36.8219)
	buyer := helpers.NewBuyer(t, db, -1.0333, 37.0693)
	stalled := helpers.NewListedOrder(t, db, farmer.ID, 500, 1.80)
	fresh := helpers.NewListedOrder(t, db, farmer.ID, 400, 1.60)

	submit := ordercommands.NewSubmitBidHandler(orders, bids, audits, tx, pub, clock)
	accept := ordercommands.NewAcceptBidHandler(orders, bids, audits, escrowSvc, tx, pub, clock)
	intoSearch := func(o *order.Order) {
		resp, err := submit.Handle(context.Background(), &ordercommands.SubmitBidCommand{
			OrderID: o.ID, BuyerID: buyer.ID, PricePerKg: 1.90, VolumeKg: 100,
		})
		require.NoError(t, err)
		_, err = accept.Handle(context.Background(), &ordercommands.AcceptBidCommand{
			BidID: resp.(*ordercommands.SubmitBidResponse).Bid.ID, FarmerID: farmer.ID,
		})
		require.NoError(t, err)
	}
	intoSearch(stalled)

	// The second order enters LOGISTICS_SEARCH a day later and is still inside
	// the window when the sweep runs.
	clock.Advance(24 * time.Hour)
	intoSearch(fresh)

	med := common.NewMediator()
	rollback := ordercommands.NewRollbackToListedHandler(orders, bids, audits, escrowSvc, tx, pub, clock)
	require.NoError(t, common.RegisterHandler[*ordercommands.RollbackToListedCommand](med, rollback))

	mon := monitor.NewTimeoutMonitor(orders, med, clock, nil)

	// Act: 49 hours after the first acceptance
	clock.Advance(25 * time.Hour)
	rolledBack, err := mon.Sweep(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, rolledBack)

	o1, err := orders.FindByID(context.Background(), stalled.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusListed, o1.Status)
	assert.Equal(t, 500.0, o1.AvailableVolumeKg)

	e1, err := escrows.FindByOrderID(context.Background(), stalled.ID)
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusCancelled, e1.Status)

	o2, err := orders.FindByID(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusLogisticsSearch, o2.Status)

	// A second sweep finds nothing new
	again, err := mon.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again)
}
