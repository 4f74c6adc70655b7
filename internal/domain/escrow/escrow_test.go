package escrow_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dannymikay/agrimatch-go/internal/domain/escrow"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
)

var startTime = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func newTestEscrow(t *testing.T, totalCents int64) *escrow.Escrow {
	t.Helper()

	e, err := escrow.NewEscrow(uuid.New(), totalCents, shared.NewMockClock(startTime))
	require.NoError(t, err)
	return e
}

func TestNewEscrow_StartsWaitingFunds(t *testing.T) {
	e := newTestEscrow(t, 100_000)

	assert.Equal(t, escrow.StatusWaitingFunds, e.Status)
	assert.Equal(t, int64(100_000), e.TotalAmountCents)
	assert.Zero(t, e.FarmerReleasedCents)
	assert.Zero(t, e.MiddlemanReleasedCents)
	assert.Zero(t, e.RefundedCents)
}

func TestNewEscrow_RejectsNonPositiveTotal(t *testing.T) {
	_, err := escrow.NewEscrow(uuid.New(), 0, shared.NewMockClock(startTime))
	assert.Error(t, err)

	_, err = escrow.NewEscrow(uuid.New(), -500, shared.NewMockClock(startTime))
	assert.Error(t, err)
}

func TestTranches_EvenSplit(t *testing.T) {
	e := newTestEscrow(t, 100_000)

	assert.Equal(t, int64(20_000), e.PickupTrancheCents())
	assert.Equal(t, int64(60_000), e.DeliveryFarmerTrancheCents())
	assert.Equal(t, int64(20_000), e.DeliveryMiddlemanTrancheCents())
}

func TestTranches_FloorDivisionLeavesResidue(t *testing.T) {
	// 99 cents: 19 + 59 + 19 = 97, residue 2 stays in escrow
	e := newTestEscrow(t, 99)

	pickup := e.PickupTrancheCents()
	deliveryFarmer := e.DeliveryFarmerTrancheCents()
	deliveryMiddleman := e.DeliveryMiddlemanTrancheCents()

	assert.Equal(t, int64(19), pickup)
	assert.Equal(t, int64(59), deliveryFarmer)
	assert.Equal(t, int64(19), deliveryMiddleman)

	residue := e.TotalAmountCents - pickup - deliveryFarmer - deliveryMiddleman
	assert.Equal(t, int64(2), residue)
	assert.LessOrEqual(t, residue, int64(2))
}

func TestFullLifecycle_ReleasedSumsMatchTranches(t *testing.T) {
	e := newTestEscrow(t, 54_450)
	now := startTime.Add(time.Hour)

	e.MarkFundsHeld(now)
	assert.Equal(t, escrow.StatusFundsHeld, e.Status)

	e.MarkPickedUp(e.PickupTrancheCents(), now)
	assert.Equal(t, escrow.StatusPickedUp, e.Status)
	assert.Equal(t, int64(10_890), e.FarmerReleasedCents)

	e.MarkDelivered(e.DeliveryFarmerTrancheCents(), e.DeliveryMiddlemanTrancheCents(), now)
	assert.Equal(t, escrow.StatusDelivered, e.Status)
	assert.Equal(t, int64(10_890+32_670), e.FarmerReleasedCents)
	assert.Equal(t, int64(10_890), e.MiddlemanReleasedCents)

	residue := e.TotalAmountCents - e.ReleasedCents()
	assert.GreaterOrEqual(t, residue, int64(0))
	assert.LessOrEqual(t, residue, int64(2))
}

func TestMarkCancelled_RefundsUnreleasedBalance(t *testing.T) {
	e := newTestEscrow(t, 100_000)
	now := startTime.Add(time.Hour)

	e.MarkFundsHeld(now)
	e.MarkPickedUp(e.PickupTrancheCents(), now)
	e.MarkCancelled(now)

	assert.Equal(t, escrow.StatusCancelled, e.Status)
	assert.Equal(t, int64(80_000), e.RefundedCents)
	assert.Equal(t, e.TotalAmountCents, e.RefundedCents+e.FarmerReleasedCents)
}

func TestMarkCancelled_BeforeAnyRelease(t *testing.T) {
	e := newTestEscrow(t, 100_000)

	e.MarkCancelled(startTime)

	assert.Equal(t, e.TotalAmountCents, e.RefundedCents)
}

func TestIsDemoIntent(t *testing.T) {
	e := newTestEscrow(t, 100_000)

	e.PaymentIntentID = escrow.DemoIntentPrefix + e.ID.String()
	assert.True(t, e.IsDemoIntent())

	e.PaymentIntentID = "pi_3Abc123"
	assert.False(t, e.IsDemoIntent())
}
