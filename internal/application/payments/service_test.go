package payments_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dannymikay/agrimatch-go/internal/adapters/persistence"
	"github.com/dannymikay/agrimatch-go/internal/application/payments"
	"github.com/dannymikay/agrimatch-go/internal/domain/escrow"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
	"github.com/dannymikay/agrimatch-go/test/helpers"
)

type transferCall struct {
	amountCents int64
	account     string
	leg         string
}

// recordingProcessor captures every processor call so tests can assert which
// side effects a release actually triggers.
type recordingProcessor struct {
	captured  []string
	transfers []transferCall
	refunded  []string
}

func (p *recordingProcessor) CreateIntent(_ context.Context, _ int64, meta escrow.IntentMetadata) (string, string, error) {
	return "pi_live_" + meta.EscrowID.String(), "secret_" + meta.EscrowID.String(), nil
}

func (p *recordingProcessor) CaptureIntent(_ context.Context, intentID string) error {
	p.captured = append(p.captured, intentID)
	return nil
}

func (p *recordingProcessor) Transfer(_ context.Context, amountCents int64, destinationAccount, _ string, metadata map[string]string) (string, error) {
	p.transfers = append(p.transfers, transferCall{
		amountCents: amountCents,
		account:     destinationAccount,
		leg:         metadata["leg"],
	})
	return fmt.Sprintf("tr_%d", len(p.transfers)), nil
}

func (p *recordingProcessor) CancelOrRefund(_ context.Context, intentID string) error {
	p.refunded = append(p.refunded, intentID)
	return nil
}

// liveEscrow persists a WAITING_FUNDS escrow with a real processor intent
func liveEscrow(t *testing.T, db *gorm.DB, totalCents int64, clock shared.Clock) *escrow.Escrow {
	t.Helper()
	e, err := escrow.NewEscrow(uuid.New(), totalCents, clock)
	require.NoError(t, err)
	e.PaymentIntentID = "pi_live_" + e.ID.String()
	require.NoError(t, persistence.NewGormEscrowRepository(db).Create(context.Background(), e))
	return e
}

func TestConfirmFunds_CapturesOnceThenHolds(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(helpers.FixedTime)
	processor := &recordingProcessor{}
	svc := payments.NewEscrowService(persistence.NewGormEscrowRepository(db), processor, clock, false)

	e := liveEscrow(t, db, 57_000, clock)

	// Act
	require.NoError(t, svc.ConfirmFunds(context.Background(), e))

	// Assert
	assert.Equal(t, escrow.StatusFundsHeld, e.Status)
	require.Len(t, processor.captured, 1)
	assert.Equal(t, e.PaymentIntentID, processor.captured[0])

	// Replayed webhook: no second capture
	require.NoError(t, svc.ConfirmFunds(context.Background(), e))
	assert.Len(t, processor.captured, 1)
}

func TestReleasePickup_TransfersWithoutCapturing(t *testing.T) {
	// Arrange: funds already captured by the payment webhook
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(helpers.FixedTime)
	processor := &recordingProcessor{}
	escrows := persistence.NewGormEscrowRepository(db)
	svc := payments.NewEscrowService(escrows, processor, clock, false)

	e := liveEscrow(t, db, 57_000, clock)
	require.NoError(t, svc.ConfirmFunds(context.Background(), e))
	capturesBefore := len(processor.captured)

	// Act
	require.NoError(t, svc.ReleasePickup(context.Background(), e, "acct_farmer"))

	// Assert: the release is a transfer, never a second capture
	assert.Len(t, processor.captured, capturesBefore)
	require.Len(t, processor.transfers, 1)
	assert.Equal(t, transferCall{amountCents: 11_400, account: "acct_farmer", leg: "pickup_farmer"}, processor.transfers[0])

	assert.Equal(t, escrow.StatusPickedUp, e.Status)
	assert.Equal(t, int64(11_400), e.FarmerReleasedCents)
	assert.NotEmpty(t, e.TransferFarmerPickupID)
}

func TestReleaseDelivery_PaysBothLegs(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(helpers.FixedTime)
	processor := &recordingProcessor{}
	svc := payments.NewEscrowService(persistence.NewGormEscrowRepository(db), processor, clock, false)

	e := liveEscrow(t, db, 57_000, clock)
	require.NoError(t, svc.ConfirmFunds(context.Background(), e))
	require.NoError(t, svc.ReleasePickup(context.Background(), e, "acct_farmer"))

	require.NoError(t, svc.ReleaseDelivery(context.Background(), e, "acct_farmer", "acct_middleman"))

	require.Len(t, processor.transfers, 3)
	assert.Equal(t, transferCall{amountCents: 34_200, account: "acct_farmer", leg: "delivery_farmer"}, processor.transfers[1])
	assert.Equal(t, transferCall{amountCents: 11_400, account: "acct_middleman", leg: "delivery_middleman"}, processor.transfers[2])

	assert.Equal(t, escrow.StatusDelivered, e.Status)
	assert.Equal(t, int64(45_600), e.FarmerReleasedCents)
	assert.Equal(t, int64(11_400), e.MiddlemanReleasedCents)
}

func TestReleaseDelivery_MiddlemanWithoutAccountEarnsOnLedgerOnly(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(helpers.FixedTime)
	processor := &recordingProcessor{}
	svc := payments.NewEscrowService(persistence.NewGormEscrowRepository(db), processor, clock, false)

	e := liveEscrow(t, db, 57_000, clock)
	require.NoError(t, svc.ConfirmFunds(context.Background(), e))
	require.NoError(t, svc.ReleasePickup(context.Background(), e, "acct_farmer"))

	// Act: middleman has not finished payout onboarding
	require.NoError(t, svc.ReleaseDelivery(context.Background(), e, "acct_farmer", ""))

	// Assert: farmer paid out, middleman tranche only credited on the ledger
	require.Len(t, processor.transfers, 2)
	assert.Equal(t, "delivery_farmer", processor.transfers[1].leg)
	assert.Empty(t, e.TransferMiddlemanID)

	assert.Equal(t, escrow.StatusDelivered, e.Status)
	assert.Equal(t, int64(45_600), e.FarmerReleasedCents)
	assert.Equal(t, int64(11_400), e.MiddlemanReleasedCents)
}
