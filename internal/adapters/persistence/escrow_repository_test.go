package persistence_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dannymikay/agrimatch-go/internal/adapters/persistence"
	"github.com/dannymikay/agrimatch-go/internal/domain/escrow"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
	"github.com/dannymikay/agrimatch-go/test/helpers"
)

func TestEscrowRepository_CreateAndFindByOrder(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormEscrowRepository(db)
	orderID := uuid.New()

	e, err := escrow.NewEscrow(orderID, 54_450, shared.NewMockClock(helpers.FixedTime))
	require.NoError(t, err)
	e.PaymentIntentID = "pi_test_123"
	require.NoError(t, repo.Create(context.Background(), e))

	found, err := repo.FindByOrderID(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, e.ID, found.ID)
	assert.Equal(t, int64(54_450), found.TotalAmountCents)
	assert.Equal(t, escrow.StatusWaitingFunds, found.Status)

	byIntent, err := repo.FindByIntentIDForUpdate(context.Background(), "pi_test_123")
	require.NoError(t, err)
	assert.Equal(t, e.ID, byIntent.ID)
}

func TestEscrowRepository_NotFound(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormEscrowRepository(db)

	_, err := repo.FindByOrderID(context.Background(), uuid.New())

	var notFound *shared.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestWebhookEventStore_MarkProcessedDeduplicates(t *testing.T) {
	db := helpers.NewTestDB(t)
	store := persistence.NewGormWebhookEventStore(db, shared.NewMockClock(helpers.FixedTime))

	first, err := store.MarkProcessed(context.Background(), "evt_123")
	require.NoError(t, err)
	assert.True(t, first)

	// Stripe redelivery of the same event is ignored
	second, err := store.MarkProcessed(context.Background(), "evt_123")
	require.NoError(t, err)
	assert.False(t, second)

	other, err := store.MarkProcessed(context.Background(), "evt_456")
	require.NoError(t, err)
	assert.True(t, other)
}
