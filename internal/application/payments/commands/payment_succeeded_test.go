package commands_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dannymikay/agrimatch-go/internal/adapters/persistence"
	"github.com/dannymikay/agrimatch-go/internal/application/payments"
	"github.com/dannymikay/agrimatch-go/internal/application/payments/commands"
	"github.com/dannymikay/agrimatch-go/internal/domain/escrow"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
	"github.com/dannymikay/agrimatch-go/internal/events"
	"github.com/dannymikay/agrimatch-go/test/helpers"
)

func newPaymentHandler(t *testing.T) (*commands.PaymentSucceededHandler, escrow.Repository, *helpers.RecordingPublisher, uuid.UUID) {
	t.Helper()
	db := helpers.NewTestDB(t)
	escrows := persistence.NewGormEscrowRepository(db)
	clock := shared.NewMockClock(helpers.FixedTime)
	pub := &helpers.RecordingPublisher{}

	orderID := uuid.New()
	e, err := escrow.NewEscrow(orderID, 54_450, clock)
	require.NoError(t, err)
	e.PaymentIntentID = "pi_test_abc"
	require.NoError(t, escrows.Create(context.Background(), e))

	handler := commands.NewPaymentSucceededHandler(
		payments.NewEscrowService(escrows, nil, clock, true),
		persistence.NewGormWebhookEventStore(db, clock),
		persistence.NewGormAuditRepository(db),
		persistence.NewGormTxManager(db),
		pub,
		clock,
	)
	return handler, escrows, pub, orderID
}

func TestPaymentSucceeded_AdvancesEscrowToFundsHeld(t *testing.T) {
	// Arrange
	handler, escrows, pub, orderID := newPaymentHandler(t)

	// Act
	resp, err := handler.Handle(context.Background(), &commands.PaymentSucceededCommand{
		EventID:  "evt_1",
		IntentID: "pi_test_abc",
	})

	// Assert
	require.NoError(t, err)
	assert.True(t, resp.(*commands.PaymentSucceededResponse).Applied)

	e, err := escrows.FindByOrderID(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusFundsHeld, e.Status)
	require.NotNil(t, e.FundsHeldAt)

	types := pub.BroadcastTypes()
	require.Len(t, types, 1)
	assert.Equal(t, events.TypeEscrowUpdate, types[0])
}

func TestPaymentSucceeded_DeduplicatesByEventID(t *testing.T) {
	handler, escrows, pub, orderID := newPaymentHandler(t)

	first, err := handler.Handle(context.Background(), &commands.PaymentSucceededCommand{
		EventID: "evt_1", IntentID: "pi_test_abc",
	})
	require.NoError(t, err)
	require.True(t, first.(*commands.PaymentSucceededResponse).Applied)

	// Stripe redelivers the same event
	second, err := handler.Handle(context.Background(), &commands.PaymentSucceededCommand{
		EventID: "evt_1", IntentID: "pi_test_abc",
	})
	require.NoError(t, err)
	assert.False(t, second.(*commands.PaymentSucceededResponse).Applied)

	// A new event id for an intent whose funds are already held is also a no-op
	third, err := handler.Handle(context.Background(), &commands.PaymentSucceededCommand{
		EventID: "evt_2", IntentID: "pi_test_abc",
	})
	require.NoError(t, err)
	assert.False(t, third.(*commands.PaymentSucceededResponse).Applied)

	e, err := escrows.FindByOrderID(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusFundsHeld, e.Status)
	assert.Len(t, pub.Broadcasts, 1)
}

func TestPaymentSucceeded_UnknownIntentErrors(t *testing.T) {
	handler, _, _, _ := newPaymentHandler(t)

	_, err := handler.Handle(context.Background(), &commands.PaymentSucceededCommand{
		EventID: "evt_x", IntentID: "pi_missing",
	})

	var notFound *shared.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}
