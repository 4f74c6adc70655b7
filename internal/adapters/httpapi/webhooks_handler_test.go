package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	paymentcommands "github.com/dannymikay/agrimatch-go/internal/application/payments/commands"
)

type paymentSucceededStub struct {
	received []*paymentcommands.PaymentSucceededCommand
}

func (s *paymentSucceededStub) Handle(_ context.Context, req common.Request) (common.Response, error) {
	s.received = append(s.received, req.(*paymentcommands.PaymentSucceededCommand))
	return &paymentcommands.PaymentSucceededResponse{Applied: true}, nil
}

func TestWebhooks_PaymentSucceededAcknowledgesReceipt(t *testing.T) {
	// Arrange: no signing secret, local demo trust
	stub := &paymentSucceededStub{}
	med := common.NewMediator()
	require.NoError(t, common.RegisterHandler[*paymentcommands.PaymentSucceededCommand](med, stub))

	router := mux.NewRouter()
	NewWebhooksHandler(med, "", zap.NewNop()).Register(router)

	payload := `{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_123"}}}`

	// Act
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewBufferString(payload)))

	// Assert
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received": true}`, rec.Body.String())

	require.Len(t, stub.received, 1)
	assert.Equal(t, "evt_1", stub.received[0].EventID)
	assert.Equal(t, "pi_123", stub.received[0].IntentID)
}

func TestWebhooks_UnhandledEventStillAcknowledged(t *testing.T) {
	router := mux.NewRouter()
	NewWebhooksHandler(common.NewMediator(), "", zap.NewNop()).Register(router)

	payload := `{"id":"evt_2","type":"charge.refunded","data":{"object":{"id":"ch_1"}}}`

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewBufferString(payload)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received": true}`, rec.Body.String())
}
