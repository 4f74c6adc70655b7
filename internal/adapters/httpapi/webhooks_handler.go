package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
	"go.uber.org/zap"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	paymentcommands "github.com/dannymikay/agrimatch-go/internal/application/payments/commands"
)

// maxWebhookBody caps the Stripe payload read. Stripe events are small;
// anything larger is not ours.
const maxWebhookBody = 64 << 10

// WebhooksHandler receives Stripe webhook events. Signature verification
// happens here; deduplication and state changes happen in the command layer.
type WebhooksHandler struct {
	mediator      common.Mediator
	signingSecret string
	logger        *zap.Logger
}

// NewWebhooksHandler creates a new webhooks handler
func NewWebhooksHandler(mediator common.Mediator, signingSecret string, logger *zap.Logger) *WebhooksHandler {
	return &WebhooksHandler{mediator: mediator, signingSecret: signingSecret, logger: logger}
}

// Register mounts the webhook routes. These are mounted outside the
// authenticated subrouter: Stripe authenticates with its signature header.
func (h *WebhooksHandler) Register(r *mux.Router) {
	r.HandleFunc("/webhooks/stripe", h.stripeEvent).Methods(http.MethodPost)
}

func (h *WebhooksHandler) stripeEvent(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}

	event, err := h.constructEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("stripe webhook rejected", zap.Error(err))
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case "payment_intent.succeeded":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			h.logger.Warn("stripe webhook malformed payment intent", zap.Error(err))
			http.Error(w, "malformed event", http.StatusBadRequest)
			return
		}

		if _, err := h.mediator.Send(r.Context(), &paymentcommands.PaymentSucceededCommand{
			EventID:  event.ID,
			IntentID: intent.ID,
		}); err != nil {
			h.logger.Error("stripe webhook handling failed",
				zap.String("event_id", event.ID),
				zap.String("intent_id", intent.ID),
				zap.Error(err))
			// 5xx makes Stripe retry later
			http.Error(w, "processing failed", http.StatusInternalServerError)
			return
		}
	default:
		h.logger.Debug("stripe webhook ignored", zap.String("type", string(event.Type)))
	}

	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// constructEvent verifies the signature. With no signing secret configured
// (local demo) the payload is trusted as-is.
func (h *WebhooksHandler) constructEvent(payload []byte, signature string) (stripe.Event, error) {
	if h.signingSecret == "" {
		var event stripe.Event
		err := json.Unmarshal(payload, &event)
		return event, err
	}
	return webhook.ConstructEventWithOptions(payload, signature, h.signingSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
}
