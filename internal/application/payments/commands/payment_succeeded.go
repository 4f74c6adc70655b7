package commands

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	"github.com/dannymikay/agrimatch-go/internal/application/payments"
	"github.com/dannymikay/agrimatch-go/internal/domain/audit"
	"github.com/dannymikay/agrimatch-go/internal/domain/escrow"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
	"github.com/dannymikay/agrimatch-go/internal/events"
)

// PaymentSucceededCommand is delivered by the processor webhook when the
// buyer's authorization clears. EventID deduplicates redeliveries.
type PaymentSucceededCommand struct {
	EventID  string
	IntentID string
}

// PaymentSucceededResponse reports whether the escrow advanced
type PaymentSucceededResponse struct {
	Applied bool
	Escrow  *escrow.Escrow
}

// PaymentSucceededHandler captures the authorized intent and advances
// WAITING_FUNDS → FUNDS_HELD
type PaymentSucceededHandler struct {
	escrows   *payments.EscrowService
	processed escrow.ProcessedEventStore
	audits    audit.Repository
	tx        common.TxManager
	pub       common.Publisher
	clock     shared.Clock
}

// NewPaymentSucceededHandler creates a new payment succeeded handler
func NewPaymentSucceededHandler(
	escrows *payments.EscrowService,
	processed escrow.ProcessedEventStore,
	audits audit.Repository,
	tx common.TxManager,
	pub common.Publisher,
	clock shared.Clock,
) *PaymentSucceededHandler {
	return &PaymentSucceededHandler{
		escrows:   escrows,
		processed: processed,
		audits:    audits,
		tx:        tx,
		pub:       pub,
		clock:     clock,
	}
}

// Handle executes the payment succeeded command
func (h *PaymentSucceededHandler) Handle(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*PaymentSucceededCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	var resp PaymentSucceededResponse
	var outbox common.Outbox
	err := h.tx.WithinTx(ctx, func(ctx context.Context) error {
		fresh, err := h.processed.MarkProcessed(ctx, cmd.EventID)
		if err != nil {
			return err
		}
		if !fresh {
			common.LoggerFromContext(ctx).Debug("duplicate webhook event ignored",
				zap.String("event_id", cmd.EventID))
			return nil
		}

		e, err := h.escrows.FindByIntent(ctx, cmd.IntentID)
		if err != nil {
			return err
		}
		resp.Escrow = e
		if e.Status != escrow.StatusWaitingFunds {
			// Intent-level redelivery with a new event id. Funds already held.
			return nil
		}

		if err := h.escrows.ConfirmFunds(ctx, e); err != nil {
			return err
		}

		entry := audit.NewEntry(e.OrderID, "", "", audit.ActorWebhook, nil,
			"payment_succeeded", map[string]any{
				"event_id":  cmd.EventID,
				"intent_id": cmd.IntentID,
			}, h.clock.Now())
		if err := h.audits.Append(ctx, entry); err != nil {
			return err
		}

		outbox.Broadcast(e.OrderID, events.NewEscrowUpdate(e.OrderID, string(e.Status),
			e.TotalAmountCents, e.FarmerReleasedCents, e.MiddlemanReleasedCents, e.RefundedCents))
		resp.Applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	outbox.Flush(h.pub)
	return &resp, nil
}
