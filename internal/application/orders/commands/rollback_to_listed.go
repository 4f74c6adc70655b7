package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	"github.com/dannymikay/agrimatch-go/internal/application/payments"
	"github.com/dannymikay/agrimatch-go/internal/domain/audit"
	"github.com/dannymikay/agrimatch-go/internal/domain/order"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
	"github.com/dannymikay/agrimatch-go/internal/events"
)

// RollbackReasonTimeout marks rollbacks triggered by the 48h search window
const RollbackReasonTimeout = "48hr_timeout"

// RollbackToListedCommand unwinds a stalled LOGISTICS_SEARCH order back to
// LISTED: volume restored, accepted bid rejected, acceptance fields cleared,
// escrow cancelled. Idempotent: an order no longer in LOGISTICS_SEARCH is
// left untouched.
type RollbackToListedCommand struct {
	OrderID uuid.UUID
	Reason  string
}

// RollbackToListedResponse reports whether the rollback happened
type RollbackToListedResponse struct {
	RolledBack bool
	Order      *order.Order
}

// RollbackToListedHandler handles the rollback
type RollbackToListedHandler struct {
	orders  order.Repository
	bids    order.BidRepository
	audits  audit.Repository
	escrows *payments.EscrowService
	tx      common.TxManager
	pub     common.Publisher
	clock   shared.Clock
}

// NewRollbackToListedHandler creates a new rollback handler
func NewRollbackToListedHandler(
	orders order.Repository,
	bids order.BidRepository,
	audits audit.Repository,
	escrows *payments.EscrowService,
	tx common.TxManager,
	pub common.Publisher,
	clock shared.Clock,
) *RollbackToListedHandler {
	return &RollbackToListedHandler{
		orders:  orders,
		bids:    bids,
		audits:  audits,
		escrows: escrows,
		tx:      tx,
		pub:     pub,
		clock:   clock,
	}
}

// Handle executes the rollback command
func (h *RollbackToListedHandler) Handle(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*RollbackToListedCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	var resp RollbackToListedResponse
	var outbox common.Outbox
	err := h.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := h.orders.FindByIDForUpdate(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		resp.Order = o
		if o.Status != order.StatusLogisticsSearch {
			common.LoggerFromContext(ctx).Debug("rollback skipped, order not in logistics search",
				zap.String("order_id", o.ID.String()), zap.String("status", string(o.Status)))
			return nil
		}

		now := h.clock.Now()
		if err := h.unwindAcceptedBid(ctx, o, now); err != nil {
			return err
		}

		from := o.Status
		if err := o.ApplyTransition(order.StatusListed, now); err != nil {
			return err
		}
		o.ClearAcceptance()
		if err := h.orders.Save(ctx, o); err != nil {
			return err
		}

		if err := h.cancelEscrow(ctx, o.ID); err != nil {
			return err
		}

		entry := audit.NewEntry(o.ID, string(from), string(o.Status), audit.ActorMonitor, nil,
			cmd.Reason, nil, now)
		if err := h.audits.Append(ctx, entry); err != nil {
			return err
		}

		outbox.Broadcast(o.ID, events.NewFSMTransition(o.ID, string(from), string(o.Status), cmd.Reason))
		resp.RolledBack = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	outbox.Flush(h.pub)
	return &resp, nil
}

// unwindAcceptedBid restores the reserved volume and rejects the accepted bid
func (h *RollbackToListedHandler) unwindAcceptedBid(ctx context.Context, o *order.Order, now time.Time) error {
	bid, err := h.bids.FindAcceptedByOrder(ctx, o.ID)
	if err != nil {
		var notFound *shared.NotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}

	o.RestoreVolume(bid.VolumeKg)
	bid.Status = order.BidRejected
	bid.UpdatedAt = now
	return h.bids.Save(ctx, bid)
}

// cancelEscrow refunds and closes the order's escrow if one was opened
func (h *RollbackToListedHandler) cancelEscrow(ctx context.Context, orderID uuid.UUID) error {
	e, err := h.escrows.FindByOrder(ctx, orderID)
	if err != nil {
		var notFound *shared.NotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return h.escrows.Cancel(ctx, e)
}
