package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	"github.com/dannymikay/agrimatch-go/internal/domain/audit"
	"github.com/dannymikay/agrimatch-go/internal/domain/order"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
	"github.com/dannymikay/agrimatch-go/internal/events"
)

// SubmitBidCommand places a buyer's offer on a listing
type SubmitBidCommand struct {
	OrderID    uuid.UUID
	BuyerID    uuid.UUID
	PricePerKg float64
	VolumeKg   float64
	Message    string
}

// SubmitBidResponse returns the created bid
type SubmitBidResponse struct {
	Bid *order.Bid
}

// SubmitBidHandler handles bid submission. The first bid on a LISTED order
// moves it to NEGOTIATING.
type SubmitBidHandler struct {
	orders order.Repository
	bids   order.BidRepository
	audits audit.Repository
	tx     common.TxManager
	pub    common.Publisher
	clock  shared.Clock
}

// NewSubmitBidHandler creates a new submit bid handler
func NewSubmitBidHandler(
	orders order.Repository,
	bids order.BidRepository,
	audits audit.Repository,
	tx common.TxManager,
	pub common.Publisher,
	clock shared.Clock,
) *SubmitBidHandler {
	return &SubmitBidHandler{
		orders: orders,
		bids:   bids,
		audits: audits,
		tx:     tx,
		pub:    pub,
		clock:  clock,
	}
}

// Handle executes the submit bid command
func (h *SubmitBidHandler) Handle(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*SubmitBidCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	bid, err := order.NewBid(cmd.OrderID, cmd.BuyerID, cmd.PricePerKg, cmd.VolumeKg, cmd.Message, h.clock)
	if err != nil {
		return nil, err
	}

	var outbox common.Outbox
	err = h.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := h.orders.FindByIDForUpdate(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		if !o.AcceptsBids() {
			return shared.NewInvalidTransitionError(string(o.Status), string(order.StatusNegotiating))
		}
		if cmd.VolumeKg > o.AvailableVolumeKg {
			return shared.NewInsufficientVolumeError(cmd.VolumeKg, o.AvailableVolumeKg)
		}

		if err := h.bids.Create(ctx, bid); err != nil {
			return fmt.Errorf("failed to save bid: %w", err)
		}

		now := h.clock.Now()
		if o.Status == order.StatusListed {
			from := o.Status
			if err := o.ApplyTransition(order.StatusNegotiating, now); err != nil {
				return err
			}
			if err := h.orders.Save(ctx, o); err != nil {
				return err
			}
			entry := audit.NewEntry(o.ID, string(from), string(o.Status), "buyer", &cmd.BuyerID,
				"first_bid", map[string]any{"bid_id": bid.ID.String()}, now)
			if err := h.audits.Append(ctx, entry); err != nil {
				return err
			}
			outbox.Broadcast(o.ID, events.NewFSMTransition(o.ID, string(from), string(o.Status), "first_bid"))
		}

		outbox.Broadcast(o.ID, events.NewBidEvent(o.ID, bid.ID, cmd.BuyerID, bid.VolumeKg, bid.PricePerKg))
		return nil
	})
	if err != nil {
		return nil, err
	}

	outbox.Flush(h.pub)
	return &SubmitBidResponse{Bid: bid}, nil
}
