package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	"github.com/dannymikay/agrimatch-go/internal/domain/order"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
)

// RejectBidCommand is the farmer declining a single bid
type RejectBidCommand struct {
	BidID    uuid.UUID
	FarmerID uuid.UUID
}

// RejectBidResponse returns the rejected bid
type RejectBidResponse struct {
	Bid *order.Bid
}

// RejectBidHandler handles bid rejection
type RejectBidHandler struct {
	orders order.Repository
	bids   order.BidRepository
	tx     common.TxManager
	clock  shared.Clock
}

// NewRejectBidHandler creates a new reject bid handler
func NewRejectBidHandler(orders order.Repository, bids order.BidRepository, tx common.TxManager, clock shared.Clock) *RejectBidHandler {
	return &RejectBidHandler{orders: orders, bids: bids, tx: tx, clock: clock}
}

// Handle executes the reject bid command
func (h *RejectBidHandler) Handle(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*RejectBidCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	var bid *order.Bid
	err := h.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		bid, err = h.bids.FindByIDForUpdate(ctx, cmd.BidID)
		if err != nil {
			return err
		}
		o, err := h.orders.FindByID(ctx, bid.OrderID)
		if err != nil {
			return err
		}
		if o.FarmerID != cmd.FarmerID {
			return shared.NewForbiddenError("only the listing farmer can reject a bid")
		}
		if !bid.IsPending() {
			return shared.NewInvalidTransitionError(string(bid.Status), string(order.BidRejected))
		}

		bid.Status = order.BidRejected
		bid.UpdatedAt = h.clock.Now()
		return h.bids.Save(ctx, bid)
	})
	if err != nil {
		return nil, err
	}

	return &RejectBidResponse{Bid: bid}, nil
}
