package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	"github.com/dannymikay/agrimatch-go/internal/domain/order"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
)

// WithdrawBidCommand is the buyer pulling their own pending bid
type WithdrawBidCommand struct {
	BidID   uuid.UUID
	BuyerID uuid.UUID
}

// WithdrawBidResponse returns the withdrawn bid
type WithdrawBidResponse struct {
	Bid *order.Bid
}

// WithdrawBidHandler handles bid withdrawal
type WithdrawBidHandler struct {
	bids  order.BidRepository
	tx    common.TxManager
	clock shared.Clock
}

// NewWithdrawBidHandler creates a new withdraw bid handler
func NewWithdrawBidHandler(bids order.BidRepository, tx common.TxManager, clock shared.Clock) *WithdrawBidHandler {
	return &WithdrawBidHandler{bids: bids, tx: tx, clock: clock}
}

// Handle executes the withdraw bid command
func (h *WithdrawBidHandler) Handle(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*WithdrawBidCommand)
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
		if bid.BuyerID != cmd.BuyerID {
			return shared.NewForbiddenError("only the bid owner can withdraw it")
		}
		if !bid.IsPending() {
			return shared.NewInvalidTransitionError(string(bid.Status), string(order.BidWithdrawn))
		}

		bid.Status = order.BidWithdrawn
		bid.UpdatedAt = h.clock.Now()
		return h.bids.Save(ctx, bid)
	})
	if err != nil {
		return nil, err
	}

	return &WithdrawBidResponse{Bid: bid}, nil
}
