package queries

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	"github.com/dannymikay/agrimatch-go/internal/domain/order"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
)

// ListBidsQuery fetches all bids on an order. Only the listing farmer sees
// them.
type ListBidsQuery struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
}

// ListBidsResponse returns the order's bids, newest first
type ListBidsResponse struct {
	Bids []*order.Bid
}

// ListBidsHandler handles bid listing
type ListBidsHandler struct {
	orders order.Repository
	bids   order.BidRepository
}

// NewListBidsHandler creates a new list bids handler
func NewListBidsHandler(orders order.Repository, bids order.BidRepository) *ListBidsHandler {
	return &ListBidsHandler{orders: orders, bids: bids}
}

// Handle executes the list bids query
func (h *ListBidsHandler) Handle(ctx context.Context, request common.Request) (common.Response, error) {
	q, ok := request.(*ListBidsQuery)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	o, err := h.orders.FindByID(ctx, q.OrderID)
	if err != nil {
		return nil, err
	}
	if o.FarmerID != q.ActorID {
		return nil, shared.NewForbiddenError("only the listing farmer can view bids")
	}

	bids, err := h.bids.ListByOrder(ctx, q.OrderID)
	if err != nil {
		return nil, err
	}
	return &ListBidsResponse{Bids: bids}, nil
}
