package queries

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	"github.com/dannymikay/agrimatch-go/internal/domain/escrow"
	"github.com/dannymikay/agrimatch-go/internal/domain/order"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
)

// GetOrderQuery fetches one order with its escrow summary
type GetOrderQuery struct {
	OrderID uuid.UUID
}

// GetOrderResponse bundles the order, its escrow (nil before acceptance) and
// a best-effort market price hint.
type GetOrderResponse struct {
	Order            *order.Order
	Escrow           *escrow.Escrow
	MarketPricePerKg *float64
}

// GetOrderHandler handles single order reads
type GetOrderHandler struct {
	orders  order.Repository
	escrows escrow.Repository
	oracle  order.MarketPriceOracle
}

// NewGetOrderHandler creates a new get order handler
func NewGetOrderHandler(orders order.Repository, escrows escrow.Repository, oracle order.MarketPriceOracle) *GetOrderHandler {
	return &GetOrderHandler{orders: orders, escrows: escrows, oracle: oracle}
}

// Handle executes the get order query
func (h *GetOrderHandler) Handle(ctx context.Context, request common.Request) (common.Response, error) {
	q, ok := request.(*GetOrderQuery)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	o, err := h.orders.FindByID(ctx, q.OrderID)
	if err != nil {
		return nil, err
	}

	resp := &GetOrderResponse{Order: o}

	e, err := h.escrows.FindByOrderID(ctx, o.ID)
	if err != nil {
		var notFound *shared.NotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	} else {
		resp.Escrow = e
	}

	if h.oracle != nil {
		resp.MarketPricePerKg = h.oracle.FetchMarketPrice(ctx, o.CropType, "")
	}
	return resp, nil
}
