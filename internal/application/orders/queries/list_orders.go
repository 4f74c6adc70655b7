package queries

import (
	"context"
	"fmt"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	"github.com/dannymikay/agrimatch-go/internal/domain/order"
)

// ListOrdersQuery browses marketplace listings
type ListOrdersQuery struct {
	Filter order.ListFilter
}

// ListOrdersResponse returns the matching page
type ListOrdersResponse struct {
	Orders []*order.Order
}

// ListOrdersHandler handles listing browsing
type ListOrdersHandler struct {
	orders order.Repository
}

// NewListOrdersHandler creates a new list orders handler
func NewListOrdersHandler(orders order.Repository) *ListOrdersHandler {
	return &ListOrdersHandler{orders: orders}
}

// Handle executes the list orders query
func (h *ListOrdersHandler) Handle(ctx context.Context, request common.Request) (common.Response, error) {
	q, ok := request.(*ListOrdersQuery)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	filter := q.Filter
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}

	orders, err := h.orders.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ListOrdersResponse{Orders: orders}, nil
}
