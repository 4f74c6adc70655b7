package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	"github.com/dannymikay/agrimatch-go/internal/domain/order"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
)

// DeleteOrderCommand removes a listing before any deal is struck. Only LISTED
// orders can be deleted.
type DeleteOrderCommand struct {
	OrderID  uuid.UUID
	FarmerID uuid.UUID
}

// DeleteOrderResponse is empty on success
type DeleteOrderResponse struct{}

// DeleteOrderHandler handles listing deletion
type DeleteOrderHandler struct {
	orders order.Repository
	tx     common.TxManager
}

// NewDeleteOrderHandler creates a new delete order handler
func NewDeleteOrderHandler(orders order.Repository, tx common.TxManager) *DeleteOrderHandler {
	return &DeleteOrderHandler{orders: orders, tx: tx}
}

// Handle executes the delete order command
func (h *DeleteOrderHandler) Handle(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*DeleteOrderCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	err := h.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := h.orders.FindByIDForUpdate(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		if o.FarmerID != cmd.FarmerID {
			return shared.NewForbiddenError("only the listing farmer can delete it")
		}
		if o.Status != order.StatusListed {
			return shared.NewInvalidTransitionError(string(o.Status), "deleted")
		}
		return h.orders.Delete(ctx, o.ID)
	})
	if err != nil {
		return nil, err
	}

	return &DeleteOrderResponse{}, nil
}
