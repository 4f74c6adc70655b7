package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	"github.com/dannymikay/agrimatch-go/internal/domain/audit"
	"github.com/dannymikay/agrimatch-go/internal/domain/order"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
)

// CreateOrderCommand lists new produce on the marketplace
type CreateOrderCommand struct {
	FarmerID          uuid.UUID
	CropType          string
	Variety           string
	TotalVolumeKg     float64
	AskingPricePerKg  float64
	RequiresColdChain bool
	HarvestDate       *time.Time
	CropImageURL      string
}

// CreateOrderResponse returns the created listing
type CreateOrderResponse struct {
	Order *order.Order
}

// CreateOrderHandler handles produce listing creation
type CreateOrderHandler struct {
	orders order.Repository
	audits audit.Repository
	grader order.ImageGrader
	tx     common.TxManager
	clock  shared.Clock
}

// NewCreateOrderHandler creates a new create order handler
func NewCreateOrderHandler(
	orders order.Repository,
	audits audit.Repository,
	grader order.ImageGrader,
	tx common.TxManager,
	clock shared.Clock,
) *CreateOrderHandler {
	return &CreateOrderHandler{
		orders: orders,
		audits: audits,
		grader: grader,
		tx:     tx,
		clock:  clock,
	}
}

// Handle executes the create order command
func (h *CreateOrderHandler) Handle(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*CreateOrderCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	o, err := order.NewOrder(
		cmd.FarmerID, cmd.CropType, cmd.Variety,
		cmd.TotalVolumeKg, cmd.AskingPricePerKg,
		cmd.RequiresColdChain, cmd.HarvestDate, h.clock,
	)
	if err != nil {
		return nil, err
	}
	o.CropImageURL = cmd.CropImageURL

	if cmd.CropImageURL != "" && h.grader != nil {
		h.gradeListing(ctx, o, cmd.CropImageURL)
	}

	err = h.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := h.orders.Create(ctx, o); err != nil {
			return fmt.Errorf("failed to save order: %w", err)
		}
		entry := audit.NewEntry(o.ID, "", string(order.StatusListed), "farmer", &cmd.FarmerID,
			"order_created", map[string]any{"crop_type": o.CropType, "total_volume_kg": o.TotalVolumeKg}, h.clock.Now())
		return h.audits.Append(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	return &CreateOrderResponse{Order: o}, nil
}

// gradeListing attaches a quality grade from the crop photo. Grading failure
// never blocks listing creation.
func (h *CreateOrderHandler) gradeListing(ctx context.Context, o *order.Order, imageURL string) {
	grade, confidence, err := h.grader.Grade(ctx, imageURL)
	if err != nil {
		common.LoggerFromContext(ctx).Warn("image grading failed, listing without grade",
			zap.String("order_id", o.ID.String()), zap.Error(err))
		return
	}
	o.QualityGrade = grade
	common.LoggerFromContext(ctx).Debug("crop image graded",
		zap.String("order_id", o.ID.String()),
		zap.String("grade", grade),
		zap.Float64("confidence", confidence))
}
