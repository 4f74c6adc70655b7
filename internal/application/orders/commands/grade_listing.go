package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	"github.com/dannymikay/agrimatch-go/internal/domain/audit"
	"github.com/dannymikay/agrimatch-go/internal/domain/order"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
)

// GradeListingCommand attaches a crop photo to an existing listing and grades
// it. The grading call runs before the transaction so the model's latency
// never holds a row lock.
type GradeListingCommand struct {
	OrderID  uuid.UUID
	FarmerID uuid.UUID
	ImageURL string
}

// GradeListingResponse returns the graded listing
type GradeListingResponse struct {
	Order      *order.Order
	Grade      string
	Confidence float64
}

// GradeListingHandler handles crop photo grading
type GradeListingHandler struct {
	orders order.Repository
	audits audit.Repository
	grader order.ImageGrader
	tx     common.TxManager
	clock  shared.Clock
}

// NewGradeListingHandler creates a new grade listing handler
func NewGradeListingHandler(
	orders order.Repository,
	audits audit.Repository,
	grader order.ImageGrader,
	tx common.TxManager,
	clock shared.Clock,
) *GradeListingHandler {
	return &GradeListingHandler{
		orders: orders,
		audits: audits,
		grader: grader,
		tx:     tx,
		clock:  clock,
	}
}

// Handle executes the grade listing command
func (h *GradeListingHandler) Handle(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*GradeListingCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}
	if cmd.ImageURL == "" {
		return nil, shared.NewValidationError("image_url", "must not be empty")
	}

	o, err := h.orders.FindByID(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if o.FarmerID != cmd.FarmerID {
		return nil, shared.NewForbiddenError("only the listing farmer can upload a crop photo")
	}

	grade, confidence, err := h.grader.Grade(ctx, cmd.ImageURL)
	if err != nil {
		return nil, shared.NewProcessorError("grading", err)
	}

	var resp GradeListingResponse
	err = h.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := h.orders.FindByIDForUpdate(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		o.CropImageURL = cmd.ImageURL
		o.QualityGrade = grade
		o.UpdatedAt = h.clock.Now()
		if err := h.orders.Save(ctx, o); err != nil {
			return err
		}

		entry := audit.NewEntry(o.ID, "", "", "farmer", &cmd.FarmerID,
			"image_graded", map[string]any{
				"grade":      grade,
				"confidence": confidence,
			}, h.clock.Now())
		if err := h.audits.Append(ctx, entry); err != nil {
			return err
		}
		resp.Order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp.Grade = grade
	resp.Confidence = confidence
	return &resp, nil
}
