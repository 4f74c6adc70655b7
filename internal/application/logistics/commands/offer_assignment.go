package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	"github.com/dannymikay/agrimatch-go/internal/domain/logistics"
	"github.com/dannymikay/agrimatch-go/internal/domain/order"
	"github.com/dannymikay/agrimatch-go/internal/domain/party"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
	"github.com/dannymikay/agrimatch-go/internal/events"
)

// OfferAssignmentCommand offers a transport job to one middleman. The order
// must be in LOGISTICS_SEARCH.
type OfferAssignmentCommand struct {
	OrderID             uuid.UUID
	MiddlemanID         uuid.UUID
	EstimatedDistanceKm *float64
}

// OfferAssignmentResponse returns the offered assignment
type OfferAssignmentResponse struct {
	Assignment *logistics.Assignment
}

// OfferAssignmentHandler handles assignment offers
type OfferAssignmentHandler struct {
	orders      order.Repository
	assignments logistics.AssignmentRepository
	middlemen   party.MiddlemanRepository
	tx          common.TxManager
	pub         common.Publisher
	clock       shared.Clock
}

// NewOfferAssignmentHandler creates a new offer assignment handler
func NewOfferAssignmentHandler(
	orders order.Repository,
	assignments logistics.AssignmentRepository,
	middlemen party.MiddlemanRepository,
	tx common.TxManager,
	pub common.Publisher,
	clock shared.Clock,
) *OfferAssignmentHandler {
	return &OfferAssignmentHandler{
		orders:      orders,
		assignments: assignments,
		middlemen:   middlemen,
		tx:          tx,
		pub:         pub,
		clock:       clock,
	}
}

// Handle executes the offer assignment command
func (h *OfferAssignmentHandler) Handle(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*OfferAssignmentCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	var a *logistics.Assignment
	var o *order.Order
	err := h.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = h.orders.FindByID(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		if o.Status != order.StatusLogisticsSearch {
			return shared.NewInvalidTransitionError(string(o.Status), string(logistics.AssignmentOffered))
		}

		m, err := h.middlemen.FindByID(ctx, cmd.MiddlemanID)
		if err != nil {
			return err
		}
		if !m.IsAvailable {
			return shared.NewInvalidTransitionError("unavailable", string(logistics.AssignmentOffered))
		}
		if o.RequiresColdChain && !m.TruckType.SatisfiesColdChain() {
			return shared.NewValidationError("middleman_id", "truck cannot carry cold-chain produce")
		}

		// One assignment per order. A REJECTED row is re-offered in place;
		// an OFFERED or ACCEPTED one blocks a second offer.
		existing, err := h.assignments.FindByOrderForUpdate(ctx, o.ID)
		if err != nil {
			var notFound *shared.NotFoundError
			if !errors.As(err, &notFound) {
				return err
			}
		}
		if existing != nil {
			if err := existing.Reoffer(m.ID, cmd.EstimatedDistanceKm, h.clock.Now()); err != nil {
				return err
			}
			a = existing
			return h.assignments.Save(ctx, a)
		}

		a = logistics.NewAssignment(o.ID, m.ID, cmd.EstimatedDistanceKm, h.clock)
		return h.assignments.Create(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	h.pub.NotifyMiddleman(cmd.MiddlemanID,
		events.NewAssignmentOffer(o.ID, a.ID, o.CropType, o.TotalVolumeKg-o.AvailableVolumeKg, cmd.EstimatedDistanceKm))
	return &OfferAssignmentResponse{Assignment: a}, nil
}
