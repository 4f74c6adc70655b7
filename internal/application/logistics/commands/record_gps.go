package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	"github.com/dannymikay/agrimatch-go/internal/domain/logistics"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
)

// RecordGPSCommand persists a middleman GPS fix against their active
// assignment. The websocket layer relays every inbound fix to the order room
// and sends only sampled frames here; this command owns persistence, not
// fan-out.
type RecordGPSCommand struct {
	OrderID     uuid.UUID
	MiddlemanID uuid.UUID
	Latitude    float64
	Longitude   float64
}

// RecordGPSResponse is empty on success
type RecordGPSResponse struct{}

// RecordGPSHandler persists the fix and re-arms the silence alarm
type RecordGPSHandler struct {
	assignments logistics.AssignmentRepository
	middlemen   middlemanLocator
	tx          common.TxManager
	clock       shared.Clock
}

type middlemanLocator interface {
	UpdateLocation(ctx context.Context, id uuid.UUID, lat, lon float64) error
}

// NewRecordGPSHandler creates a new record GPS handler
func NewRecordGPSHandler(
	assignments logistics.AssignmentRepository,
	middlemen middlemanLocator,
	tx common.TxManager,
	clock shared.Clock,
) *RecordGPSHandler {
	return &RecordGPSHandler{
		assignments: assignments,
		middlemen:   middlemen,
		tx:          tx,
		clock:       clock,
	}
}

// Handle executes the record GPS command
func (h *RecordGPSHandler) Handle(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*RecordGPSCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	if _, err := shared.NewGeoPoint(cmd.Latitude, cmd.Longitude); err != nil {
		return nil, err
	}

	err := h.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := h.assignments.FindAcceptedByOrder(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		if a.MiddlemanID != cmd.MiddlemanID {
			return shared.NewForbiddenError("GPS fix from a middleman not on this order")
		}

		a.RecordHeartbeat(h.clock.Now())
		if err := h.assignments.Save(ctx, a); err != nil {
			return err
		}
		return h.middlemen.UpdateLocation(ctx, cmd.MiddlemanID, cmd.Latitude, cmd.Longitude)
	})
	if err != nil {
		return nil, err
	}
	return &RecordGPSResponse{}, nil
}
