package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	"github.com/dannymikay/agrimatch-go/internal/domain/logistics"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
)

// RejectAssignmentCommand is a middleman declining an offered job. The order
// stays in LOGISTICS_SEARCH for other candidates or the timeout monitor.
type RejectAssignmentCommand struct {
	AssignmentID uuid.UUID
	MiddlemanID  uuid.UUID
}

// RejectAssignmentResponse returns the rejected assignment
type RejectAssignmentResponse struct {
	Assignment *logistics.Assignment
}

// RejectAssignmentHandler handles assignment rejection
type RejectAssignmentHandler struct {
	assignments logistics.AssignmentRepository
	tx          common.TxManager
	clock       shared.Clock
}

// NewRejectAssignmentHandler creates a new reject assignment handler
func NewRejectAssignmentHandler(assignments logistics.AssignmentRepository, tx common.TxManager, clock shared.Clock) *RejectAssignmentHandler {
	return &RejectAssignmentHandler{assignments: assignments, tx: tx, clock: clock}
}

// Handle executes the reject assignment command
func (h *RejectAssignmentHandler) Handle(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*RejectAssignmentCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	var a *logistics.Assignment
	err := h.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		a, err = h.assignments.FindByIDForUpdate(ctx, cmd.AssignmentID)
		if err != nil {
			return err
		}
		if a.MiddlemanID != cmd.MiddlemanID {
			return shared.NewForbiddenError("assignment offered to another middleman")
		}
		if err := a.Reject(h.clock.Now()); err != nil {
			return err
		}
		return h.assignments.Save(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	return &RejectAssignmentResponse{Assignment: a}, nil
}
