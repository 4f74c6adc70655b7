package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	"github.com/dannymikay/agrimatch-go/internal/domain/audit"
	"github.com/dannymikay/agrimatch-go/internal/domain/logistics"
	"github.com/dannymikay/agrimatch-go/internal/domain/order"
	"github.com/dannymikay/agrimatch-go/internal/domain/party"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
	"github.com/dannymikay/agrimatch-go/internal/events"
)

// AcceptAssignmentCommand is a middleman taking a transport job. Moves the
// order LOGISTICS_SEARCH → IN_TRANSIT and marks the middleman busy.
type AcceptAssignmentCommand struct {
	AssignmentID uuid.UUID
	MiddlemanID  uuid.UUID
}

// AcceptAssignmentResponse returns the accepted assignment and order
type AcceptAssignmentResponse struct {
	Assignment *logistics.Assignment
	Order      *order.Order
}

// AcceptAssignmentHandler handles assignment acceptance
type AcceptAssignmentHandler struct {
	orders      order.Repository
	assignments logistics.AssignmentRepository
	middlemen   party.MiddlemanRepository
	audits      audit.Repository
	tx          common.TxManager
	pub         common.Publisher
	clock       shared.Clock
}

// NewAcceptAssignmentHandler creates a new accept assignment handler
func NewAcceptAssignmentHandler(
	orders order.Repository,
	assignments logistics.AssignmentRepository,
	middlemen party.MiddlemanRepository,
	audits audit.Repository,
	tx common.TxManager,
	pub common.Publisher,
	clock shared.Clock,
) *AcceptAssignmentHandler {
	return &AcceptAssignmentHandler{
		orders:      orders,
		assignments: assignments,
		middlemen:   middlemen,
		audits:      audits,
		tx:          tx,
		pub:         pub,
		clock:       clock,
	}
}

// Handle executes the accept assignment command
func (h *AcceptAssignmentHandler) Handle(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*AcceptAssignmentCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	var resp AcceptAssignmentResponse
	var outbox common.Outbox
	err := h.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := h.assignments.FindByIDForUpdate(ctx, cmd.AssignmentID)
		if err != nil {
			return err
		}
		if a.MiddlemanID != cmd.MiddlemanID {
			return shared.NewForbiddenError("assignment offered to another middleman")
		}

		o, err := h.orders.FindByIDForUpdate(ctx, a.OrderID)
		if err != nil {
			return err
		}

		now := h.clock.Now()
		if err := a.Accept(now); err != nil {
			return err
		}
		if err := h.assignments.Save(ctx, a); err != nil {
			return err
		}

		from := o.Status
		if err := o.ApplyTransition(order.StatusInTransit, now); err != nil {
			return err
		}
		if err := h.orders.Save(ctx, o); err != nil {
			return err
		}

		m, err := h.middlemen.FindByID(ctx, cmd.MiddlemanID)
		if err != nil {
			return err
		}
		m.IsAvailable = false
		m.UpdatedAt = now
		if err := h.middlemen.Save(ctx, m); err != nil {
			return err
		}

		entry := audit.NewEntry(o.ID, string(from), string(o.Status), party.RoleMiddleman, &cmd.MiddlemanID,
			"assignment_accepted", map[string]any{"assignment_id": a.ID.String()}, now)
		if err := h.audits.Append(ctx, entry); err != nil {
			return err
		}

		outbox.Broadcast(o.ID, events.NewFSMTransition(o.ID, string(from), string(o.Status), "assignment_accepted"))
		resp.Assignment = a
		resp.Order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	outbox.Flush(h.pub)
	return &resp, nil
}
