package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	"github.com/dannymikay/agrimatch-go/internal/application/payments"
	"github.com/dannymikay/agrimatch-go/internal/domain/audit"
	"github.com/dannymikay/agrimatch-go/internal/domain/escrow"
	"github.com/dannymikay/agrimatch-go/internal/domain/logistics"
	"github.com/dannymikay/agrimatch-go/internal/domain/order"
	"github.com/dannymikay/agrimatch-go/internal/domain/party"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
	"github.com/dannymikay/agrimatch-go/internal/events"
)

// VerifyPickupCommand is the middleman scanning the farmer's pickup QR. A
// matching token releases the 20% pickup tranche.
type VerifyPickupCommand struct {
	OrderID     uuid.UUID
	MiddlemanID uuid.UUID
	QRToken     string
}

// VerifyPickupResponse returns the updated escrow
type VerifyPickupResponse struct {
	Escrow *escrow.Escrow
}

// VerifyPickupHandler handles pickup verification
type VerifyPickupHandler struct {
	orders      order.Repository
	assignments logistics.AssignmentRepository
	farmers     party.FarmerRepository
	escrows     *payments.EscrowService
	audits      audit.Repository
	tx          common.TxManager
	pub         common.Publisher
	clock       shared.Clock
}

// NewVerifyPickupHandler creates a new verify pickup handler
func NewVerifyPickupHandler(
	orders order.Repository,
	assignments logistics.AssignmentRepository,
	farmers party.FarmerRepository,
	escrows *payments.EscrowService,
	audits audit.Repository,
	tx common.TxManager,
	pub common.Publisher,
	clock shared.Clock,
) *VerifyPickupHandler {
	return &VerifyPickupHandler{
		orders:      orders,
		assignments: assignments,
		farmers:     farmers,
		escrows:     escrows,
		audits:      audits,
		tx:          tx,
		pub:         pub,
		clock:       clock,
	}
}

// Handle executes the verify pickup command
func (h *VerifyPickupHandler) Handle(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*VerifyPickupCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	var resp VerifyPickupResponse
	var outbox common.Outbox
	err := h.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := h.orders.FindByIDForUpdate(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		if o.Status != order.StatusInTransit {
			return shared.NewInvalidTransitionError(string(o.Status), "pickup_verified")
		}

		a, err := h.assignments.FindAcceptedByOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		if a.MiddlemanID != cmd.MiddlemanID {
			return shared.NewForbiddenError("only the assigned middleman can verify pickup")
		}

		if order.HashQRToken(cmd.QRToken) != o.PickupQRHash {
			return shared.NewInvalidTokenError("pickup QR token does not match")
		}

		// The scan is itself a liveness signal; without it a middleman who
		// lingered at the farm past the silence window would be flagged the
		// moment they drive off.
		now := h.clock.Now()
		a.RecordHeartbeat(now)
		if err := h.assignments.Save(ctx, a); err != nil {
			return err
		}

		e, err := h.escrows.FindByOrder(ctx, o.ID)
		if err != nil {
			return err
		}

		farmer, err := h.farmers.FindByID(ctx, o.FarmerID)
		if err != nil {
			return err
		}
		if err := h.escrows.ReleasePickup(ctx, e, farmer.StripeAccountID); err != nil {
			return err
		}

		entry := audit.NewEntry(o.ID, "", "", party.RoleMiddleman, &cmd.MiddlemanID,
			"pickup_verified", map[string]any{
				"escrow_id":      e.ID.String(),
				"released_cents": e.FarmerReleasedCents,
			}, now)
		if err := h.audits.Append(ctx, entry); err != nil {
			return err
		}

		outbox.Broadcast(o.ID, events.NewEscrowUpdate(o.ID, string(e.Status),
			e.TotalAmountCents, e.FarmerReleasedCents, e.MiddlemanReleasedCents, e.RefundedCents))
		resp.Escrow = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	outbox.Flush(h.pub)
	return &resp, nil
}
