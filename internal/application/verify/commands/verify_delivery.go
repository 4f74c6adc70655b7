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

// VerifyDeliveryCommand is the middleman scanning the buyer's delivery QR at
// the drop-off point. A matching token settles the order: the remaining
// 60%+20% tranches release and the order reaches SETTLED. The reported
// position is measured against the buyer's delivery point and recorded as
// evidence; it never blocks settlement.
type VerifyDeliveryCommand struct {
	OrderID     uuid.UUID
	MiddlemanID uuid.UUID
	QRToken     string
	Latitude    float64
	Longitude   float64
}

// VerifyDeliveryResponse returns the settled order, escrow and the recorded
// proximity proof.
type VerifyDeliveryResponse struct {
	Order  *order.Order
	Escrow *escrow.Escrow
	Proof  logistics.ProximityProof
}

// VerifyDeliveryHandler handles delivery verification and settlement
type VerifyDeliveryHandler struct {
	orders      order.Repository
	assignments logistics.AssignmentRepository
	farmers     party.FarmerRepository
	buyers      party.BuyerRepository
	middlemen   party.MiddlemanRepository
	escrows     *payments.EscrowService
	audits      audit.Repository
	tx          common.TxManager
	pub         common.Publisher
	clock       shared.Clock
}

// NewVerifyDeliveryHandler creates a new verify delivery handler
func NewVerifyDeliveryHandler(
	orders order.Repository,
	assignments logistics.AssignmentRepository,
	farmers party.FarmerRepository,
	buyers party.BuyerRepository,
	middlemen party.MiddlemanRepository,
	escrows *payments.EscrowService,
	audits audit.Repository,
	tx common.TxManager,
	pub common.Publisher,
	clock shared.Clock,
) *VerifyDeliveryHandler {
	return &VerifyDeliveryHandler{
		orders:      orders,
		assignments: assignments,
		farmers:     farmers,
		buyers:      buyers,
		middlemen:   middlemen,
		escrows:     escrows,
		audits:      audits,
		tx:          tx,
		pub:         pub,
		clock:       clock,
	}
}

// Handle executes the verify delivery command
func (h *VerifyDeliveryHandler) Handle(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*VerifyDeliveryCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	position, err := shared.NewGeoPoint(cmd.Latitude, cmd.Longitude)
	if err != nil {
		return nil, err
	}

	var resp VerifyDeliveryResponse
	var outbox common.Outbox
	err = h.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := h.orders.FindByIDForUpdate(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		if o.Status != order.StatusInTransit {
			return shared.NewInvalidTransitionError(string(o.Status), string(order.StatusSettled))
		}
		if o.BuyerID == nil {
			return shared.NewValidationError("order", "no accepted buyer on order")
		}

		a, err := h.assignments.FindAcceptedByOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		if a.MiddlemanID != cmd.MiddlemanID {
			return shared.NewForbiddenError("only the assigned middleman can verify delivery")
		}

		if order.HashQRToken(cmd.QRToken) != o.DeliveryQRHash {
			return shared.NewInvalidTokenError("delivery QR token does not match")
		}

		buyer, err := h.buyers.FindByID(ctx, *o.BuyerID)
		if err != nil {
			return err
		}
		if buyer.DeliveryLocation == nil {
			return shared.NewValidationError("buyer", "has no delivery location")
		}

		proof := logistics.CheckMiddlemanAtBuyer(position, *buyer.DeliveryLocation, logistics.DefaultProximityThresholdM)
		resp.Proof = proof

		e, err := h.escrows.FindByOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		farmer, err := h.farmers.FindByID(ctx, o.FarmerID)
		if err != nil {
			return err
		}
		middleman, err := h.middlemen.FindByID(ctx, cmd.MiddlemanID)
		if err != nil {
			return err
		}

		if err := h.escrows.ReleaseDelivery(ctx, e, farmer.StripeAccountID, middleman.StripeAccountID); err != nil {
			return err
		}

		now := h.clock.Now()
		from := o.Status
		if err := o.ApplyTransition(order.StatusSettled, now); err != nil {
			return err
		}
		if err := h.orders.Save(ctx, o); err != nil {
			return err
		}

		middleman.IsAvailable = true
		middleman.TotalDeliveries++
		middleman.UpdatedAt = now
		if err := h.middlemen.Save(ctx, middleman); err != nil {
			return err
		}

		farmer.TotalTransactions++
		farmer.UpdatedAt = now
		if err := h.farmers.Save(ctx, farmer); err != nil {
			return err
		}

		entry := audit.NewEntry(o.ID, string(from), string(o.Status), party.RoleMiddleman, &cmd.MiddlemanID,
			"delivery_verified", map[string]any{
				"proof_hash":       proof.Hash,
				"distance_m":       proof.DistanceM,
				"within_threshold": proof.IsWithin,
				"escrow_id":        e.ID.String(),
				"farmer_cents":     e.FarmerReleasedCents,
				"middleman_cents":  e.MiddlemanReleasedCents,
			}, now)
		if err := h.audits.Append(ctx, entry); err != nil {
			return err
		}

		outbox.Broadcast(o.ID, events.NewFSMTransition(o.ID, string(from), string(o.Status), "delivery_verified"))
		outbox.Broadcast(o.ID, events.NewEscrowUpdate(o.ID, string(e.Status),
			e.TotalAmountCents, e.FarmerReleasedCents, e.MiddlemanReleasedCents, e.RefundedCents))
		resp.Order = o
		resp.Escrow = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	outbox.Flush(h.pub)
	return &resp, nil
}
