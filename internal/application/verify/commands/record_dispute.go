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
)

// RecordDisputeCommand files a dispute on an in-transit order. Only the
// assigned middleman can dispute their own delivery. When a position is
// supplied, a proximity proof against the buyer's delivery point is computed
// and stored with the dispute. Disputes are audit-only: no order or escrow
// state changes here, resolution is a manual back-office process.
type RecordDisputeCommand struct {
	OrderID     uuid.UUID
	MiddlemanID uuid.UUID
	Reason      string
	Details     string
	Latitude    *float64
	Longitude   *float64
}

// RecordDisputeResponse acknowledges the filing. Proof is nil when no
// position was supplied.
type RecordDisputeResponse struct {
	AuditID uuid.UUID
	Proof   *logistics.ProximityProof
}

// RecordDisputeHandler handles dispute filing
type RecordDisputeHandler struct {
	orders      order.Repository
	assignments logistics.AssignmentRepository
	buyers      party.BuyerRepository
	audits      audit.Repository
	tx          common.TxManager
	clock       shared.Clock
}

// NewRecordDisputeHandler creates a new record dispute handler
func NewRecordDisputeHandler(
	orders order.Repository,
	assignments logistics.AssignmentRepository,
	buyers party.BuyerRepository,
	audits audit.Repository,
	tx common.TxManager,
	clock shared.Clock,
) *RecordDisputeHandler {
	return &RecordDisputeHandler{
		orders:      orders,
		assignments: assignments,
		buyers:      buyers,
		audits:      audits,
		tx:          tx,
		clock:       clock,
	}
}

// Handle executes the record dispute command
func (h *RecordDisputeHandler) Handle(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*RecordDisputeCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}
	if cmd.Reason == "" {
		return nil, shared.NewValidationError("reason", "cannot be empty")
	}

	var resp RecordDisputeResponse
	err := h.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := h.orders.FindByID(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		if o.Status != order.StatusInTransit {
			return shared.NewInvalidTransitionError(string(o.Status), "dispute_filed")
		}

		a, err := h.assignments.FindAcceptedByOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		if a.MiddlemanID != cmd.MiddlemanID {
			return shared.NewForbiddenError("only the assigned middleman can dispute this delivery")
		}

		details := map[string]any{
			"reason":  cmd.Reason,
			"details": cmd.Details,
		}
		if cmd.Latitude != nil && cmd.Longitude != nil {
			proof, err := h.proveProximity(ctx, o, *cmd.Latitude, *cmd.Longitude)
			if err != nil {
				return err
			}
			resp.Proof = proof
			details["middleman_lat"] = *cmd.Latitude
			details["middleman_lon"] = *cmd.Longitude
			details["threshold_m"] = logistics.DefaultProximityThresholdM
			details["distance_m"] = proof.DistanceM
			details["within_threshold"] = proof.IsWithin
			details["proof_hash"] = proof.Hash
		}

		entry := audit.NewEntry(o.ID, string(o.Status), string(o.Status), party.RoleMiddleman, &cmd.MiddlemanID,
			"dispute_filed", details, h.clock.Now())
		if err := h.audits.Append(ctx, entry); err != nil {
			return err
		}
		resp.AuditID = entry.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &resp, nil
}

// proveProximity measures the disputing middleman against the buyer's
// delivery point.
func (h *RecordDisputeHandler) proveProximity(ctx context.Context, o *order.Order, lat, lon float64) (*logistics.ProximityProof, error) {
	position, err := shared.NewGeoPoint(lat, lon)
	if err != nil {
		return nil, err
	}
	if o.BuyerID == nil {
		return nil, shared.NewValidationError("order", "no accepted buyer on order")
	}
	buyer, err := h.buyers.FindByID(ctx, *o.BuyerID)
	if err != nil {
		return nil, err
	}
	if buyer.DeliveryLocation == nil {
		return nil, shared.NewValidationError("buyer", "has no delivery location")
	}
	proof := logistics.CheckMiddlemanAtBuyer(position, *buyer.DeliveryLocation, logistics.DefaultProximityThresholdM)
	return &proof, nil
}
