package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	"github.com/dannymikay/agrimatch-go/internal/application/payments"
	"github.com/dannymikay/agrimatch-go/internal/domain/audit"
	"github.com/dannymikay/agrimatch-go/internal/domain/escrow"
	"github.com/dannymikay/agrimatch-go/internal/domain/order"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
	"github.com/dannymikay/agrimatch-go/internal/events"
)

// AcceptBidCommand is the farmer accepting one bid, which locks in the deal:
// volume is reserved, rival bids are rejected, QR secrets are minted, the
// escrow is opened and the order enters LOGISTICS_SEARCH.
type AcceptBidCommand struct {
	BidID    uuid.UUID
	FarmerID uuid.UUID
}

// AcceptBidResponse carries the one-time QR secrets. The raw tokens are shown
// exactly once; only their hashes persist.
type AcceptBidResponse struct {
	Order           *order.Order
	Bid             *order.Bid
	Escrow          *escrow.Escrow
	PickupQRToken   string
	DeliveryQRToken string
	ClientSecret    string
	RejectedBids    int64
}

// AcceptBidHandler handles bid acceptance
type AcceptBidHandler struct {
	orders  order.Repository
	bids    order.BidRepository
	audits  audit.Repository
	escrows *payments.EscrowService
	tx      common.TxManager
	pub     common.Publisher
	clock   shared.Clock
}

// NewAcceptBidHandler creates a new accept bid handler
func NewAcceptBidHandler(
	orders order.Repository,
	bids order.BidRepository,
	audits audit.Repository,
	escrows *payments.EscrowService,
	tx common.TxManager,
	pub common.Publisher,
	clock shared.Clock,
) *AcceptBidHandler {
	return &AcceptBidHandler{
		orders:  orders,
		bids:    bids,
		audits:  audits,
		escrows: escrows,
		tx:      tx,
		pub:     pub,
		clock:   clock,
	}
}

// Handle executes the accept bid command
func (h *AcceptBidHandler) Handle(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*AcceptBidCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	var resp AcceptBidResponse
	var outbox common.Outbox
	err := h.tx.WithinTx(ctx, func(ctx context.Context) error {
		bid, err := h.bids.FindByIDForUpdate(ctx, cmd.BidID)
		if err != nil {
			return err
		}
		o, err := h.orders.FindByIDForUpdate(ctx, bid.OrderID)
		if err != nil {
			return err
		}
		if o.FarmerID != cmd.FarmerID {
			return shared.NewForbiddenError("only the listing farmer can accept a bid")
		}
		if !bid.IsPending() {
			return shared.NewInvalidTransitionError(string(bid.Status), string(order.BidAccepted))
		}
		if !order.CanTransition(o.Status, order.StatusLogisticsSearch) {
			return shared.NewInvalidTransitionError(string(o.Status), string(order.StatusLogisticsSearch))
		}

		if err := o.ReserveVolume(bid.VolumeKg); err != nil {
			return err
		}

		rejected, err := h.bids.RejectOtherPending(ctx, o.ID, bid.ID)
		if err != nil {
			return fmt.Errorf("failed to reject rival bids: %w", err)
		}
		resp.RejectedBids = rejected

		now := h.clock.Now()
		bid.Status = order.BidAccepted
		bid.UpdatedAt = now
		if err := h.bids.Save(ctx, bid); err != nil {
			return err
		}

		o.BuyerID = &bid.BuyerID
		o.AcceptedPricePerKg = &bid.PricePerKg

		if err := h.mintQRSecrets(o, &resp); err != nil {
			return err
		}

		e, clientSecret, err := h.escrows.Open(ctx, o.ID, bid.TotalCents())
		if err != nil {
			return err
		}
		resp.Escrow = e
		resp.ClientSecret = clientSecret

		from := o.Status
		if err := o.ApplyTransition(order.StatusLogisticsSearch, now); err != nil {
			return err
		}
		if err := h.orders.Save(ctx, o); err != nil {
			return err
		}

		entry := audit.NewEntry(o.ID, string(from), string(o.Status), "farmer", &cmd.FarmerID,
			"bid_accepted", map[string]any{
				"bid_id":             bid.ID.String(),
				"buyer_id":           bid.BuyerID.String(),
				"volume_kg":          bid.VolumeKg,
				"price_per_kg":       bid.PricePerKg,
				"escrow_total_cents": e.TotalAmountCents,
				"rejected_bids":      rejected,
			}, now)
		if err := h.audits.Append(ctx, entry); err != nil {
			return err
		}

		outbox.Broadcast(o.ID, events.NewFSMTransition(o.ID, string(from), string(o.Status), "bid_accepted"))
		outbox.Broadcast(o.ID, events.NewEscrowUpdate(o.ID, string(e.Status),
			e.TotalAmountCents, e.FarmerReleasedCents, e.MiddlemanReleasedCents, e.RefundedCents))

		resp.Order = o
		resp.Bid = bid
		return nil
	})
	if err != nil {
		return nil, err
	}

	outbox.Flush(h.pub)
	return &resp, nil
}

// mintQRSecrets generates both handoff tokens, storing hashes on the order
// and raws on the response.
func (h *AcceptBidHandler) mintQRSecrets(o *order.Order, resp *AcceptBidResponse) error {
	pickupRaw, pickupHash, err := order.MintQRToken()
	if err != nil {
		return fmt.Errorf("failed to mint pickup token: %w", err)
	}
	deliveryRaw, deliveryHash, err := order.MintQRToken()
	if err != nil {
		return fmt.Errorf("failed to mint delivery token: %w", err)
	}
	o.PickupQRHash = pickupHash
	o.DeliveryQRHash = deliveryHash
	resp.PickupQRToken = pickupRaw
	resp.DeliveryQRToken = deliveryRaw
	return nil
}
