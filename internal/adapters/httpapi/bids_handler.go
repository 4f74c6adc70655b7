package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	ordercommands "github.com/dannymikay/agrimatch-go/internal/application/orders/commands"
	orderqueries "github.com/dannymikay/agrimatch-go/internal/application/orders/queries"
	"github.com/dannymikay/agrimatch-go/internal/domain/party"
)

// BidsHandler serves the negotiation endpoints
type BidsHandler struct {
	mediator common.Mediator
}

// NewBidsHandler creates a new bids handler
func NewBidsHandler(mediator common.Mediator) *BidsHandler {
	return &BidsHandler{mediator: mediator}
}

// Register mounts the bid routes
func (h *BidsHandler) Register(r *mux.Router) {
	r.HandleFunc("/bids", h.submit).Methods(http.MethodPost)
	r.HandleFunc("/bids/order/{order_id}", h.list).Methods(http.MethodGet)
	r.HandleFunc("/bids/{bid_id}/accept", h.accept).Methods(http.MethodPost)
	r.HandleFunc("/bids/{bid_id}/reject", h.reject).Methods(http.MethodPost)
	r.HandleFunc("/bids/{bid_id}", h.withdraw).Methods(http.MethodDelete)
}

type submitBidRequest struct {
	OrderID    string  `json:"order_id"`
	PricePerKg float64 `json:"price_per_kg"`
	VolumeKg   float64 `json:"volume_kg"`
	Message    string  `json:"message"`
}

func (h *BidsHandler) submit(w http.ResponseWriter, r *http.Request) {
	principal, err := requireRole(r, party.RoleBuyer)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req submitBidRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	orderID, err := parseUUIDField(req.OrderID, "order_id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp, err := h.mediator.Send(r.Context(), &ordercommands.SubmitBidCommand{
		OrderID:    orderID,
		BuyerID:    principal.ID,
		PricePerKg: req.PricePerKg,
		VolumeKg:   req.VolumeKg,
		Message:    req.Message,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	submitted := resp.(*ordercommands.SubmitBidResponse)
	respondJSON(w, http.StatusCreated, newBidView(submitted.Bid))
}

func (h *BidsHandler) list(w http.ResponseWriter, r *http.Request) {
	principal, err := requireRole(r, party.RoleFarmer)
	if err != nil {
		respondError(w, r, err)
		return
	}
	orderID, err := pathUUID(r, "order_id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp, err := h.mediator.Send(r.Context(), &orderqueries.ListBidsQuery{
		OrderID: orderID,
		ActorID: principal.ID,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	listed := resp.(*orderqueries.ListBidsResponse)
	views := make([]bidView, 0, len(listed.Bids))
	for _, b := range listed.Bids {
		views = append(views, newBidView(b))
	}
	respondJSON(w, http.StatusOK, map[string]any{"bids": views})
}

func (h *BidsHandler) accept(w http.ResponseWriter, r *http.Request) {
	principal, err := requireRole(r, party.RoleFarmer)
	if err != nil {
		respondError(w, r, err)
		return
	}
	bidID, err := pathUUID(r, "bid_id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp, err := h.mediator.Send(r.Context(), &ordercommands.AcceptBidCommand{
		BidID:    bidID,
		FarmerID: principal.ID,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	accepted := resp.(*ordercommands.AcceptBidResponse)
	body := map[string]any{
		"order":  newOrderView(accepted.Order),
		"bid":    newBidView(accepted.Bid),
		"escrow": newEscrowView(accepted.Escrow),
		// One-time secrets, never shown again
		"pickup_qr_token":   accepted.PickupQRToken,
		"delivery_qr_token": accepted.DeliveryQRToken,
		"rejected_bids":     accepted.RejectedBids,
	}
	if accepted.ClientSecret != "" {
		body["client_secret"] = accepted.ClientSecret
	}
	respondJSON(w, http.StatusOK, body)
}

func (h *BidsHandler) reject(w http.ResponseWriter, r *http.Request) {
	principal, err := requireRole(r, party.RoleFarmer)
	if err != nil {
		respondError(w, r, err)
		return
	}
	bidID, err := pathUUID(r, "bid_id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp, err := h.mediator.Send(r.Context(), &ordercommands.RejectBidCommand{
		BidID:    bidID,
		FarmerID: principal.ID,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	rejected := resp.(*ordercommands.RejectBidResponse)
	respondJSON(w, http.StatusOK, newBidView(rejected.Bid))
}

func (h *BidsHandler) withdraw(w http.ResponseWriter, r *http.Request) {
	principal, err := requireRole(r, party.RoleBuyer)
	if err != nil {
		respondError(w, r, err)
		return
	}
	bidID, err := pathUUID(r, "bid_id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	if _, err := h.mediator.Send(r.Context(), &ordercommands.WithdrawBidCommand{
		BidID:   bidID,
		BuyerID: principal.ID,
	}); err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}
