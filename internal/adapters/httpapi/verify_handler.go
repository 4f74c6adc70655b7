package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	verifycommands "github.com/dannymikay/agrimatch-go/internal/application/verify/commands"
	"github.com/dannymikay/agrimatch-go/internal/domain/party"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
)

// VerifyHandler serves the physical handoff endpoints
type VerifyHandler struct {
	mediator common.Mediator
}

// NewVerifyHandler creates a new verify handler
func NewVerifyHandler(mediator common.Mediator) *VerifyHandler {
	return &VerifyHandler{mediator: mediator}
}

// Register mounts the verify routes. The QR scan payload carries the order
// id; the scanning middleman comes from the token.
func (h *VerifyHandler) Register(r *mux.Router) {
	r.HandleFunc("/verify/pickup", h.pickup).Methods(http.MethodPost)
	r.HandleFunc("/verify/delivery", h.delivery).Methods(http.MethodPost)
	r.HandleFunc("/verify/dispute", h.dispute).Methods(http.MethodPost)
}

type pickupRequest struct {
	OrderID string `json:"order_id"`
	QRToken string `json:"qr_token"`
}

func (h *VerifyHandler) pickup(w http.ResponseWriter, r *http.Request) {
	principal, err := requireRole(r, party.RoleMiddleman)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req pickupRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	orderID, err := parseUUIDField(req.OrderID, "order_id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	if req.QRToken == "" {
		respondError(w, r, shared.NewValidationError("qr_token", "cannot be empty"))
		return
	}

	resp, err := h.mediator.Send(r.Context(), &verifycommands.VerifyPickupCommand{
		OrderID:     orderID,
		MiddlemanID: principal.ID,
		QRToken:     req.QRToken,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	verified := resp.(*verifycommands.VerifyPickupResponse)
	respondJSON(w, http.StatusOK, map[string]any{"escrow": newEscrowView(verified.Escrow)})
}

type deliveryRequest struct {
	OrderID   string  `json:"order_id"`
	QRToken   string  `json:"qr_token"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (h *VerifyHandler) delivery(w http.ResponseWriter, r *http.Request) {
	principal, err := requireRole(r, party.RoleMiddleman)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req deliveryRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	orderID, err := parseUUIDField(req.OrderID, "order_id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	if req.QRToken == "" {
		respondError(w, r, shared.NewValidationError("qr_token", "cannot be empty"))
		return
	}

	resp, err := h.mediator.Send(r.Context(), &verifycommands.VerifyDeliveryCommand{
		OrderID:     orderID,
		MiddlemanID: principal.ID,
		QRToken:     req.QRToken,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	verified := resp.(*verifycommands.VerifyDeliveryResponse)
	respondJSON(w, http.StatusOK, map[string]any{
		"order":  newOrderView(verified.Order),
		"escrow": newEscrowView(verified.Escrow),
		"proof": map[string]any{
			"is_within":  verified.Proof.IsWithin,
			"distance_m": verified.Proof.DistanceM,
			"hash":       verified.Proof.Hash,
		},
	})
}

type disputeRequest struct {
	OrderID   string   `json:"order_id"`
	Reason    string   `json:"reason"`
	Details   string   `json:"details"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (h *VerifyHandler) dispute(w http.ResponseWriter, r *http.Request) {
	principal, err := requireRole(r, party.RoleMiddleman)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req disputeRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	orderID, err := parseUUIDField(req.OrderID, "order_id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp, err := h.mediator.Send(r.Context(), &verifycommands.RecordDisputeCommand{
		OrderID:     orderID,
		MiddlemanID: principal.ID,
		Reason:      req.Reason,
		Details:     req.Details,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	filed := resp.(*verifycommands.RecordDisputeResponse)
	body := map[string]any{
		"audit_id": filed.AuditID.String(),
		"status":   "recorded",
	}
	if filed.Proof != nil {
		body["proof"] = map[string]any{
			"is_within":  filed.Proof.IsWithin,
			"distance_m": filed.Proof.DistanceM,
			"hash":       filed.Proof.Hash,
		}
	}
	respondJSON(w, http.StatusAccepted, body)
}
