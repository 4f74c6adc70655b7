package httpapi

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	ordercommands "github.com/dannymikay/agrimatch-go/internal/application/orders/commands"
	orderqueries "github.com/dannymikay/agrimatch-go/internal/application/orders/queries"
	"github.com/dannymikay/agrimatch-go/internal/domain/audit"
	"github.com/dannymikay/agrimatch-go/internal/domain/order"
	"github.com/dannymikay/agrimatch-go/internal/domain/party"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
)

// OrdersHandler serves the listing endpoints
type OrdersHandler struct {
	mediator common.Mediator
	audits   audit.Repository
}

// NewOrdersHandler creates a new orders handler
func NewOrdersHandler(mediator common.Mediator, audits audit.Repository) *OrdersHandler {
	return &OrdersHandler{mediator: mediator, audits: audits}
}

// Register mounts the authenticated order routes
func (h *OrdersHandler) Register(r *mux.Router) {
	r.HandleFunc("/orders", h.create).Methods(http.MethodPost)
	r.HandleFunc("/orders/{order_id}", h.delete).Methods(http.MethodDelete)
	r.HandleFunc("/orders/{order_id}/audit", h.auditTrail).Methods(http.MethodGet)
	r.HandleFunc("/orders/{order_id}/upload-image", h.uploadImage).Methods(http.MethodPost)
}

// RegisterPublic mounts the marketplace reads, open to unauthenticated
// browsing.
func (h *OrdersHandler) RegisterPublic(r *mux.Router) {
	r.HandleFunc("/orders", h.list).Methods(http.MethodGet)
	r.HandleFunc("/orders/{order_id}", h.get).Methods(http.MethodGet)
}

type createOrderRequest struct {
	CropType          string     `json:"crop_type"`
	Variety           string     `json:"variety"`
	TotalVolumeKg     float64    `json:"total_volume_kg"`
	AskingPricePerKg  float64    `json:"asking_price_per_kg"`
	RequiresColdChain bool       `json:"requires_cold_chain"`
	HarvestDate       *time.Time `json:"harvest_date"`
	CropImageURL      string     `json:"crop_image_url"`
}

func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	principal, err := requireRole(r, party.RoleFarmer)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req createOrderRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	resp, err := h.mediator.Send(r.Context(), &ordercommands.CreateOrderCommand{
		FarmerID:          principal.ID,
		CropType:          req.CropType,
		Variety:           req.Variety,
		TotalVolumeKg:     req.TotalVolumeKg,
		AskingPricePerKg:  req.AskingPricePerKg,
		RequiresColdChain: req.RequiresColdChain,
		HarvestDate:       req.HarvestDate,
		CropImageURL:      req.CropImageURL,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	created := resp.(*ordercommands.CreateOrderResponse)
	respondJSON(w, http.StatusCreated, newOrderView(created.Order))
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	filter := order.ListFilter{}
	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		status := order.Status(s)
		filter.Status = &status
	}
	filter.CropType = q.Get("crop_type")
	if s := q.Get("farmer_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			respondError(w, r, shared.NewValidationError("farmer_id", "must be a UUID"))
			return
		}
		filter.FarmerID = &id
	}

	resp, err := h.mediator.Send(r.Context(), &orderqueries.ListOrdersQuery{Filter: filter})
	if err != nil {
		respondError(w, r, err)
		return
	}

	listed := resp.(*orderqueries.ListOrdersResponse)
	views := make([]orderView, 0, len(listed.Orders))
	for _, o := range listed.Orders {
		views = append(views, newOrderView(o))
	}
	respondJSON(w, http.StatusOK, map[string]any{"orders": views})
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathUUID(r, "order_id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp, err := h.mediator.Send(r.Context(), &orderqueries.GetOrderQuery{OrderID: orderID})
	if err != nil {
		respondError(w, r, err)
		return
	}

	got := resp.(*orderqueries.GetOrderResponse)
	body := map[string]any{"order": newOrderView(got.Order)}
	if got.Escrow != nil {
		body["escrow"] = newEscrowView(got.Escrow)
	}
	if got.MarketPricePerKg != nil {
		body["market_price_per_kg"] = *got.MarketPricePerKg
	}
	respondJSON(w, http.StatusOK, body)
}

func (h *OrdersHandler) delete(w http.ResponseWriter, r *http.Request) {
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

	if _, err := h.mediator.Send(r.Context(), &ordercommands.DeleteOrderCommand{
		OrderID:  orderID,
		FarmerID: principal.ID,
	}); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// maxUploadBytes caps crop image uploads
const maxUploadBytes = 8 << 20

func (h *OrdersHandler) uploadImage(w http.ResponseWriter, r *http.Request) {
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

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, r, shared.NewValidationError("file", "expected a multipart upload"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, shared.NewValidationError("file", "missing file field"))
		return
	}
	defer file.Close()

	// Stored under the static tree; object storage would slot in here.
	imageURL := fmt.Sprintf("/static/crops/%s/%s", orderID, filepath.Base(header.Filename))

	resp, err := h.mediator.Send(r.Context(), &ordercommands.GradeListingCommand{
		OrderID:  orderID,
		FarmerID: principal.ID,
		ImageURL: imageURL,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	graded := resp.(*ordercommands.GradeListingResponse)
	respondJSON(w, http.StatusOK, map[string]any{
		"order":      newOrderView(graded.Order),
		"grade":      graded.Grade,
		"confidence": graded.Confidence,
		"image_url":  imageURL,
	})
}

func (h *OrdersHandler) auditTrail(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathUUID(r, "order_id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	entries, err := h.audits.ListByOrder(r.Context(), orderID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	views := make([]auditView, 0, len(entries))
	for _, e := range entries {
		views = append(views, newAuditView(e))
	}
	respondJSON(w, http.StatusOK, map[string]any{"entries": views})
}

// pathUUID parses a UUID path variable
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := mux.Vars(r)[name]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, shared.NewValidationError(name, "must be a UUID")
	}
	return id, nil
}

// parseUUIDField parses a UUID from a request body field
func parseUUIDField(raw, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, shared.NewValidationError(name, "must be a UUID")
	}
	return id, nil
}
