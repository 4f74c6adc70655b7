package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	logisticscommands "github.com/dannymikay/agrimatch-go/internal/application/logistics/commands"
	logisticsqueries "github.com/dannymikay/agrimatch-go/internal/application/logistics/queries"
	"github.com/dannymikay/agrimatch-go/internal/domain/party"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
)

// LogisticsHandler serves the transport matching endpoints
type LogisticsHandler struct {
	mediator common.Mediator
}

// NewLogisticsHandler creates a new logistics handler
func NewLogisticsHandler(mediator common.Mediator) *LogisticsHandler {
	return &LogisticsHandler{mediator: mediator}
}

// Register mounts the authenticated logistics routes
func (h *LogisticsHandler) Register(r *mux.Router) {
	r.HandleFunc("/logistics/offer/{order_id}", h.offer).Methods(http.MethodPost)
	r.HandleFunc("/logistics/accept/{assignment_id}", h.accept).Methods(http.MethodPost)
	r.HandleFunc("/logistics/reject/{assignment_id}", h.reject).Methods(http.MethodPost)
	r.HandleFunc("/logistics/route", h.route).Methods(http.MethodGet)
}

// RegisterPublic mounts the corridor search, readable without a token
func (h *LogisticsHandler) RegisterPublic(r *mux.Router) {
	r.HandleFunc("/logistics/search/{order_id}", h.search).Methods(http.MethodGet)
}

func (h *LogisticsHandler) search(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathUUID(r, "order_id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp, err := h.mediator.Send(r.Context(), &logisticsqueries.SearchMiddlemenQuery{OrderID: orderID})
	if err != nil {
		respondError(w, r, err)
		return
	}

	found := resp.(*logisticsqueries.SearchMiddlemenResponse)
	views := make([]candidateView, 0, len(found.Candidates))
	for _, c := range found.Candidates {
		views = append(views, newCandidateView(c))
	}
	respondJSON(w, http.StatusOK, map[string]any{"candidates": views})
}

type offerRequest struct {
	MiddlemanID         string   `json:"middleman_id"`
	EstimatedDistanceKm *float64 `json:"estimated_distance_km"`
}

func (h *LogisticsHandler) offer(w http.ResponseWriter, r *http.Request) {
	if _, err := requireRole(r, party.RoleFarmer); err != nil {
		respondError(w, r, err)
		return
	}
	orderID, err := pathUUID(r, "order_id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req offerRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	middlemanID, err := parseUUIDField(req.MiddlemanID, "middleman_id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp, err := h.mediator.Send(r.Context(), &logisticscommands.OfferAssignmentCommand{
		OrderID:             orderID,
		MiddlemanID:         middlemanID,
		EstimatedDistanceKm: req.EstimatedDistanceKm,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	offered := resp.(*logisticscommands.OfferAssignmentResponse)
	respondJSON(w, http.StatusCreated, newAssignmentView(offered.Assignment))
}

func (h *LogisticsHandler) accept(w http.ResponseWriter, r *http.Request) {
	principal, err := requireRole(r, party.RoleMiddleman)
	if err != nil {
		respondError(w, r, err)
		return
	}
	assignmentID, err := pathUUID(r, "assignment_id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp, err := h.mediator.Send(r.Context(), &logisticscommands.AcceptAssignmentCommand{
		AssignmentID: assignmentID,
		MiddlemanID:  principal.ID,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	accepted := resp.(*logisticscommands.AcceptAssignmentResponse)
	respondJSON(w, http.StatusOK, map[string]any{
		"assignment": newAssignmentView(accepted.Assignment),
		"order":      newOrderView(accepted.Order),
	})
}

func (h *LogisticsHandler) reject(w http.ResponseWriter, r *http.Request) {
	principal, err := requireRole(r, party.RoleMiddleman)
	if err != nil {
		respondError(w, r, err)
		return
	}
	assignmentID, err := pathUUID(r, "assignment_id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp, err := h.mediator.Send(r.Context(), &logisticscommands.RejectAssignmentCommand{
		AssignmentID: assignmentID,
		MiddlemanID:  principal.ID,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	rejected := resp.(*logisticscommands.RejectAssignmentResponse)
	respondJSON(w, http.StatusOK, newAssignmentView(rejected.Assignment))
}

func (h *LogisticsHandler) route(w http.ResponseWriter, r *http.Request) {
	from, err := queryPoint(r, "from_lat", "from_lon")
	if err != nil {
		respondError(w, r, err)
		return
	}
	to, err := queryPoint(r, "to_lat", "to_lon")
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp, err := h.mediator.Send(r.Context(), &logisticsqueries.RouteInfoQuery{From: from, To: to})
	if err != nil {
		respondError(w, r, err)
		return
	}

	info := resp.(*logisticsqueries.RouteInfoResponse)
	respondJSON(w, http.StatusOK, map[string]any{
		"distance_km":  info.DistanceKm,
		"duration_min": info.DurationMin,
		"source":       info.Source,
	})
}

func queryPoint(r *http.Request, latName, lonName string) (shared.GeoPoint, error) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get(latName), 64)
	if err != nil {
		return shared.GeoPoint{}, shared.NewValidationError(latName, "must be a number")
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get(lonName), 64)
	if err != nil {
		return shared.GeoPoint{}, shared.NewValidationError(lonName, "must be a number")
	}
	return shared.NewGeoPoint(lat, lon)
}
