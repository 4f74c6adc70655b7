package queries

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	"github.com/dannymikay/agrimatch-go/internal/domain/logistics"
	"github.com/dannymikay/agrimatch-go/internal/domain/order"
	"github.com/dannymikay/agrimatch-go/internal/domain/party"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
)

// Corridor search defaults
const (
	DefaultCorridorRadiusKm = 25.0
	DefaultCandidateLimit   = 20
)

// SearchMiddlemenQuery finds candidate truckers for an order's route
type SearchMiddlemenQuery struct {
	OrderID uuid.UUID
}

// SearchMiddlemenResponse returns ranked candidates
type SearchMiddlemenResponse struct {
	Candidates []logistics.Candidate
}

// SearchMiddlemenHandler handles the corridor search. The corridor runs from
// the farmer's location to the buyer's delivery location.
type SearchMiddlemenHandler struct {
	orders  order.Repository
	farmers party.FarmerRepository
	buyers  party.BuyerRepository
	matcher logistics.Matcher
}

// NewSearchMiddlemenHandler creates a new search middlemen handler
func NewSearchMiddlemenHandler(
	orders order.Repository,
	farmers party.FarmerRepository,
	buyers party.BuyerRepository,
	matcher logistics.Matcher,
) *SearchMiddlemenHandler {
	return &SearchMiddlemenHandler{
		orders:  orders,
		farmers: farmers,
		buyers:  buyers,
		matcher: matcher,
	}
}

// Handle executes the search middlemen query
func (h *SearchMiddlemenHandler) Handle(ctx context.Context, request common.Request) (common.Response, error) {
	q, ok := request.(*SearchMiddlemenQuery)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	o, err := h.orders.FindByID(ctx, q.OrderID)
	if err != nil {
		return nil, err
	}
	if o.Status != order.StatusLogisticsSearch {
		return nil, shared.NewInvalidTransitionError(string(o.Status), string(order.StatusLogisticsSearch))
	}
	if o.BuyerID == nil {
		return nil, shared.NewValidationError("order", "no accepted buyer on order")
	}

	pickup, dropoff, err := h.routeEndpoints(ctx, o)
	if err != nil {
		return nil, err
	}

	soldVolume := o.TotalVolumeKg - o.AvailableVolumeKg
	candidates, err := h.matcher.FindNearRoute(ctx, logistics.MatchQuery{
		Pickup:            pickup,
		Dropoff:           dropoff,
		CorridorRadiusKm:  DefaultCorridorRadiusKm,
		MinCapacityKg:     soldVolume,
		RequiresColdChain: o.RequiresColdChain,
		Limit:             DefaultCandidateLimit,
	})
	if err != nil {
		return nil, err
	}
	return &SearchMiddlemenResponse{Candidates: candidates}, nil
}

func (h *SearchMiddlemenHandler) routeEndpoints(ctx context.Context, o *order.Order) (shared.GeoPoint, shared.GeoPoint, error) {
	farmer, err := h.farmers.FindByID(ctx, o.FarmerID)
	if err != nil {
		return shared.GeoPoint{}, shared.GeoPoint{}, err
	}
	if farmer.Location == nil {
		return shared.GeoPoint{}, shared.GeoPoint{}, shared.NewValidationError("farmer", "has no registered location")
	}

	buyer, err := h.buyers.FindByID(ctx, *o.BuyerID)
	if err != nil {
		return shared.GeoPoint{}, shared.GeoPoint{}, err
	}
	if buyer.DeliveryLocation == nil {
		return shared.GeoPoint{}, shared.GeoPoint{}, shared.NewValidationError("buyer", "has no delivery location")
	}
	return *farmer.Location, *buyer.DeliveryLocation, nil
}
