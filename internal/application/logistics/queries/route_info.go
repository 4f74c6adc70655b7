package queries

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dannymikay/agrimatch-go/internal/application/common"
	"github.com/dannymikay/agrimatch-go/internal/domain/logistics"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
	"github.com/dannymikay/agrimatch-go/pkg/geo"
)

// RouteInfoQuery asks for road distance and duration between two points
type RouteInfoQuery struct {
	From shared.GeoPoint
	To   shared.GeoPoint
}

// RouteInfoResponse carries the route summary. Source is "road" when the
// external router answered, "estimate" for the haversine fallback.
type RouteInfoResponse struct {
	DistanceKm  float64
	DurationMin float64
	Source      string
}

// RouteInfoHandler handles route lookups with a local estimate fallback
type RouteInfoHandler struct {
	oracle logistics.RouteOracle
}

// NewRouteInfoHandler creates a new route info handler
func NewRouteInfoHandler(oracle logistics.RouteOracle) *RouteInfoHandler {
	return &RouteInfoHandler{oracle: oracle}
}

// Handle executes the route info query
func (h *RouteInfoHandler) Handle(ctx context.Context, request common.Request) (common.Response, error) {
	q, ok := request.(*RouteInfoQuery)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	if h.oracle != nil {
		summary, err := h.oracle.Route(ctx, q.From, q.To)
		if err != nil {
			common.LoggerFromContext(ctx).Warn("route oracle failed, using estimate", zap.Error(err))
		} else if summary != nil {
			return &RouteInfoResponse{
				DistanceKm:  summary.DistanceKm,
				DurationMin: summary.DurationMin,
				Source:      "road",
			}, nil
		}
	}

	distanceKm := geo.RoadEstimateKm(q.From.Latitude, q.From.Longitude, q.To.Latitude, q.To.Longitude)
	// 60 km/h average road speed
	return &RouteInfoResponse{
		DistanceKm:  distanceKm,
		DurationMin: distanceKm,
		Source:      "estimate",
	}, nil
}
