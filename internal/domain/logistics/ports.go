package logistics

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
)

// AssignmentRepository defines assignment persistence operations
type AssignmentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Assignment, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Assignment, error)

	// FindAcceptedByOrder returns the single ACCEPTED assignment for the order.
	FindAcceptedByOrder(ctx context.Context, orderID uuid.UUID) (*Assignment, error)

	// FindByOrderForUpdate locks the order's assignment row, whatever its
	// status. An order carries at most one assignment.
	FindByOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*Assignment, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*Assignment, error)
	ListByMiddleman(ctx context.Context, middlemanID uuid.UUID) ([]*Assignment, error)

	Create(ctx context.Context, a *Assignment) error
	Save(ctx context.Context, a *Assignment) error

	// FindStaleHeartbeats returns ACCEPTED assignments whose last GPS ping is
	// older than cutoff and whose alert has not fired yet.
	FindStaleHeartbeats(ctx context.Context, cutoff time.Time) ([]*Assignment, error)
}

// Candidate is one middleman ranked by the spatial matcher
type Candidate struct {
	MiddlemanID       uuid.UUID
	Name              string
	TruckType         string
	TruckCapacityKg   float64
	OnTimeRating      float64
	Location          shared.GeoPoint
	DistanceToRouteKm float64
	EstimatedETAMin   float64
}

// MatchQuery describes one corridor search
type MatchQuery struct {
	Pickup            shared.GeoPoint
	Dropoff           shared.GeoPoint
	CorridorRadiusKm  float64
	MinCapacityKg     float64
	RequiresColdChain bool
	Limit             int
}

// Matcher finds available middlemen near the pickup→dropoff corridor
type Matcher interface {
	FindNearRoute(ctx context.Context, q MatchQuery) ([]Candidate, error)
}

// RouteSummary is road-network distance and duration between two points
type RouteSummary struct {
	DistanceKm  float64
	DurationMin float64
}

// RouteOracle fetches road routing from an external service. Implementations
// return (nil, nil) when the service is unreachable so callers can fall back
// to the haversine estimate.
type RouteOracle interface {
	Route(ctx context.Context, from, to shared.GeoPoint) (*RouteSummary, error)
}
