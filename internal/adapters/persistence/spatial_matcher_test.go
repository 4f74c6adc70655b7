package persistence_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dannymikay/agrimatch-go/internal/adapters/persistence"
	"github.com/dannymikay/agrimatch-go/internal/domain/logistics"
	"github.com/dannymikay/agrimatch-go/internal/domain/party"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
	"github.com/dannymikay/agrimatch-go/test/helpers"
)

// Route roughly Nairobi -> Thika, about 40 km northeast
var (
	pickup  = shared.GeoPoint{Latitude: -1.2921, Longitude: 36.8219}
	dropoff = shared.GeoPoint{Latitude: -1.0333, Longitude: 37.0693}
)

func corridorQuery() logistics.MatchQuery {
	return logistics.MatchQuery{
		Pickup:           pickup,
		Dropoff:          dropoff,
		CorridorRadiusKm: 25,
		MinCapacityKg:    300,
		Limit:            20,
	}
}

func TestSpatialMatcher_FindsMiddlemenInsideCorridor(t *testing.T) {
	db := helpers.NewTestDB(t)
	matcher := persistence.NewGormSpatialMatcher(db)

	// On the route midpoint
	onRoute := helpers.NewMiddleman(t, db, -1.16, 36.95, party.TruckDryVan, 1000)
	// Mombasa, about 440 km away
	helpers.NewMiddleman(t, db, -4.0435, 39.6682, party.TruckDryVan, 1000)

	candidates, err := matcher.FindNearRoute(context.Background(), corridorQuery())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, onRoute.ID, candidates[0].MiddlemanID)
	assert.Less(t, candidates[0].DistanceToRouteKm, 25.0)
}

func TestSpatialMatcher_FiltersCapacityAndAvailability(t *testing.T) {
	db := helpers.NewTestDB(t)
	matcher := persistence.NewGormSpatialMatcher(db)

	helpers.NewMiddleman(t, db, -1.16, 36.95, party.TruckDryVan, 100) // too small
	unavailable := helpers.NewMiddleman(t, db, -1.16, 36.95, party.TruckDryVan, 1000)
	unavailable.IsAvailable = false
	require.NoError(t, persistence.NewGormMiddlemanRepository(db).Save(context.Background(), unavailable))

	candidates, err := matcher.FindNearRoute(context.Background(), corridorQuery())
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestSpatialMatcher_ColdChainRequiresReefer(t *testing.T) {
	db := helpers.NewTestDB(t)
	matcher := persistence.NewGormSpatialMatcher(db)

	helpers.NewMiddleman(t, db, -1.16, 36.95, party.TruckDryVan, 1000)
	reefer := helpers.NewMiddleman(t, db, -1.20, 36.90, party.TruckReefer, 1000)

	q := corridorQuery()
	q.RequiresColdChain = true

	candidates, err := matcher.FindNearRoute(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, reefer.ID, candidates[0].MiddlemanID)
	assert.Equal(t, string(party.TruckReefer), candidates[0].TruckType)
}

func TestSpatialMatcher_OrdersByDistanceAndLimits(t *testing.T) {
	db := helpers.NewTestDB(t)
	matcher := persistence.NewGormSpatialMatcher(db)

	far := helpers.NewMiddleman(t, db, -1.05, 36.85, party.TruckDryVan, 1000)
	near := helpers.NewMiddleman(t, db, -1.16, 36.95, party.TruckDryVan, 1000)

	q := corridorQuery()
	candidates, err := matcher.FindNearRoute(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, near.ID, candidates[0].MiddlemanID)
	assert.Equal(t, far.ID, candidates[1].MiddlemanID)
	assert.LessOrEqual(t, candidates[0].DistanceToRouteKm, candidates[1].DistanceToRouteKm)

	q.Limit = 1
	capped, err := matcher.FindNearRoute(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, capped, 1)
}
