package persistence

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dannymikay/agrimatch-go/internal/domain/logistics"
	"github.com/dannymikay/agrimatch-go/internal/domain/party"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
	"github.com/dannymikay/agrimatch-go/pkg/geo"
)

// GormSpatialMatcher implements logistics.Matcher. On PostgreSQL it runs a
// PostGIS corridor query: a geography buffer around the pickup→dropoff line.
// On other dialects it falls back to a haversine scan against sampled points
// along the same line, which keeps the matcher usable in tests and demos
// without PostGIS.
type GormSpatialMatcher struct {
	db *gorm.DB
}

// NewGormSpatialMatcher creates a new spatial matcher
func NewGormSpatialMatcher(db *gorm.DB) *GormSpatialMatcher {
	return &GormSpatialMatcher{db: db}
}

// FindNearRoute returns available middlemen inside the route corridor,
// closest to the route first.
func (m *GormSpatialMatcher) FindNearRoute(ctx context.Context, q logistics.MatchQuery) ([]logistics.Candidate, error) {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if m.db.Dialector.Name() == "postgres" {
		return m.findPostGIS(ctx, q)
	}
	return m.findHaversine(ctx, q)
}

type candidateRow struct {
	ID              string
	Name            string
	TruckType       string
	TruckCapacityKg float64
	OnTimeRating    float64
	Latitude        float64
	Longitude       float64
	DistanceM       float64
}

func (m *GormSpatialMatcher) findPostGIS(ctx context.Context, q logistics.MatchQuery) ([]logistics.Candidate, error) {
	const query = `
SELECT m.id, m.name, m.truck_type, m.truck_capacity_kg, m.on_time_rating,
       m.latitude, m.longitude,
       ST_Distance(
           ST_SetSRID(ST_MakePoint(m.longitude, m.latitude), 4326)::geography,
           ST_MakeLine(
               ST_SetSRID(ST_MakePoint(?, ?), 4326),
               ST_SetSRID(ST_MakePoint(?, ?), 4326)
           )::geography
       ) AS distance_m
FROM middlemen m
WHERE m.is_available = TRUE
  AND m.latitude IS NOT NULL AND m.longitude IS NOT NULL
  AND m.truck_capacity_kg >= ?
  AND (? = FALSE OR m.truck_type = ?)
  AND ST_DWithin(
          ST_SetSRID(ST_MakePoint(m.longitude, m.latitude), 4326)::geography,
          ST_MakeLine(
              ST_SetSRID(ST_MakePoint(?, ?), 4326),
              ST_SetSRID(ST_MakePoint(?, ?), 4326)
          )::geography,
          ?)
ORDER BY distance_m ASC
LIMIT ?`

	radiusM := q.CorridorRadiusKm * 1000
	var rows []candidateRow
	err := session(ctx, m.db).Raw(query,
		q.Pickup.Longitude, q.Pickup.Latitude, q.Dropoff.Longitude, q.Dropoff.Latitude,
		q.MinCapacityKg,
		q.RequiresColdChain, string(party.TruckReefer),
		q.Pickup.Longitude, q.Pickup.Latitude, q.Dropoff.Longitude, q.Dropoff.Latitude,
		radiusM,
		q.Limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("corridor query failed: %w", err)
	}
	return rowsToCandidates(rows)
}

// findHaversine scans available middlemen and measures each against points
// sampled along the route line.
func (m *GormSpatialMatcher) findHaversine(ctx context.Context, q logistics.MatchQuery) ([]logistics.Candidate, error) {
	db := session(ctx, m.db).Model(&MiddlemanModel{}).
		Where("is_available = ?", true).
		Where("latitude IS NOT NULL AND longitude IS NOT NULL").
		Where("truck_capacity_kg >= ?", q.MinCapacityKg)
	if q.RequiresColdChain {
		db = db.Where("truck_type = ?", string(party.TruckReefer))
	}

	var models []MiddlemanModel
	if err := db.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("middleman scan failed: %w", err)
	}

	radiusM := q.CorridorRadiusKm * 1000
	rows := make([]candidateRow, 0, len(models))
	for i := range models {
		mm := &models[i]
		d := distanceToRouteM(*mm.Latitude, *mm.Longitude, q.Pickup, q.Dropoff)
		if d > radiusM {
			continue
		}
		rows = append(rows, candidateRow{
			ID:              mm.ID,
			Name:            mm.Name,
			TruckType:       mm.TruckType,
			TruckCapacityKg: mm.TruckCapacityKg,
			OnTimeRating:    mm.OnTimeRating,
			Latitude:        *mm.Latitude,
			Longitude:       *mm.Longitude,
			DistanceM:       d,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].DistanceM < rows[j].DistanceM })
	if len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	return rowsToCandidates(rows)
}

// distanceToRouteM approximates point-to-line distance by sampling the line
func distanceToRouteM(lat, lon float64, pickup, dropoff shared.GeoPoint) float64 {
	const samples = 64
	minD := math.MaxFloat64
	for i := 0; i <= samples; i++ {
		t := float64(i) / samples
		sLat := pickup.Latitude + t*(dropoff.Latitude-pickup.Latitude)
		sLon := pickup.Longitude + t*(dropoff.Longitude-pickup.Longitude)
		if d := geo.HaversineM(lat, lon, sLat, sLon); d < minD {
			minD = d
		}
	}
	return minD
}

func rowsToCandidates(rows []candidateRow) ([]logistics.Candidate, error) {
	candidates := make([]logistics.Candidate, 0, len(rows))
	for _, row := range rows {
		id, err := uuid.Parse(row.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid middleman id %q: %w", row.ID, err)
		}
		distanceKm := row.DistanceM / 1000
		candidates = append(candidates, logistics.Candidate{
			MiddlemanID:       id,
			Name:              row.Name,
			TruckType:         row.TruckType,
			TruckCapacityKg:   row.TruckCapacityKg,
			OnTimeRating:      row.OnTimeRating,
			Location:          shared.GeoPoint{Latitude: row.Latitude, Longitude: row.Longitude},
			DistanceToRouteKm: distanceKm,
			// 60 km/h average road speed over the detour
			EstimatedETAMin: distanceKm,
		})
	}
	return candidates, nil
}
