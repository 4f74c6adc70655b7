package shared

// GeoPoint is an immutable WGS-84 coordinate pair (SRID 4326)
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewGeoPoint creates a GeoPoint with bounds validation
func NewGeoPoint(lat, lon float64) (GeoPoint, error) {
	if lat < -90 || lat > 90 {
		return GeoPoint{}, NewValidationError("latitude", "must be in [-90, 90]")
	}
	if lon < -180 || lon > 180 {
		return GeoPoint{}, NewValidationError("longitude", "must be in [-180, 180]")
	}
	return GeoPoint{Latitude: lat, Longitude: lon}, nil
}
