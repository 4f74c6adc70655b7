package geo

import "math"

// EarthRadiusM is the mean Earth radius used for great-circle distances.
const EarthRadiusM = 6_371_000.0

// RoadFactor inflates a straight-line distance into a rough driving distance
// when no routing oracle is available.
const RoadFactor = 1.3

// HaversineM returns the great-circle distance in metres between two
// WGS-84 coordinates.
func HaversineM(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLam := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLam/2)*math.Sin(dLam/2)
	return EarthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// HaversineKm returns the great-circle distance in kilometres.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	return HaversineM(lat1, lon1, lat2, lon2) / 1000
}

// RoadEstimateKm returns a straight-line distance inflated by RoadFactor,
// the fallback used when the routing oracle is unavailable.
func RoadEstimateKm(lat1, lon1, lat2, lon2 float64) float64 {
	return HaversineKm(lat1, lon1, lat2, lon2) * RoadFactor
}
