package logistics

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
	"github.com/dannymikay/agrimatch-go/pkg/geo"
)

// DefaultProximityThresholdM is the proximity proof radius in metres
const DefaultProximityThresholdM = 100.0

// ProximityProof is the audit record of a delivery geofence check
type ProximityProof struct {
	IsWithin  bool
	DistanceM float64
	Hash      string
}

// CheckMiddlemanAtBuyer computes the great-circle distance between the
// middleman's reported position and the buyer's delivery location and hashes
// the inputs plus the result so the check can be re-verified later. Pure
// function: no I/O, no clock.
func CheckMiddlemanAtBuyer(middleman, buyer shared.GeoPoint, thresholdM float64) ProximityProof {
	distanceM := geo.HaversineM(
		middleman.Latitude, middleman.Longitude,
		buyer.Latitude, buyer.Longitude,
	)
	payload := fmt.Sprintf("%v,%v|%v,%v|%v|%.4f",
		middleman.Latitude, middleman.Longitude,
		buyer.Latitude, buyer.Longitude,
		thresholdM, distanceM,
	)
	sum := sha256.Sum256([]byte(payload))
	return ProximityProof{
		IsWithin:  distanceM <= thresholdM,
		DistanceM: distanceM,
		Hash:      hex.EncodeToString(sum[:]),
	}
}
