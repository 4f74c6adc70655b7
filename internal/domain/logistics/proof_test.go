package logistics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dannymikay/agrimatch-go/internal/domain/logistics"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
)

func point(t *testing.T, lat, lon float64) shared.GeoPoint {
	t.Helper()

	p, err := shared.NewGeoPoint(lat, lon)
	if err != nil {
		t.Fatalf("bad coordinates: %v", err)
	}
	return p
}

func TestCheckMiddlemanAtBuyer_SamePoint(t *testing.T) {
	p := point(t, -1.2921, 36.8219)

	proof := logistics.CheckMiddlemanAtBuyer(p, p, logistics.DefaultProximityThresholdM)

	assert.True(t, proof.IsWithin)
	assert.Zero(t, proof.DistanceM)
	assert.NotEmpty(t, proof.Hash)
}

func TestCheckMiddlemanAtBuyer_WithinGeofence(t *testing.T) {
	// Roughly 56 m apart: 0.0005 degrees of latitude
	buyer := point(t, -1.2921, 36.8219)
	middleman := point(t, -1.2916, 36.8219)

	proof := logistics.CheckMiddlemanAtBuyer(middleman, buyer, logistics.DefaultProximityThresholdM)

	assert.True(t, proof.IsWithin)
	assert.InDelta(t, 56, proof.DistanceM, 2)
}

func TestCheckMiddlemanAtBuyer_OutsideGeofence(t *testing.T) {
	// Roughly 111 m apart, just past the 100 m radius
	buyer := point(t, -1.2921, 36.8219)
	middleman := point(t, -1.2911, 36.8219)

	proof := logistics.CheckMiddlemanAtBuyer(middleman, buyer, logistics.DefaultProximityThresholdM)

	assert.False(t, proof.IsWithin)
	assert.Greater(t, proof.DistanceM, logistics.DefaultProximityThresholdM)
}

func TestCheckMiddlemanAtBuyer_DeterministicHash(t *testing.T) {
	buyer := point(t, -1.2921, 36.8219)
	middleman := point(t, -1.2911, 36.8219)

	first := logistics.CheckMiddlemanAtBuyer(middleman, buyer, 500)
	second := logistics.CheckMiddlemanAtBuyer(middleman, buyer, 500)
	moved := logistics.CheckMiddlemanAtBuyer(buyer, middleman, 500)
	tighter := logistics.CheckMiddlemanAtBuyer(middleman, buyer, 100)

	assert.Equal(t, first.Hash, second.Hash)
	assert.NotEqual(t, first.Hash, moved.Hash)
	assert.NotEqual(t, first.Hash, tighter.Hash)
}
