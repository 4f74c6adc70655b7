// Package events is the realtime fan-out fabric. Handlers publish typed
// frames after their transaction commits; the hub delivers them to every
// socket subscribed to the order room or middleman stream.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Frame types sent to subscribers
const (
	TypeConnected        = "CONNECTED"
	TypeStateSync        = "STATE_SYNC"
	TypeFSMTransition    = "FSM_TRANSITION"
	TypeNewBid           = "NEW_BID"
	TypeEscrowUpdate     = "ESCROW_UPDATE"
	TypeGPSHeartbeatLost = "GPS_HEARTBEAT_LOST"
	TypeLocationUpdate   = "LOCATION_UPDATE"
	TypeAssignmentOffer  = "ASSIGNMENT_OFFER"
	TypePong             = "PONG"
)

// Event is one JSON frame on the wire
type Event struct {
	Type      string         `json:"type"`
	OrderID   string         `json:"order_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func newEvent(eventType string, orderID uuid.UUID, payload map[string]any) Event {
	return Event{
		Type:      eventType,
		OrderID:   orderID.String(),
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// NewFSMTransition announces an order status change
func NewFSMTransition(orderID uuid.UUID, from, to, reason string) Event {
	return newEvent(TypeFSMTransition, orderID, map[string]any{
		"from":   from,
		"to":     to,
		"reason": reason,
	})
}

// NewBidEvent announces a fresh bid on an order
func NewBidEvent(orderID, bidID, buyerID uuid.UUID, volumeKg, pricePerKg float64) Event {
	return newEvent(TypeNewBid, orderID, map[string]any{
		"bid_id":       bidID.String(),
		"buyer_id":     buyerID.String(),
		"volume_kg":    volumeKg,
		"price_per_kg": pricePerKg,
	})
}

// NewEscrowUpdate announces an escrow phase change with running totals
func NewEscrowUpdate(orderID uuid.UUID, status string, totalCents, farmerReleasedCents, middlemanReleasedCents, refundedCents int64) Event {
	return newEvent(TypeEscrowUpdate, orderID, map[string]any{
		"status":                   status,
		"total_amount_cents":       totalCents,
		"farmer_released_cents":    farmerReleasedCents,
		"middleman_released_cents": middlemanReleasedCents,
		"refunded_cents":           refundedCents,
	})
}

// NewGPSHeartbeatLost announces tracker silence on an in-transit order
func NewGPSHeartbeatLost(orderID, middlemanID uuid.UUID, lastPingAt time.Time) Event {
	return newEvent(TypeGPSHeartbeatLost, orderID, map[string]any{
		"middleman_id": middlemanID.String(),
		"last_ping_at": lastPingAt.UTC(),
	})
}

// NewLocationUpdate relays a GPS fix to order watchers
func NewLocationUpdate(orderID, middlemanID uuid.UUID, lat, lon float64) Event {
	return newEvent(TypeLocationUpdate, orderID, map[string]any{
		"middleman_id": middlemanID.String(),
		"latitude":     lat,
		"longitude":    lon,
	})
}

// NewAssignmentOffer notifies a middleman of a transport job offer
func NewAssignmentOffer(orderID, assignmentID uuid.UUID, cropType string, volumeKg float64, estimatedDistanceKm *float64) Event {
	payload := map[string]any{
		"assignment_id": assignmentID.String(),
		"crop_type":     cropType,
		"volume_kg":     volumeKg,
	}
	if estimatedDistanceKm != nil {
		payload["estimated_distance_km"] = *estimatedDistanceKm
	}
	return newEvent(TypeAssignmentOffer, orderID, payload)
}

// NewStateSync carries the full order snapshot sent on subscribe
func NewStateSync(orderID uuid.UUID, snapshot map[string]any) Event {
	return newEvent(TypeStateSync, orderID, snapshot)
}

// NewConnected is the first frame on every accepted socket. It echoes back
// who the server thinks the client is.
func NewConnected(orderID uuid.UUID, role string, userID uuid.UUID) Event {
	return newEvent(TypeConnected, orderID, map[string]any{
		"role":    role,
		"user_id": userID.String(),
	})
}

// NewPong answers a client PING
func NewPong() Event {
	return Event{Type: TypePong, Timestamp: time.Now().UTC()}
}
