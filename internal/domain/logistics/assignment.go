package logistics

import (
	"time"

	"github.com/google/uuid"

	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
)

// AssignmentStatus is the assignment lifecycle state
type AssignmentStatus string

const (
	AssignmentOffered  AssignmentStatus = "OFFERED"
	AssignmentAccepted AssignmentStatus = "ACCEPTED"
	AssignmentRejected AssignmentStatus = "REJECTED"
)

// Assignment links one order to one middleman. Only an ACCEPTED assignment
// moves the order to IN_TRANSIT. The last_gps_ping_at heartbeat gates the
// silence alarm; gps_alert_sent keeps the alarm to one firing per silent
// period and is cleared by the next persisted GPS frame.
type Assignment struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	MiddlemanID uuid.UUID

	Status AssignmentStatus

	LastGPSPingAt *time.Time
	GPSAlertSent  bool

	EstimatedDistanceKm *float64
	AgreedFeeCents      *int64

	OfferedAt  time.Time
	AcceptedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAssignment creates an OFFERED assignment
func NewAssignment(orderID, middlemanID uuid.UUID, estimatedDistanceKm *float64, clock shared.Clock) *Assignment {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	now := clock.Now()
	return &Assignment{
		ID:                  uuid.New(),
		OrderID:             orderID,
		MiddlemanID:         middlemanID,
		Status:              AssignmentOffered,
		EstimatedDistanceKm: estimatedDistanceKm,
		OfferedAt:           now,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Accept marks the assignment ACCEPTED and seeds the GPS heartbeat so the
// silence monitor has a grace period.
func (a *Assignment) Accept(now time.Time) error {
	if a.Status != AssignmentOffered {
		return shared.NewInvalidTransitionError(string(a.Status), string(AssignmentAccepted))
	}
	a.Status = AssignmentAccepted
	a.AcceptedAt = &now
	a.LastGPSPingAt = &now
	a.UpdatedAt = now
	return nil
}

// Reoffer hands a REJECTED assignment to another middleman. The order keeps
// its single assignment row; acceptance and heartbeat state reset with it.
func (a *Assignment) Reoffer(middlemanID uuid.UUID, estimatedDistanceKm *float64, now time.Time) error {
	if a.Status != AssignmentRejected {
		return shared.NewInvalidTransitionError(string(a.Status), string(AssignmentOffered))
	}
	a.Status = AssignmentOffered
	a.MiddlemanID = middlemanID
	a.EstimatedDistanceKm = estimatedDistanceKm
	a.LastGPSPingAt = nil
	a.GPSAlertSent = false
	a.AcceptedAt = nil
	a.OfferedAt = now
	a.UpdatedAt = now
	return nil
}

// Reject marks the assignment REJECTED
func (a *Assignment) Reject(now time.Time) error {
	if a.Status != AssignmentOffered {
		return shared.NewInvalidTransitionError(string(a.Status), string(AssignmentRejected))
	}
	a.Status = AssignmentRejected
	a.UpdatedAt = now
	return nil
}

// RecordHeartbeat stamps a fresh GPS ping and re-arms the silence alarm
func (a *Assignment) RecordHeartbeat(now time.Time) {
	a.LastGPSPingAt = &now
	a.GPSAlertSent = false
	a.UpdatedAt = now
}
