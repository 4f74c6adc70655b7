package order

import (
	"time"

	"github.com/google/uuid"

	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
)

// Status is the order lifecycle state
type Status string

const (
	StatusListed          Status = "LISTED"
	StatusNegotiating     Status = "NEGOTIATING"
	StatusLogisticsSearch Status = "LOGISTICS_SEARCH"
	StatusInTransit       Status = "IN_TRANSIT"
	StatusSettled         Status = "SETTLED"
	StatusCancelled       Status = "CANCELLED"
)

// validTransitions is the authoritative FSM edge table. Any edge not listed
// here is rejected with InvalidTransitionError and has no side effects.
var validTransitions = map[Status][]Status{
	StatusListed:          {StatusNegotiating},
	StatusNegotiating:     {StatusLogisticsSearch, StatusListed},
	StatusLogisticsSearch: {StatusInTransit, StatusListed},
	StatusInTransit:       {StatusSettled},
	StatusSettled:         {},
	StatusCancelled:       {},
}

// CanTransition reports whether the edge from → to is in the FSM table
func CanTransition(from, to Status) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// AllStatuses returns every known order status, for exhaustive checks
func AllStatuses() []Status {
	return []Status{
		StatusListed, StatusNegotiating, StatusLogisticsSearch,
		StatusInTransit, StatusSettled, StatusCancelled,
	}
}

// Order is a farmer's produce listing and the root of the trade lifecycle.
// Related rows (escrow, assignment, participants) are referenced by id only.
type Order struct {
	ID       uuid.UUID
	FarmerID uuid.UUID
	BuyerID  *uuid.UUID

	CropType          string
	Variety           string
	TotalVolumeKg     float64
	AvailableVolumeKg float64
	AskingPricePerKg  float64
	AcceptedPricePerKg *float64

	Status            Status
	RequiresColdChain bool
	HarvestDate       *time.Time

	QualityGrade string
	CropImageURL string

	// SHA-256 hex digests of the one-time QR secrets; raw tokens never persist
	PickupQRHash   string
	DeliveryQRHash string

	LogisticsSearchStartedAt *time.Time
	SettledAt                *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewOrder creates a LISTED order with available volume equal to total
func NewOrder(farmerID uuid.UUID, cropType, variety string, totalVolumeKg, askingPricePerKg float64, requiresColdChain bool, harvestDate *time.Time, clock shared.Clock) (*Order, error) {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	if cropType == "" {
		return nil, shared.NewValidationError("crop_type", "cannot be empty")
	}
	if totalVolumeKg <= 0 {
		return nil, shared.NewValidationError("total_volume_kg", "must be positive")
	}
	if askingPricePerKg <= 0 {
		return nil, shared.NewValidationError("unit_price_asking", "must be positive")
	}

	now := clock.Now()
	return &Order{
		ID:                uuid.New(),
		FarmerID:          farmerID,
		CropType:          cropType,
		Variety:           variety,
		TotalVolumeKg:     totalVolumeKg,
		AvailableVolumeKg: totalVolumeKg,
		AskingPricePerKg:  askingPricePerKg,
		Status:            StatusListed,
		RequiresColdChain: requiresColdChain,
		HarvestDate:       harvestDate,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// ApplyTransition mutates the order along a validated FSM edge, stamping the
// phase timestamps. The caller holds the row lock and writes the audit entry.
func (o *Order) ApplyTransition(to Status, now time.Time) error {
	if !CanTransition(o.Status, to) {
		return shared.NewInvalidTransitionError(string(o.Status), string(to))
	}
	o.Status = to
	o.UpdatedAt = now
	switch to {
	case StatusLogisticsSearch:
		t := now
		o.LogisticsSearchStartedAt = &t
	case StatusSettled:
		t := now
		o.SettledAt = &t
	}
	return nil
}

// ReserveVolume decrements available volume for an accepted bid
func (o *Order) ReserveVolume(volumeKg float64) error {
	if volumeKg > o.AvailableVolumeKg {
		return shared.NewInsufficientVolumeError(volumeKg, o.AvailableVolumeKg)
	}
	o.AvailableVolumeKg -= volumeKg
	return nil
}

// RestoreVolume returns previously reserved volume, clamped to the total
func (o *Order) RestoreVolume(volumeKg float64) {
	o.AvailableVolumeKg += volumeKg
	if o.AvailableVolumeKg > o.TotalVolumeKg {
		o.AvailableVolumeKg = o.TotalVolumeKg
	}
}

// ClearAcceptance resets the fields set by bid acceptance. Used by the
// rollback-to-LISTED path.
func (o *Order) ClearAcceptance() {
	o.BuyerID = nil
	o.AcceptedPricePerKg = nil
	o.PickupQRHash = ""
	o.DeliveryQRHash = ""
	o.LogisticsSearchStartedAt = nil
}

// IsTerminal reports whether the order can never transition again
func (o *Order) IsTerminal() bool {
	return o.Status == StatusSettled || o.Status == StatusCancelled
}

// AcceptsBids reports whether new bids may be submitted
func (o *Order) AcceptsBids() bool {
	return o.Status == StatusListed || o.Status == StatusNegotiating
}
