package httpapi

import (
	"time"

	"github.com/dannymikay/agrimatch-go/internal/domain/audit"
	"github.com/dannymikay/agrimatch-go/internal/domain/escrow"
	"github.com/dannymikay/agrimatch-go/internal/domain/logistics"
	"github.com/dannymikay/agrimatch-go/internal/domain/order"
)

// Wire views. Raw QR tokens appear only in the accept-bid response; hashes
// never leave the server.

type orderView struct {
	ID                 string     `json:"id"`
	FarmerID           string     `json:"farmer_id"`
	BuyerID            *string    `json:"buyer_id,omitempty"`
	CropType           string     `json:"crop_type"`
	Variety            string     `json:"variety,omitempty"`
	TotalVolumeKg      float64    `json:"total_volume_kg"`
	AvailableVolumeKg  float64    `json:"available_volume_kg"`
	AskingPricePerKg   float64    `json:"asking_price_per_kg"`
	AcceptedPricePerKg *float64   `json:"accepted_price_per_kg,omitempty"`
	Status             string     `json:"status"`
	RequiresColdChain  bool       `json:"requires_cold_chain"`
	HarvestDate        *time.Time `json:"harvest_date,omitempty"`
	QualityGrade       string     `json:"quality_grade,omitempty"`
	CropImageURL       string     `json:"crop_image_url,omitempty"`
	SettledAt          *time.Time `json:"settled_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func newOrderView(o *order.Order) orderView {
	v := orderView{
		ID:                 o.ID.String(),
		FarmerID:           o.FarmerID.String(),
		CropType:           o.CropType,
		Variety:            o.Variety,
		TotalVolumeKg:      o.TotalVolumeKg,
		AvailableVolumeKg:  o.AvailableVolumeKg,
		AskingPricePerKg:   o.AskingPricePerKg,
		AcceptedPricePerKg: o.AcceptedPricePerKg,
		Status:             string(o.Status),
		RequiresColdChain:  o.RequiresColdChain,
		HarvestDate:        o.HarvestDate,
		QualityGrade:       o.QualityGrade,
		CropImageURL:       o.CropImageURL,
		SettledAt:          o.SettledAt,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
	if o.BuyerID != nil {
		s := o.BuyerID.String()
		v.BuyerID = &s
	}
	return v
}

type bidView struct {
	ID         string    `json:"id"`
	OrderID    string    `json:"order_id"`
	BuyerID    string    `json:"buyer_id"`
	PricePerKg float64   `json:"price_per_kg"`
	VolumeKg   float64   `json:"volume_kg"`
	Status     string    `json:"status"`
	Message    string    `json:"message,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func newBidView(b *order.Bid) bidView {
	return bidView{
		ID:         b.ID.String(),
		OrderID:    b.OrderID.String(),
		BuyerID:    b.BuyerID.String(),
		PricePerKg: b.PricePerKg,
		VolumeKg:   b.VolumeKg,
		Status:     string(b.Status),
		Message:    b.Message,
		CreatedAt:  b.CreatedAt,
	}
}

type escrowView struct {
	ID                     string `json:"id"`
	OrderID                string `json:"order_id"`
	Status                 string `json:"status"`
	TotalAmountCents       int64  `json:"total_amount_cents"`
	FarmerReleasedCents    int64  `json:"farmer_released_cents"`
	MiddlemanReleasedCents int64  `json:"middleman_released_cents"`
	RefundedCents          int64  `json:"refunded_cents"`
}

func newEscrowView(e *escrow.Escrow) escrowView {
	return escrowView{
		ID:                     e.ID.String(),
		OrderID:                e.OrderID.String(),
		Status:                 string(e.Status),
		TotalAmountCents:       e.TotalAmountCents,
		FarmerReleasedCents:    e.FarmerReleasedCents,
		MiddlemanReleasedCents: e.MiddlemanReleasedCents,
		RefundedCents:          e.RefundedCents,
	}
}

type assignmentView struct {
	ID                  string     `json:"id"`
	OrderID             string     `json:"order_id"`
	MiddlemanID         string     `json:"middleman_id"`
	Status              string     `json:"status"`
	EstimatedDistanceKm *float64   `json:"estimated_distance_km,omitempty"`
	OfferedAt           time.Time  `json:"offered_at"`
	AcceptedAt          *time.Time `json:"accepted_at,omitempty"`
}

func newAssignmentView(a *logistics.Assignment) assignmentView {
	return assignmentView{
		ID:                  a.ID.String(),
		OrderID:             a.OrderID.String(),
		MiddlemanID:         a.MiddlemanID.String(),
		Status:              string(a.Status),
		EstimatedDistanceKm: a.EstimatedDistanceKm,
		OfferedAt:           a.OfferedAt,
		AcceptedAt:          a.AcceptedAt,
	}
}

type candidateView struct {
	MiddlemanID       string  `json:"middleman_id"`
	Name              string  `json:"name"`
	TruckType         string  `json:"truck_type"`
	TruckCapacityKg   float64 `json:"truck_capacity_kg"`
	OnTimeRating      float64 `json:"on_time_rating"`
	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
	DistanceToRouteKm float64 `json:"distance_to_route_km"`
	EstimatedETAMin   float64 `json:"estimated_eta_min"`
}

func newCandidateView(c logistics.Candidate) candidateView {
	return candidateView{
		MiddlemanID:       c.MiddlemanID.String(),
		Name:              c.Name,
		TruckType:         c.TruckType,
		TruckCapacityKg:   c.TruckCapacityKg,
		OnTimeRating:      c.OnTimeRating,
		Latitude:          c.Location.Latitude,
		Longitude:         c.Location.Longitude,
		DistanceToRouteKm: c.DistanceToRouteKm,
		EstimatedETAMin:   c.EstimatedETAMin,
	}
}

type auditView struct {
	ID         string         `json:"id"`
	FromStatus string         `json:"from_status,omitempty"`
	ToStatus   string         `json:"to_status,omitempty"`
	ActorType  string         `json:"actor_type"`
	ActorID    *string        `json:"actor_id,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	ExtraData  map[string]any `json:"extra_data,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

func newAuditView(e *audit.Entry) auditView {
	v := auditView{
		ID:         e.ID.String(),
		FromStatus: e.FromStatus,
		ToStatus:   e.ToStatus,
		ActorType:  e.ActorType,
		Reason:     e.Reason,
		ExtraData:  e.ExtraData,
		CreatedAt:  e.CreatedAt,
	}
	if e.ActorID != nil {
		s := e.ActorID.String()
		v.ActorID = &s
	}
	return v
}
