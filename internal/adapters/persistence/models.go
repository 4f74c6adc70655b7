package persistence

import (
	"time"
)

// UUIDs are stored as 36-char strings and coordinates as plain float columns
// so the same schema runs on PostgreSQL and the SQLite test database. The
// PostGIS matcher builds its geography values in-query from the float columns.

// OrderModel represents the orders table
type OrderModel struct {
	ID       string  `gorm:"column:id;primaryKey;size:36"`
	FarmerID string  `gorm:"column:farmer_id;size:36;index;not null"`
	BuyerID  *string `gorm:"column:buyer_id;size:36;index"`

	CropType           string   `gorm:"column:crop_type;size:100;index;not null"`
	Variety            string   `gorm:"column:variety;size:100"`
	TotalVolumeKg      float64  `gorm:"column:total_volume_kg;not null"`
	AvailableVolumeKg  float64  `gorm:"column:available_volume_kg;not null"`
	AskingPricePerKg   float64  `gorm:"column:asking_price_per_kg;not null"`
	AcceptedPricePerKg *float64 `gorm:"column:accepted_price_per_kg"`

	Status            string     `gorm:"column:status;size:32;index;not null"`
	RequiresColdChain bool       `gorm:"column:requires_cold_chain;not null;default:false"`
	HarvestDate       *time.Time `gorm:"column:harvest_date"`

	QualityGrade string `gorm:"column:quality_grade;size:16"`
	CropImageURL string `gorm:"column:crop_image_url;size:512"`

	PickupQRHash   string `gorm:"column:pickup_qr_hash;size:64"`
	DeliveryQRHash string `gorm:"column:delivery_qr_hash;size:64"`

	LogisticsSearchStartedAt *time.Time `gorm:"column:logistics_search_started_at;index"`
	SettledAt                *time.Time `gorm:"column:settled_at"`

	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (OrderModel) TableName() string {
	return "orders"
}

// BidModel represents the bids table
type BidModel struct {
	ID      string `gorm:"column:id;primaryKey;size:36"`
	OrderID string `gorm:"column:order_id;size:36;index;not null"`
	BuyerID string `gorm:"column:buyer_id;size:36;index;not null"`

	PricePerKg float64    `gorm:"column:price_per_kg;not null"`
	VolumeKg   float64    `gorm:"column:volume_kg;not null"`
	Status     string     `gorm:"column:status;size:16;index;not null"`
	Message    string     `gorm:"column:message;type:text"`
	ExpiresAt  *time.Time `gorm:"column:expires_at"`

	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (BidModel) TableName() string {
	return "bids"
}

// EscrowModel represents the escrows table
type EscrowModel struct {
	ID      string `gorm:"column:id;primaryKey;size:36"`
	OrderID string `gorm:"column:order_id;size:36;uniqueIndex;not null"`

	TotalAmountCents       int64 `gorm:"column:total_amount_cents;not null"`
	FarmerReleasedCents    int64 `gorm:"column:farmer_released_cents;not null;default:0"`
	MiddlemanReleasedCents int64 `gorm:"column:middleman_released_cents;not null;default:0"`
	RefundedCents          int64 `gorm:"column:refunded_cents;not null;default:0"`

	Status string `gorm:"column:status;size:32;index;not null"`

	PaymentIntentID        string `gorm:"column:payment_intent_id;size:255;index"`
	TransferFarmerPickupID string `gorm:"column:transfer_farmer_pickup_id;size:255"`
	TransferFarmerFinalID  string `gorm:"column:transfer_farmer_final_id;size:255"`
	TransferMiddlemanID    string `gorm:"column:transfer_middleman_id;size:255"`

	FundsHeldAt *time.Time `gorm:"column:funds_held_at"`
	PickedUpAt  *time.Time `gorm:"column:picked_up_at"`
	DeliveredAt *time.Time `gorm:"column:delivered_at"`
	CancelledAt *time.Time `gorm:"column:cancelled_at"`

	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (EscrowModel) TableName() string {
	return "escrows"
}

// AssignmentModel represents the logistics_assignments table
type AssignmentModel struct {
	ID          string `gorm:"column:id;primaryKey;size:36"`
	OrderID     string `gorm:"column:order_id;size:36;uniqueIndex;not null"`
	MiddlemanID string `gorm:"column:middleman_id;size:36;index;not null"`

	Status string `gorm:"column:status;size:16;index;not null"`

	LastGPSPingAt *time.Time `gorm:"column:last_gps_ping_at;index"`
	GPSAlertSent  bool       `gorm:"column:gps_alert_sent;not null;default:false"`

	EstimatedDistanceKm *float64 `gorm:"column:estimated_distance_km"`
	AgreedFeeCents      *int64   `gorm:"column:agreed_fee_cents"`

	OfferedAt  time.Time  `gorm:"column:offered_at;not null"`
	AcceptedAt *time.Time `gorm:"column:accepted_at"`

	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (AssignmentModel) TableName() string {
	return "logistics_assignments"
}

// FarmerModel represents the farmers table
type FarmerModel struct {
	ID    string `gorm:"column:id;primaryKey;size:36"`
	Name  string `gorm:"column:name;size:255;not null"`
	Phone string `gorm:"column:phone;size:32"`
	Email string `gorm:"column:email;size:255"`

	Latitude  *float64 `gorm:"column:latitude"`
	Longitude *float64 `gorm:"column:longitude"`

	StripeAccountID   string `gorm:"column:stripe_account_id;size:255"`
	TotalTransactions int    `gorm:"column:total_transactions;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (FarmerModel) TableName() string {
	return "farmers"
}

// BuyerModel represents the buyers table
type BuyerModel struct {
	ID    string `gorm:"column:id;primaryKey;size:36"`
	Name  string `gorm:"column:name;size:255;not null"`
	Phone string `gorm:"column:phone;size:32"`
	Email string `gorm:"column:email;size:255"`

	DeliveryLatitude  *float64 `gorm:"column:delivery_latitude"`
	DeliveryLongitude *float64 `gorm:"column:delivery_longitude"`

	StripeCustomerID string `gorm:"column:stripe_customer_id;size:255"`

	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (BuyerModel) TableName() string {
	return "buyers"
}

// MiddlemanModel represents the middlemen table
type MiddlemanModel struct {
	ID    string `gorm:"column:id;primaryKey;size:36"`
	Name  string `gorm:"column:name;size:255;not null"`
	Phone string `gorm:"column:phone;size:32"`
	Email string `gorm:"column:email;size:255"`

	Latitude  *float64 `gorm:"column:latitude"`
	Longitude *float64 `gorm:"column:longitude"`

	TruckCapacityKg float64 `gorm:"column:truck_capacity_kg;not null"`
	TruckPlate      string  `gorm:"column:truck_plate;size:32"`
	TruckType       string  `gorm:"column:truck_type;size:16;not null"`
	ServiceRadiusKm float64 `gorm:"column:service_radius_km;not null;default:100"`

	OnTimeRating    float64 `gorm:"column:on_time_rating;not null;default:0"`
	TotalDeliveries int     `gorm:"column:total_deliveries;not null;default:0"`
	IsAvailable     bool    `gorm:"column:is_available;not null;default:true;index"`

	StripeAccountID string `gorm:"column:stripe_account_id;size:255"`

	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (MiddlemanModel) TableName() string {
	return "middlemen"
}

// AuditLogModel represents the audit_logs table
type AuditLogModel struct {
	ID      string `gorm:"column:id;primaryKey;size:36"`
	OrderID string `gorm:"column:order_id;size:36;index;not null"`

	FromStatus string `gorm:"column:from_status;size:32"`
	ToStatus   string `gorm:"column:to_status;size:32"`

	ActorType string  `gorm:"column:actor_type;size:32;not null"`
	ActorID   *string `gorm:"column:actor_id;size:36"`

	Reason    string `gorm:"column:reason;size:255"`
	ExtraData string `gorm:"column:extra_data;type:text"` // JSON as text

	CreatedAt time.Time `gorm:"column:created_at;not null;index"`
}

func (AuditLogModel) TableName() string {
	return "audit_logs"
}

// WebhookEventModel represents the processed_webhook_events table. One row
// per processor event id; the unique index is the dedup guard.
type WebhookEventModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey;size:255"`
	ProcessedAt time.Time `gorm:"column:processed_at;not null"`
}

func (WebhookEventModel) TableName() string {
	return "processed_webhook_events"
}
