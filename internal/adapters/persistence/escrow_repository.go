package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dannymikay/agrimatch-go/internal/domain/escrow"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
)

// GormEscrowRepository implements escrow.Repository using GORM
type GormEscrowRepository struct {
	db *gorm.DB
}

// NewGormEscrowRepository creates a new GORM escrow repository
func NewGormEscrowRepository(db *gorm.DB) *GormEscrowRepository {
	return &GormEscrowRepository{db: db}
}

// FindByOrderID retrieves the order's escrow
func (r *GormEscrowRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*escrow.Escrow, error) {
	return r.findOne(session(ctx, r.db), "order_id = ?", orderID.String())
}

// FindByOrderIDForUpdate retrieves the order's escrow under a row lock
func (r *GormEscrowRepository) FindByOrderIDForUpdate(ctx context.Context, orderID uuid.UUID) (*escrow.Escrow, error) {
	return r.findOne(forUpdate(session(ctx, r.db)), "order_id = ?", orderID.String())
}

// FindByIntentIDForUpdate retrieves the escrow behind a processor intent
// under a row lock. Used by the webhook path.
func (r *GormEscrowRepository) FindByIntentIDForUpdate(ctx context.Context, intentID string) (*escrow.Escrow, error) {
	return r.findOne(forUpdate(session(ctx, r.db)), "payment_intent_id = ?", intentID)
}

func (r *GormEscrowRepository) findOne(db *gorm.DB, query string, args ...any) (*escrow.Escrow, error) {
	var model EscrowModel
	result := db.Where(query, args...).First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("escrow", fmt.Sprintf("%v", args[0]))
		}
		return nil, fmt.Errorf("failed to find escrow: %w", result.Error)
	}
	return escrowModelToEntity(&model)
}

// Create inserts a new escrow row
func (r *GormEscrowRepository) Create(ctx context.Context, e *escrow.Escrow) error {
	if err := session(ctx, r.db).Create(escrowEntityToModel(e)).Error; err != nil {
		return fmt.Errorf("failed to create escrow: %w", err)
	}
	return nil
}

// Save persists the full escrow state
func (r *GormEscrowRepository) Save(ctx context.Context, e *escrow.Escrow) error {
	if err := session(ctx, r.db).Save(escrowEntityToModel(e)).Error; err != nil {
		return fmt.Errorf("failed to save escrow: %w", err)
	}
	return nil
}

// escrowModelToEntity converts a database model to the domain entity
func escrowModelToEntity(model *EscrowModel) (*escrow.Escrow, error) {
	id, err := uuid.Parse(model.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid escrow id %q: %w", model.ID, err)
	}
	orderID, err := uuid.Parse(model.OrderID)
	if err != nil {
		return nil, fmt.Errorf("invalid order id %q: %w", model.OrderID, err)
	}

	return &escrow.Escrow{
		ID:                     id,
		OrderID:                orderID,
		TotalAmountCents:       model.TotalAmountCents,
		FarmerReleasedCents:    model.FarmerReleasedCents,
		MiddlemanReleasedCents: model.MiddlemanReleasedCents,
		RefundedCents:          model.RefundedCents,
		Status:                 escrow.Status(model.Status),
		PaymentIntentID:        model.PaymentIntentID,
		TransferFarmerPickupID: model.TransferFarmerPickupID,
		TransferFarmerFinalID:  model.TransferFarmerFinalID,
		TransferMiddlemanID:    model.TransferMiddlemanID,
		FundsHeldAt:            model.FundsHeldAt,
		PickedUpAt:             model.PickedUpAt,
		DeliveredAt:            model.DeliveredAt,
		CancelledAt:            model.CancelledAt,
		CreatedAt:              model.CreatedAt,
		UpdatedAt:              model.UpdatedAt,
	}, nil
}

// escrowEntityToModel converts the domain entity to a database model
func escrowEntityToModel(e *escrow.Escrow) *EscrowModel {
	return &EscrowModel{
		ID:                     e.ID.String(),
		OrderID:                e.OrderID.String(),
		TotalAmountCents:       e.TotalAmountCents,
		FarmerReleasedCents:    e.FarmerReleasedCents,
		MiddlemanReleasedCents: e.MiddlemanReleasedCents,
		RefundedCents:          e.RefundedCents,
		Status:                 string(e.Status),
		PaymentIntentID:        e.PaymentIntentID,
		TransferFarmerPickupID: e.TransferFarmerPickupID,
		TransferFarmerFinalID:  e.TransferFarmerFinalID,
		TransferMiddlemanID:    e.TransferMiddlemanID,
		FundsHeldAt:            e.FundsHeldAt,
		PickedUpAt:             e.PickedUpAt,
		DeliveredAt:            e.DeliveredAt,
		CancelledAt:            e.CancelledAt,
		CreatedAt:              e.CreatedAt,
		UpdatedAt:              e.UpdatedAt,
	}
}

// GormWebhookEventStore implements escrow.ProcessedEventStore on the
// processed_webhook_events table.
type GormWebhookEventStore struct {
	db    *gorm.DB
	clock shared.Clock
}

// NewGormWebhookEventStore creates a new webhook event store
func NewGormWebhookEventStore(db *gorm.DB, clock shared.Clock) *GormWebhookEventStore {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &GormWebhookEventStore{db: db, clock: clock}
}

// MarkProcessed records the event id, returning false when it was already
// present. Insert-or-ignore keeps the check race-free under redelivery.
func (s *GormWebhookEventStore) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	processedAt := s.clock.Now()
	result := session(ctx, s.db).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&WebhookEventModel{EventID: eventID, ProcessedAt: processedAt})
	if result.Error != nil {
		return false, fmt.Errorf("failed to record webhook event: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}
