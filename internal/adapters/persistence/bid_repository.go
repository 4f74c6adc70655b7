package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dannymikay/agrimatch-go/internal/domain/order"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
)

// GormBidRepository implements order.BidRepository using GORM
type GormBidRepository struct {
	db *gorm.DB
}

// NewGormBidRepository creates a new GORM bid repository
func NewGormBidRepository(db *gorm.DB) *GormBidRepository {
	return &GormBidRepository{db: db}
}

// FindByID retrieves a bid by id
func (r *GormBidRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Bid, error) {
	return r.findOne(session(ctx, r.db), "id = ?", id.String())
}

// FindByIDForUpdate retrieves a bid under a row lock
func (r *GormBidRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*order.Bid, error) {
	return r.findOne(forUpdate(session(ctx, r.db)), "id = ?", id.String())
}

// FindAcceptedByOrder retrieves the single ACCEPTED bid on the order
func (r *GormBidRepository) FindAcceptedByOrder(ctx context.Context, orderID uuid.UUID) (*order.Bid, error) {
	return r.findOne(session(ctx, r.db),
		"order_id = ? AND status = ?", orderID.String(), string(order.BidAccepted))
}

func (r *GormBidRepository) findOne(db *gorm.DB, query string, args ...any) (*order.Bid, error) {
	var model BidModel
	result := db.Where(query, args...).First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("bid", fmt.Sprintf("%v", args[0]))
		}
		return nil, fmt.Errorf("failed to find bid: %w", result.Error)
	}
	return bidModelToEntity(&model)
}

// ListByOrder retrieves all bids on an order, newest first
func (r *GormBidRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*order.Bid, error) {
	var models []BidModel
	err := session(ctx, r.db).
		Where("order_id = ?", orderID.String()).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}

	bids := make([]*order.Bid, 0, len(models))
	for i := range models {
		entity, err := bidModelToEntity(&models[i])
		if err != nil {
			return nil, err
		}
		bids = append(bids, entity)
	}
	return bids, nil
}

// Create inserts a new bid row
func (r *GormBidRepository) Create(ctx context.Context, b *order.Bid) error {
	if err := session(ctx, r.db).Create(bidEntityToModel(b)).Error; err != nil {
		return fmt.Errorf("failed to create bid: %w", err)
	}
	return nil
}

// Save persists the full bid state
func (r *GormBidRepository) Save(ctx context.Context, b *order.Bid) error {
	if err := session(ctx, r.db).Save(bidEntityToModel(b)).Error; err != nil {
		return fmt.Errorf("failed to save bid: %w", err)
	}
	return nil
}

// RejectOtherPending bulk-rejects every other PENDING bid on the order
func (r *GormBidRepository) RejectOtherPending(ctx context.Context, orderID, acceptedBidID uuid.UUID) (int64, error) {
	result := session(ctx, r.db).Model(&BidModel{}).
		Where("order_id = ? AND id <> ? AND status = ?",
			orderID.String(), acceptedBidID.String(), string(order.BidPending)).
		Update("status", string(order.BidRejected))
	if result.Error != nil {
		return 0, fmt.Errorf("failed to reject pending bids: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// bidModelToEntity converts a database model to the domain entity
func bidModelToEntity(model *BidModel) (*order.Bid, error) {
	id, err := uuid.Parse(model.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid bid id %q: %w", model.ID, err)
	}
	orderID, err := uuid.Parse(model.OrderID)
	if err != nil {
		return nil, fmt.Errorf("invalid order id %q: %w", model.OrderID, err)
	}
	buyerID, err := uuid.Parse(model.BuyerID)
	if err != nil {
		return nil, fmt.Errorf("invalid buyer id %q: %w", model.BuyerID, err)
	}

	return &order.Bid{
		ID:         id,
		OrderID:    orderID,
		BuyerID:    buyerID,
		PricePerKg: model.PricePerKg,
		VolumeKg:   model.VolumeKg,
		Status:     order.BidStatus(model.Status),
		Message:    model.Message,
		ExpiresAt:  model.ExpiresAt,
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}, nil
}

// bidEntityToModel converts the domain entity to a database model
func bidEntityToModel(b *order.Bid) *BidModel {
	return &BidModel{
		ID:         b.ID.String(),
		OrderID:    b.OrderID.String(),
		BuyerID:    b.BuyerID.String(),
		PricePerKg: b.PricePerKg,
		VolumeKg:   b.VolumeKg,
		Status:     string(b.Status),
		Message:    b.Message,
		ExpiresAt:  b.ExpiresAt,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}
