package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dannymikay/agrimatch-go/internal/domain/order"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
)

// GormOrderRepository implements order.Repository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GORM order repository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByID retrieves an order by id
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.findOne(session(ctx, r.db), id)
}

// FindByIDForUpdate retrieves an order under a row lock
func (r *GormOrderRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.findOne(forUpdate(session(ctx, r.db)), id)
}

func (r *GormOrderRepository) findOne(db *gorm.DB, id uuid.UUID) (*order.Order, error) {
	var model OrderModel
	result := db.Where("id = ?", id.String()).First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("order", id.String())
		}
		return nil, fmt.Errorf("failed to find order: %w", result.Error)
	}
	return orderModelToEntity(&model)
}

// List retrieves orders matching the filter, newest first
func (r *GormOrderRepository) List(ctx context.Context, filter order.ListFilter) ([]*order.Order, error) {
	db := session(ctx, r.db).Model(&OrderModel{})
	if filter.Status != nil {
		db = db.Where("status = ?", string(*filter.Status))
	}
	if filter.CropType != "" {
		db = db.Where("crop_type = ?", filter.CropType)
	}
	if filter.FarmerID != nil {
		db = db.Where("farmer_id = ?", filter.FarmerID.String())
	}
	if filter.Limit > 0 {
		db = db.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		db = db.Offset(filter.Offset)
	}

	var models []OrderModel
	if err := db.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	orders := make([]*order.Order, 0, len(models))
	for i := range models {
		entity, err := orderModelToEntity(&models[i])
		if err != nil {
			return nil, err
		}
		orders = append(orders, entity)
	}
	return orders, nil
}

// Create inserts a new order row
func (r *GormOrderRepository) Create(ctx context.Context, o *order.Order) error {
	if err := session(ctx, r.db).Create(orderEntityToModel(o)).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// Save persists the full order state
func (r *GormOrderRepository) Save(ctx context.Context, o *order.Order) error {
	if err := session(ctx, r.db).Save(orderEntityToModel(o)).Error; err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

// Delete removes an order row
func (r *GormOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := session(ctx, r.db).Where("id = ?", id.String()).Delete(&OrderModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete order: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("order", id.String())
	}
	return nil
}

// FindExpiredLogisticsSearch selects orders stuck in LOGISTICS_SEARCH past
// the cutoff. Rows held by concurrent sweeps are skipped.
func (r *GormOrderRepository) FindExpiredLogisticsSearch(ctx context.Context, cutoff time.Time) ([]*order.Order, error) {
	var models []OrderModel
	db := forUpdateSkipLocked(session(ctx, r.db))
	err := db.
		Where("status = ?", string(order.StatusLogisticsSearch)).
		Where("logistics_search_started_at IS NOT NULL AND logistics_search_started_at < ?", cutoff).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find expired orders: %w", err)
	}

	orders := make([]*order.Order, 0, len(models))
	for i := range models {
		entity, err := orderModelToEntity(&models[i])
		if err != nil {
			return nil, err
		}
		orders = append(orders, entity)
	}
	return orders, nil
}

// orderModelToEntity converts a database model to the domain entity
func orderModelToEntity(model *OrderModel) (*order.Order, error) {
	id, err := uuid.Parse(model.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid order id %q: %w", model.ID, err)
	}
	farmerID, err := uuid.Parse(model.FarmerID)
	if err != nil {
		return nil, fmt.Errorf("invalid farmer id %q: %w", model.FarmerID, err)
	}

	o := &order.Order{
		ID:                       id,
		FarmerID:                 farmerID,
		CropType:                 model.CropType,
		Variety:                  model.Variety,
		TotalVolumeKg:            model.TotalVolumeKg,
		AvailableVolumeKg:        model.AvailableVolumeKg,
		AskingPricePerKg:         model.AskingPricePerKg,
		AcceptedPricePerKg:       model.AcceptedPricePerKg,
		Status:                   order.Status(model.Status),
		RequiresColdChain:        model.RequiresColdChain,
		HarvestDate:              model.HarvestDate,
		QualityGrade:             model.QualityGrade,
		CropImageURL:             model.CropImageURL,
		PickupQRHash:             model.PickupQRHash,
		DeliveryQRHash:           model.DeliveryQRHash,
		LogisticsSearchStartedAt: model.LogisticsSearchStartedAt,
		SettledAt:                model.SettledAt,
		CreatedAt:                model.CreatedAt,
		UpdatedAt:                model.UpdatedAt,
	}
	if model.BuyerID != nil {
		buyerID, err := uuid.Parse(*model.BuyerID)
		if err != nil {
			return nil, fmt.Errorf("invalid buyer id %q: %w", *model.BuyerID, err)
		}
		o.BuyerID = &buyerID
	}
	return o, nil
}

// orderEntityToModel converts the domain entity to a database model
func orderEntityToModel(o *order.Order) *OrderModel {
	model := &OrderModel{
		ID:                       o.ID.String(),
		FarmerID:                 o.FarmerID.String(),
		CropType:                 o.CropType,
		Variety:                  o.Variety,
		TotalVolumeKg:            o.TotalVolumeKg,
		AvailableVolumeKg:        o.AvailableVolumeKg,
		AskingPricePerKg:         o.AskingPricePerKg,
		AcceptedPricePerKg:       o.AcceptedPricePerKg,
		Status:                   string(o.Status),
		RequiresColdChain:        o.RequiresColdChain,
		HarvestDate:              o.HarvestDate,
		QualityGrade:             o.QualityGrade,
		CropImageURL:             o.CropImageURL,
		PickupQRHash:             o.PickupQRHash,
		DeliveryQRHash:           o.DeliveryQRHash,
		LogisticsSearchStartedAt: o.LogisticsSearchStartedAt,
		SettledAt:                o.SettledAt,
		CreatedAt:                o.CreatedAt,
		UpdatedAt:                o.UpdatedAt,
	}
	if o.BuyerID != nil {
		s := o.BuyerID.String()
		model.BuyerID = &s
	}
	return model
}
