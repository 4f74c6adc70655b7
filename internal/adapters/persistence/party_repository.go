package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dannymikay/agrimatch-go/internal/domain/party"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
)

// GormFarmerRepository implements party.FarmerRepository using GORM
type GormFarmerRepository struct {
	db *gorm.DB
}

// NewGormFarmerRepository creates a new GORM farmer repository
func NewGormFarmerRepository(db *gorm.DB) *GormFarmerRepository {
	return &GormFarmerRepository{db: db}
}

// FindByID retrieves a farmer by id
func (r *GormFarmerRepository) FindByID(ctx context.Context, id uuid.UUID) (*party.Farmer, error) {
	var model FarmerModel
	result := session(ctx, r.db).Where("id = ?", id.String()).First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("farmer", id.String())
		}
		return nil, fmt.Errorf("failed to find farmer: %w", result.Error)
	}
	return farmerModelToEntity(&model)
}

// Create inserts a new farmer row
func (r *GormFarmerRepository) Create(ctx context.Context, f *party.Farmer) error {
	if err := session(ctx, r.db).Create(farmerEntityToModel(f)).Error; err != nil {
		return fmt.Errorf("failed to create farmer: %w", err)
	}
	return nil
}

// Save persists the full farmer state
func (r *GormFarmerRepository) Save(ctx context.Context, f *party.Farmer) error {
	if err := session(ctx, r.db).Save(farmerEntityToModel(f)).Error; err != nil {
		return fmt.Errorf("failed to save farmer: %w", err)
	}
	return nil
}

func farmerModelToEntity(model *FarmerModel) (*party.Farmer, error) {
	id, err := uuid.Parse(model.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid farmer id %q: %w", model.ID, err)
	}
	return &party.Farmer{
		ID:                id,
		Name:              model.Name,
		Phone:             model.Phone,
		Email:             model.Email,
		Location:          pointFromColumns(model.Latitude, model.Longitude),
		StripeAccountID:   model.StripeAccountID,
		TotalTransactions: model.TotalTransactions,
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
	}, nil
}

func farmerEntityToModel(f *party.Farmer) *FarmerModel {
	lat, lon := columnsFromPoint(f.Location)
	return &FarmerModel{
		ID:                f.ID.String(),
		Name:              f.Name,
		Phone:             f.Phone,
		Email:             f.Email,
		Latitude:          lat,
		Longitude:         lon,
		StripeAccountID:   f.StripeAccountID,
		TotalTransactions: f.TotalTransactions,
		CreatedAt:         f.CreatedAt,
		UpdatedAt:         f.UpdatedAt,
	}
}

// GormBuyerRepository implements party.BuyerRepository using GORM
type GormBuyerRepository struct {
	db *gorm.DB
}

// NewGormBuyerRepository creates a new GORM buyer repository
func NewGormBuyerRepository(db *gorm.DB) *GormBuyerRepository {
	return &GormBuyerRepository{db: db}
}

// FindByID retrieves a buyer by id
func (r *GormBuyerRepository) FindByID(ctx context.Context, id uuid.UUID) (*party.Buyer, error) {
	var model BuyerModel
	result := session(ctx, r.db).Where("id = ?", id.String()).First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("buyer", id.String())
		}
		return nil, fmt.Errorf("failed to find buyer: %w", result.Error)
	}
	return buyerModelToEntity(&model)
}

// Create inserts a new buyer row
func (r *GormBuyerRepository) Create(ctx context.Context, b *party.Buyer) error {
	if err := session(ctx, r.db).Create(buyerEntityToModel(b)).Error; err != nil {
		return fmt.Errorf("failed to create buyer: %w", err)
	}
	return nil
}

// Save persists the full buyer state
func (r *GormBuyerRepository) Save(ctx context.Context, b *party.Buyer) error {
	if err := session(ctx, r.db).Save(buyerEntityToModel(b)).Error; err != nil {
		return fmt.Errorf("failed to save buyer: %w", err)
	}
	return nil
}

func buyerModelToEntity(model *BuyerModel) (*party.Buyer, error) {
	id, err := uuid.Parse(model.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid buyer id %q: %w", model.ID, err)
	}
	return &party.Buyer{
		ID:               id,
		Name:             model.Name,
		Phone:            model.Phone,
		Email:            model.Email,
		DeliveryLocation: pointFromColumns(model.DeliveryLatitude, model.DeliveryLongitude),
		StripeCustomerID: model.StripeCustomerID,
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}, nil
}

func buyerEntityToModel(b *party.Buyer) *BuyerModel {
	lat, lon := columnsFromPoint(b.DeliveryLocation)
	return &BuyerModel{
		ID:                b.ID.String(),
		Name:              b.Name,
		Phone:             b.Phone,
		Email:             b.Email,
		DeliveryLatitude:  lat,
		DeliveryLongitude: lon,
		StripeCustomerID:  b.StripeCustomerID,
		CreatedAt:         b.CreatedAt,
		UpdatedAt:         b.UpdatedAt,
	}
}

// GormMiddlemanRepository implements party.MiddlemanRepository using GORM
type GormMiddlemanRepository struct {
	db *gorm.DB
}

// NewGormMiddlemanRepository creates a new GORM middleman repository
func NewGormMiddlemanRepository(db *gorm.DB) *GormMiddlemanRepository {
	return &GormMiddlemanRepository{db: db}
}

// FindByID retrieves a middleman by id
func (r *GormMiddlemanRepository) FindByID(ctx context.Context, id uuid.UUID) (*party.Middleman, error) {
	var model MiddlemanModel
	result := session(ctx, r.db).Where("id = ?", id.String()).First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("middleman", id.String())
		}
		return nil, fmt.Errorf("failed to find middleman: %w", result.Error)
	}
	return middlemanModelToEntity(&model)
}

// Create inserts a new middleman row
func (r *GormMiddlemanRepository) Create(ctx context.Context, m *party.Middleman) error {
	if err := session(ctx, r.db).Create(middlemanEntityToModel(m)).Error; err != nil {
		return fmt.Errorf("failed to create middleman: %w", err)
	}
	return nil
}

// Save persists the full middleman state
func (r *GormMiddlemanRepository) Save(ctx context.Context, m *party.Middleman) error {
	if err := session(ctx, r.db).Save(middlemanEntityToModel(m)).Error; err != nil {
		return fmt.Errorf("failed to save middleman: %w", err)
	}
	return nil
}

// UpdateLocation writes just the GPS columns, leaving the rest of the row
// alone. Called at GPS-sample frequency.
func (r *GormMiddlemanRepository) UpdateLocation(ctx context.Context, id uuid.UUID, lat, lon float64) error {
	result := session(ctx, r.db).Model(&MiddlemanModel{}).
		Where("id = ?", id.String()).
		Updates(map[string]any{"latitude": lat, "longitude": lon})
	if result.Error != nil {
		return fmt.Errorf("failed to update middleman location: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("middleman", id.String())
	}
	return nil
}

func middlemanModelToEntity(model *MiddlemanModel) (*party.Middleman, error) {
	id, err := uuid.Parse(model.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid middleman id %q: %w", model.ID, err)
	}
	return &party.Middleman{
		ID:              id,
		Name:            model.Name,
		Phone:           model.Phone,
		Email:           model.Email,
		CurrentLocation: pointFromColumns(model.Latitude, model.Longitude),
		TruckCapacityKg: model.TruckCapacityKg,
		TruckPlate:      model.TruckPlate,
		TruckType:       party.TruckType(model.TruckType),
		ServiceRadiusKm: model.ServiceRadiusKm,
		OnTimeRating:    model.OnTimeRating,
		TotalDeliveries: model.TotalDeliveries,
		IsAvailable:     model.IsAvailable,
		StripeAccountID: model.StripeAccountID,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}, nil
}

func middlemanEntityToModel(m *party.Middleman) *MiddlemanModel {
	lat, lon := columnsFromPoint(m.CurrentLocation)
	return &MiddlemanModel{
		ID:              m.ID.String(),
		Name:            m.Name,
		Phone:           m.Phone,
		Email:           m.Email,
		Latitude:        lat,
		Longitude:       lon,
		TruckCapacityKg: m.TruckCapacityKg,
		TruckPlate:      m.TruckPlate,
		TruckType:       string(m.TruckType),
		ServiceRadiusKm: m.ServiceRadiusKm,
		OnTimeRating:    m.OnTimeRating,
		TotalDeliveries: m.TotalDeliveries,
		IsAvailable:     m.IsAvailable,
		StripeAccountID: m.StripeAccountID,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func pointFromColumns(lat, lon *float64) *shared.GeoPoint {
	if lat == nil || lon == nil {
		return nil
	}
	return &shared.GeoPoint{Latitude: *lat, Longitude: *lon}
}

func columnsFromPoint(p *shared.GeoPoint) (*float64, *float64) {
	if p == nil {
		return nil, nil
	}
	lat, lon := p.Latitude, p.Longitude
	return &lat, &lon
}
