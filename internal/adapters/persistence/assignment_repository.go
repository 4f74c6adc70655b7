package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dannymikay/agrimatch-go/internal/domain/logistics"
	"github.com/dannymikay/agrimatch-go/internal/domain/order"
	"github.com/dannymikay/agrimatch-go/internal/domain/shared"
)

// GormAssignmentRepository implements logistics.AssignmentRepository using GORM
type GormAssignmentRepository struct {
	db *gorm.DB
}

// NewGormAssignmentRepository creates a new GORM assignment repository
func NewGormAssignmentRepository(db *gorm.DB) *GormAssignmentRepository {
	return &GormAssignmentRepository{db: db}
}

// FindByID retrieves an assignment by id
func (r *GormAssignmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*logistics.Assignment, error) {
	return r.findOne(session(ctx, r.db), "id = ?", id.String())
}

// FindByIDForUpdate retrieves an assignment under a row lock
func (r *GormAssignmentRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*logistics.Assignment, error) {
	return r.findOne(forUpdate(session(ctx, r.db)), "id = ?", id.String())
}

// FindAcceptedByOrder retrieves the single ACCEPTED assignment for the order
func (r *GormAssignmentRepository) FindAcceptedByOrder(ctx context.Context, orderID uuid.UUID) (*logistics.Assignment, error) {
	return r.findOne(session(ctx, r.db),
		"order_id = ? AND status = ?", orderID.String(), string(logistics.AssignmentAccepted))
}

// FindByOrderForUpdate locks the order's assignment row regardless of status
func (r *GormAssignmentRepository) FindByOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*logistics.Assignment, error) {
	return r.findOne(forUpdate(session(ctx, r.db)), "order_id = ?", orderID.String())
}

func (r *GormAssignmentRepository) findOne(db *gorm.DB, query string, args ...any) (*logistics.Assignment, error) {
	var model AssignmentModel
	result := db.Where(query, args...).First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("assignment", fmt.Sprintf("%v", args[0]))
		}
		return nil, fmt.Errorf("failed to find assignment: %w", result.Error)
	}
	return assignmentModelToEntity(&model)
}

// ListByOrder retrieves all assignments on an order
func (r *GormAssignmentRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*logistics.Assignment, error) {
	return r.list(ctx, "order_id = ?", orderID.String())
}

// ListByMiddleman retrieves all assignments offered to a middleman
func (r *GormAssignmentRepository) ListByMiddleman(ctx context.Context, middlemanID uuid.UUID) ([]*logistics.Assignment, error) {
	return r.list(ctx, "middleman_id = ?", middlemanID.String())
}

func (r *GormAssignmentRepository) list(ctx context.Context, query string, args ...any) ([]*logistics.Assignment, error) {
	var models []AssignmentModel
	err := session(ctx, r.db).Where(query, args...).Order("created_at DESC").Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}

	assignments := make([]*logistics.Assignment, 0, len(models))
	for i := range models {
		entity, err := assignmentModelToEntity(&models[i])
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, entity)
	}
	return assignments, nil
}

// Create inserts a new assignment row
func (r *GormAssignmentRepository) Create(ctx context.Context, a *logistics.Assignment) error {
	if err := session(ctx, r.db).Create(assignmentEntityToModel(a)).Error; err != nil {
		return fmt.Errorf("failed to create assignment: %w", err)
	}
	return nil
}

// Save persists the full assignment state
func (r *GormAssignmentRepository) Save(ctx context.Context, a *logistics.Assignment) error {
	if err := session(ctx, r.db).Save(assignmentEntityToModel(a)).Error; err != nil {
		return fmt.Errorf("failed to save assignment: %w", err)
	}
	return nil
}

// FindStaleHeartbeats selects ACCEPTED assignments on in-transit orders,
// silent past the cutoff, whose alert has not fired yet. Assignments stay
// ACCEPTED after settlement, so the order status filter keeps settled
// deliveries out of the alarm.
func (r *GormAssignmentRepository) FindStaleHeartbeats(ctx context.Context, cutoff time.Time) ([]*logistics.Assignment, error) {
	var models []AssignmentModel
	db := forUpdateSkipLocked(session(ctx, r.db))
	err := db.
		Where("status = ?", string(logistics.AssignmentAccepted)).
		Where("gps_alert_sent = ?", false).
		Where("last_gps_ping_at IS NOT NULL AND last_gps_ping_at < ?", cutoff).
		Where("order_id IN (SELECT id FROM orders WHERE status = ?)", string(order.StatusInTransit)).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find stale heartbeats: %w", err)
	}

	assignments := make([]*logistics.Assignment, 0, len(models))
	for i := range models {
		entity, err := assignmentModelToEntity(&models[i])
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, entity)
	}
	return assignments, nil
}

// assignmentModelToEntity converts a database model to the domain entity
func assignmentModelToEntity(model *AssignmentModel) (*logistics.Assignment, error) {
	id, err := uuid.Parse(model.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid assignment id %q: %w", model.ID, err)
	}
	orderID, err := uuid.Parse(model.OrderID)
	if err != nil {
		return nil, fmt.Errorf("invalid order id %q: %w", model.OrderID, err)
	}
	middlemanID, err := uuid.Parse(model.MiddlemanID)
	if err != nil {
		return nil, fmt.Errorf("invalid middleman id %q: %w", model.MiddlemanID, err)
	}

	return &logistics.Assignment{
		ID:                  id,
		OrderID:             orderID,
		MiddlemanID:         middlemanID,
		Status:              logistics.AssignmentStatus(model.Status),
		LastGPSPingAt:       model.LastGPSPingAt,
		GPSAlertSent:        model.GPSAlertSent,
		EstimatedDistanceKm: model.EstimatedDistanceKm,
		AgreedFeeCents:      model.AgreedFeeCents,
		OfferedAt:           model.OfferedAt,
		AcceptedAt:          model.AcceptedAt,
		CreatedAt:           model.CreatedAt,
		UpdatedAt:           model.UpdatedAt,
	}, nil
}

// assignmentEntityToModel converts the domain entity to a database model
func assignmentEntityToModel(a *logistics.Assignment) *AssignmentModel {
	return &AssignmentModel{
		ID:                  a.ID.String(),
		OrderID:             a.OrderID.String(),
		MiddlemanID:         a.MiddlemanID.String(),
		Status:              string(a.Status),
		LastGPSPingAt:       a.LastGPSPingAt,
		GPSAlertSent:        a.GPSAlertSent,
		EstimatedDistanceKm: a.EstimatedDistanceKm,
		AgreedFeeCents:      a.AgreedFeeCents,
		OfferedAt:           a.OfferedAt,
		AcceptedAt:          a.AcceptedAt,
		CreatedAt:           a.CreatedAt,
		UpdatedAt:           a.UpdatedAt,
	}
}
