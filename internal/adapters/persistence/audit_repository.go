package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dannymikay/agrimatch-go/internal/domain/audit"
)

// GormAuditRepository implements audit.Repository using GORM
type GormAuditRepository struct {
	db *gorm.DB
}

// NewGormAuditRepository creates a new GORM audit repository
func NewGormAuditRepository(db *gorm.DB) *GormAuditRepository {
	return &GormAuditRepository{db: db}
}

// Append inserts an audit entry. Entries are never updated.
func (r *GormAuditRepository) Append(ctx context.Context, e *audit.Entry) error {
	model, err := auditEntityToModel(e)
	if err != nil {
		return err
	}
	if err := session(ctx, r.db).Create(model).Error; err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ListByOrder retrieves the order's trail in insertion order
func (r *GormAuditRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*audit.Entry, error) {
	var models []AuditLogModel
	err := session(ctx, r.db).
		Where("order_id = ?", orderID.String()).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}

	entries := make([]*audit.Entry, 0, len(models))
	for i := range models {
		entity, err := auditModelToEntity(&models[i])
		if err != nil {
			return nil, err
		}
		entries = append(entries, entity)
	}
	return entries, nil
}

func auditModelToEntity(model *AuditLogModel) (*audit.Entry, error) {
	id, err := uuid.Parse(model.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid audit id %q: %w", model.ID, err)
	}
	orderID, err := uuid.Parse(model.OrderID)
	if err != nil {
		return nil, fmt.Errorf("invalid order id %q: %w", model.OrderID, err)
	}

	e := &audit.Entry{
		ID:         id,
		OrderID:    orderID,
		FromStatus: model.FromStatus,
		ToStatus:   model.ToStatus,
		ActorType:  model.ActorType,
		Reason:     model.Reason,
		CreatedAt:  model.CreatedAt,
	}
	if model.ActorID != nil {
		actorID, err := uuid.Parse(*model.ActorID)
		if err != nil {
			return nil, fmt.Errorf("invalid actor id %q: %w", *model.ActorID, err)
		}
		e.ActorID = &actorID
	}
	if model.ExtraData != "" {
		if err := json.Unmarshal([]byte(model.ExtraData), &e.ExtraData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit extra data: %w", err)
		}
	}
	return e, nil
}

func auditEntityToModel(e *audit.Entry) (*AuditLogModel, error) {
	model := &AuditLogModel{
		ID:         e.ID.String(),
		OrderID:    e.OrderID.String(),
		FromStatus: e.FromStatus,
		ToStatus:   e.ToStatus,
		ActorType:  e.ActorType,
		Reason:     e.Reason,
		CreatedAt:  e.CreatedAt,
	}
	if e.ActorID != nil {
		s := e.ActorID.String()
		model.ActorID = &s
	}
	if e.ExtraData != nil {
		data, err := json.Marshal(e.ExtraData)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal audit extra data: %w", err)
		}
		model.ExtraData = string(data)
	}
	return model, nil
}
