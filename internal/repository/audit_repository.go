package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"taskflow/internal/model"
)

// AuditRepository is the write-only sink for audit records.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append writes one audit record
func (r *AuditRepository) Append(ctx context.Context, actorID *uuid.UUID, action, objectType string, objectID uuid.UUID, changes map[string]interface{}) error {
	record := &model.AuditLog{
		UserID:     actorID,
		Action:     action,
		ObjectType: objectType,
		ObjectID:   &objectID,
		Changes:    changes,
	}
	return r.db.WithContext(ctx).Create(record).Error
}
