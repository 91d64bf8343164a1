package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionAssign = "assign"
	ActionStatus = "status"
)

// AuditLog is a write-only trail of who changed what. The workflow engine
// appends records; nothing in this process reads them back.
type AuditLog struct {
	ID         uuid.UUID         `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	UserID     *uuid.UUID        `gorm:"type:uuid;index"`
	Action     string            `gorm:"size:20;not null"`
	ObjectType string            `gorm:"size:50;not null"`
	ObjectID   *uuid.UUID        `gorm:"type:uuid"`
	Changes    datatypes.JSONMap
	CreatedAt  time.Time         `gorm:"index"`
}
