package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	TypeTaskAssigned = "task_assigned"
	TypeTaskUpdated  = "task_updated"
	TypeReminder     = "reminder"
	TypeDeadline     = "deadline"
	TypeChatMessage  = "chat_message"
	TypeTaskComment  = "task_comment"
)

// Notification is append-only: rows are created once and only the Read flag
// is ever updated afterwards. ExtraData correlates the row back to its source
// (task_id, comment_id, channel_id, message_id).
type Notification struct {
	ID               uuid.UUID         `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	RecipientID      uuid.UUID         `json:"recipient" gorm:"type:uuid;not null;index"`
	NotificationType string            `json:"notification_type" gorm:"size:30;not null;index"`
	Title            string            `json:"title" gorm:"size:255;not null"`
	Message          string            `json:"message"`
	Link             string            `json:"link" gorm:"size:500"`
	Read             bool              `json:"read" gorm:"not null;default:false"`
	CreatedAt        time.Time         `json:"created_at" gorm:"index"`
	ExtraData        datatypes.JSONMap `json:"extra_data"`

	Recipient User `json:"-" gorm:"foreignKey:RecipientID"`
}

// NotificationWindow is the uniqueness guard for the reminder/deadline
// scanner: one row per (type, task, window bucket). Inserted with ON CONFLICT
// DO NOTHING so that of two concurrent scans only one claims the bucket.
type NotificationWindow struct {
	NotificationType string    `gorm:"size:30;primaryKey"`
	TaskID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Bucket           time.Time `gorm:"primaryKey"`
	CreatedAt        time.Time
}
