package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ChannelDirect = "direct"
	ChannelGroup  = "group"
)

type Channel struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	Name        string    `json:"name" gorm:"size:100"`
	ChannelType string    `json:"channel_type" gorm:"size:20;not null;default:direct"`
	CreatedAt   time.Time `json:"created_at"`

	Members []User `json:"members" gorm:"many2many:channel_members"`
}

type Message struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	ChannelID uuid.UUID  `json:"channel_id" gorm:"type:uuid;not null;index"`
	SenderID  *uuid.UUID `json:"sender" gorm:"type:uuid"`
	Content   string     `json:"content" gorm:"not null"`
	CreatedAt time.Time  `json:"created_at"`

	Channel     Channel             `json:"-" gorm:"foreignKey:ChannelID"`
	Sender      *User               `json:"sender_detail,omitempty" gorm:"foreignKey:SenderID"`
	Attachments []MessageAttachment `json:"attachments" gorm:"foreignKey:MessageID"`
}

type MessageAttachment struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	MessageID    uuid.UUID  `json:"message_id" gorm:"type:uuid;not null;index"`
	Filename     string     `json:"filename" gorm:"size:255;not null"`
	Path         string     `json:"path" gorm:"size:500;not null"`
	UploadedByID *uuid.UUID `json:"uploaded_by" gorm:"type:uuid"`
	CreatedAt    time.Time  `json:"created_at"`
}
