package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"taskflow/internal/model"
)

type ChannelRepository struct {
	db *gorm.DB
}

func NewChannelRepository(db *gorm.DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

// Create adds a new channel with the given members
func (r *ChannelRepository) Create(ctx context.Context, channel *model.Channel) error {
	return r.db.WithContext(ctx).Create(channel).Error
}

// GetByID retrieves a channel with its members
func (r *ChannelRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Channel, error) {
	var channel model.Channel
	result := r.db.WithContext(ctx).Preload("Members").First(&channel, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrChannelNotFound
		}
		return nil, result.Error
	}
	return &channel, nil
}

// ListForUser retrieves channels the user is a member of, newest first
func (r *ChannelRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]model.Channel, error) {
	var channels []model.Channel
	result := r.db.WithContext(ctx).
		Preload("Members").
		Where("id IN (SELECT channel_id FROM channel_members WHERE user_id = ?)", userID).
		Order("created_at DESC").
		Find(&channels)
	if result.Error != nil {
		return nil, result.Error
	}
	return channels, nil
}

// IsMember reports whether the user belongs to the channel
func (r *ChannelRepository) IsMember(ctx context.Context, channelID, userID uuid.UUID) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Table("channel_members").
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

// MemberIDs returns the IDs of every channel member
func (r *ChannelRepository) MemberIDs(ctx context.Context, channelID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	result := r.db.WithContext(ctx).
		Table("channel_members").
		Where("channel_id = ?", channelID).
		Pluck("user_id", &ids)
	if result.Error != nil {
		return nil, result.Error
	}
	return ids, nil
}

// AddMembers adds users to the channel's member set
func (r *ChannelRepository) AddMembers(ctx context.Context, channel *model.Channel, users []model.User) error {
	return r.db.WithContext(ctx).Model(channel).Association("Members").Append(users)
}

// CreateMessage appends a message to a channel
func (r *ChannelRepository) CreateMessage(ctx context.Context, message *model.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// ListMessages retrieves a channel's messages oldest first
func (r *ChannelRepository) ListMessages(ctx context.Context, channelID uuid.UUID) ([]model.Message, error) {
	var messages []model.Message
	result := r.db.WithContext(ctx).
		Preload("Sender").
		Preload("Attachments").
		Where("channel_id = ?", channelID).
		Order("created_at").
		Find(&messages)
	if result.Error != nil {
		return nil, result.Error
	}
	return messages, nil
}
