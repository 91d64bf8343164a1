package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"taskflow/internal/model"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create appends a notification record
func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// ExistsSince reports whether a notification of the given type referring to
// the task was created at or after the given time
func (r *NotificationRepository) ExistsSince(ctx context.Context, notificationType string, taskID uuid.UUID, since time.Time) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("notification_type = ?", notificationType).
		Where("extra_data->>'task_id' = ?", taskID.String()).
		Where("created_at >= ?", since).
		Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

// ClaimWindow atomically claims the (type, task, bucket) window. It returns
// true when this caller inserted the row and false when another writer
// already holds it; the conflicting insert is a no-op, not an error.
func (r *NotificationRepository) ClaimWindow(ctx context.Context, notificationType string, taskID uuid.UUID, bucket time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model.NotificationWindow{
		NotificationType: notificationType,
		TaskID:           taskID,
		Bucket:           bucket,
	})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListByRecipient retrieves the recipient's newest notifications, capped at limit
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID uuid.UUID, limit int) ([]model.Notification, error) {
	var notifications []model.Notification
	result := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications)
	if result.Error != nil {
		return nil, result.Error
	}
	return notifications, nil
}

// MarkRead flips the read flag on one of the recipient's notifications
func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead flips the read flag on every unread notification of the recipient
func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("recipient_id = ? AND read = ?", recipientID, false).
		Update("read", true)
	return result.RowsAffected, result.Error
}

// CountUnread returns the recipient's unread notification count
func (r *NotificationRepository) CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("recipient_id = ? AND read = ?", recipientID, false).
		Count(&count)
	return count, result.Error
}
