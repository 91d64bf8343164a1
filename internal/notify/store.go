// Package notify holds the notification workflow engine: the single creation
// path for notification records, the dedup window checker, the periodic
// reminder/deadline scanner, and the assignment diff engine.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"taskflow/internal/bus"
	"taskflow/internal/model"
)

// NotificationRepo is the persistence the engine depends on.
type NotificationRepo interface {
	Create(ctx context.Context, n *model.Notification) error
	ExistsSince(ctx context.Context, notificationType string, taskID uuid.UUID, since time.Time) (bool, error)
	ClaimWindow(ctx context.Context, notificationType string, taskID uuid.UUID, bucket time.Time) (bool, error)
}

// Publisher is the slice of the event bus the engine publishes through.
type Publisher interface {
	Publish(room string, event bus.Event)
}

// Store is the only component that creates notification records. Create
// persists the record and then triggers exactly one live publish to the
// recipient's room; the publish is best-effort and the stored row is the
// durable source of truth.
type Store struct {
	notifications NotificationRepo
	bus           Publisher
}

func NewStore(notifications NotificationRepo, publisher Publisher) *Store {
	return &Store{notifications: notifications, bus: publisher}
}

func (s *Store) Create(ctx context.Context, recipientID uuid.UUID, notificationType, title, message, link string, extra map[string]interface{}) (*model.Notification, error) {
	n := &model.Notification{
		RecipientID:      recipientID,
		NotificationType: notificationType,
		Title:            title,
		Message:          message,
		Link:             link,
		ExtraData:        extra,
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		return nil, err
	}
	s.bus.Publish(bus.NotificationsRoom(recipientID), bus.Event{
		Type: bus.EventNotification,
		Payload: map[string]interface{}{
			"id":                n.ID,
			"notification_type": n.NotificationType,
			"title":             n.Title,
			"message":           n.Message,
			"link":              n.Link,
			"read":              n.Read,
			"created_at":        n.CreatedAt,
			"extra_data":        n.ExtraData,
		},
	})
	return n, nil
}
