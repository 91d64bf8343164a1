package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Dedup windows per notification kind. The scanner runs every minute and a
// due reminder stays due forever, so repeats of the same kind for the same
// task are suppressed inside a trailing window: at most one reminder per hour
// and one deadline notice per day. A repeat after the window elapses is
// accepted operational behavior.
const (
	ReminderWindow = time.Hour
	DeadlineWindow = 24 * time.Hour
)

// Dedup decides whether a notification of a given kind for a given task was
// already emitted recently.
type Dedup struct {
	notifications NotificationRepo
}

func NewDedup(notifications NotificationRepo) *Dedup {
	return &Dedup{notifications: notifications}
}

// AlreadyNotified reports whether a notification of the kind referring to the
// task exists inside the trailing window ending at now.
func (d *Dedup) AlreadyNotified(ctx context.Context, notificationType string, taskID uuid.UUID, window time.Duration, now time.Time) (bool, error) {
	return d.notifications.ExistsSince(ctx, notificationType, taskID, now.Add(-window))
}

// Claim atomically claims the window bucket containing now for the (kind,
// task) pair. The trailing-window check above is not atomic against a
// concurrent scan; the bucket claim makes the second writer a no-op so two
// overlapping scans cannot both notify. Returns false when another writer
// already holds the bucket.
func (d *Dedup) Claim(ctx context.Context, notificationType string, taskID uuid.UUID, window time.Duration, now time.Time) (bool, error) {
	return d.notifications.ClaimWindow(ctx, notificationType, taskID, now.Truncate(window))
}
