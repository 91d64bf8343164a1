package notify_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"taskflow/internal/bus"
	"taskflow/internal/model"
)

// fakeNotificationRepo is an in-memory NotificationRepo. CreatedAt is stamped
// from the fake clock so dedup windows can be tested deterministically.
type fakeNotificationRepo struct {
	mu      sync.Mutex
	now     time.Time
	created []*model.Notification
	claims  map[string]struct{}
	failFor map[uuid.UUID]error
}

func newFakeNotificationRepo(now time.Time) *fakeNotificationRepo {
	return &fakeNotificationRepo{
		now:     now,
		claims:  make(map[string]struct{}),
		failFor: make(map[uuid.UUID]error),
	}
}

func (f *fakeNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[n.RecipientID]; err != nil {
		return err
	}
	n.ID = uuid.New()
	n.CreatedAt = f.now
	f.created = append(f.created, n)
	return nil
}

func (f *fakeNotificationRepo) ExistsSince(_ context.Context, notificationType string, taskID uuid.UUID, since time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.created {
		if n.NotificationType != notificationType {
			continue
		}
		if n.ExtraData["task_id"] != taskID.String() {
			continue
		}
		if !n.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeNotificationRepo) ClaimWindow(_ context.Context, notificationType string, taskID uuid.UUID, bucket time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("%s|%s|%d", notificationType, taskID, bucket.UnixNano())
	if _, taken := f.claims[key]; taken {
		return false, nil
	}
	f.claims[key] = struct{}{}
	return true, nil
}

func (f *fakeNotificationRepo) setNow(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

func (f *fakeNotificationRepo) byType(notificationType string) []*model.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Notification
	for _, n := range f.created {
		if n.NotificationType == notificationType {
			out = append(out, n)
		}
	}
	return out
}

func (f *fakeNotificationRepo) recipients(notificationType string) map[uuid.UUID]int {
	counts := make(map[uuid.UUID]int)
	for _, n := range f.byType(notificationType) {
		counts[n.RecipientID]++
	}
	return counts
}

// fakeTaskSource serves fixed due-task lists.
type fakeTaskSource struct {
	reminders []model.Task
	deadlines []model.Task
	err       error
}

func (f *fakeTaskSource) DueReminders(context.Context, time.Time) ([]model.Task, error) {
	return f.reminders, f.err
}

func (f *fakeTaskSource) DueDeadlines(context.Context, time.Time) ([]model.Task, error) {
	return f.deadlines, f.err
}

// fakeBus records publishes.
type fakeBus struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	room  string
	event bus.Event
}

func (f *fakeBus) Publish(room string, event bus.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{room: room, event: event})
}

func (f *fakeBus) byType(eventType string) []publishedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []publishedEvent
	for _, p := range f.events {
		if p.event.Type == eventType {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeBus) rooms(eventType string) []string {
	var out []string
	for _, p := range f.byType(eventType) {
		out = append(out, p.room)
	}
	return out
}

// fakeAudit records appended audit entries.
type fakeAudit struct {
	mu      sync.Mutex
	records []auditRecord
}

type auditRecord struct {
	actorID    *uuid.UUID
	action     string
	objectType string
	objectID   uuid.UUID
	changes    map[string]interface{}
}

func (f *fakeAudit) Append(_ context.Context, actorID *uuid.UUID, action, objectType string, objectID uuid.UUID, changes map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, auditRecord{
		actorID:    actorID,
		action:     action,
		objectType: objectType,
		objectID:   objectID,
		changes:    changes,
	})
	return nil
}

func (f *fakeAudit) byAction(action string) []auditRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []auditRecord
	for _, r := range f.records {
		if r.action == action {
			out = append(out, r)
		}
	}
	return out
}
