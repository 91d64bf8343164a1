package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"taskflow/internal/bus"
	"taskflow/internal/model"
)

// AuditSink receives write-only audit records.
type AuditSink interface {
	Append(ctx context.Context, actorID *uuid.UUID, action, objectType string, objectID uuid.UUID, changes map[string]interface{}) error
}

// TaskState is the snapshot of a task the diff engine compares. Capture one
// before and one after a mutation.
type TaskState struct {
	ID          uuid.UUID
	Title       string
	Description string
	Priority    string
	Status      string
	Deadline    *time.Time
	ReminderAt  *time.Time
	AssignedTo  *uuid.UUID
	Assignees   []uuid.UUID
}

// StateOf snapshots a loaded task (assignee set must be preloaded).
func StateOf(t *model.Task) TaskState {
	return TaskState{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		Status:      t.Status,
		Deadline:    t.Deadline,
		ReminderAt:  t.ReminderAt,
		AssignedTo:  t.AssignedToID,
		Assignees:   t.AssigneeIDs(),
	}
}

// Engine turns task mutations into the precise set of notifications and audit
// records. The actor is never notified of their own action; a user reachable
// through both the single-assignee field and the assignee set is notified
// once.
type Engine struct {
	store *Store
	audit AuditSink
	bus   Publisher
}

func NewEngine(store *Store, audit AuditSink, publisher Publisher) *Engine {
	return &Engine{store: store, audit: audit, bus: publisher}
}

// OnTaskCreated notifies everyone assigned on a freshly created task and
// appends the create audit record.
func (e *Engine) OnTaskCreated(ctx context.Context, state TaskState, actorID uuid.UUID) {
	toNotify := make(map[uuid.UUID]struct{})
	for _, id := range state.Assignees {
		toNotify[id] = struct{}{}
	}
	if state.AssignedTo != nil {
		toNotify[*state.AssignedTo] = struct{}{}
	}
	delete(toNotify, actorID)

	for id := range toNotify {
		e.assignedNotification(ctx, id, state)
	}

	if err := e.audit.Append(ctx, &actorID, model.ActionCreate, "task", state.ID, map[string]interface{}{
		"title":  state.Title,
		"status": state.Status,
	}); err != nil {
		log.Printf("diff: create audit for task %s: %v", state.ID, err)
	}

	involved := []uuid.UUID{actorID}
	for id := range toNotify {
		involved = append(involved, id)
	}
	e.broadcastInvalidate(state.ID, involved)
}

// OnTaskMutated diffs the before and after snapshots of an updated task and
// emits assignment/update notifications, audit records, and the task list
// invalidation broadcast.
func (e *Engine) OnTaskMutated(ctx context.Context, old, current TaskState, actorID uuid.UUID) {
	oldSet := toSet(old.Assignees)
	newSet := toSet(current.Assignees)

	added := make(map[uuid.UUID]struct{})
	for id := range newSet {
		if _, ok := oldSet[id]; !ok {
			added[id] = struct{}{}
		}
	}

	for id := range added {
		if id == actorID {
			continue
		}
		e.assignedNotification(ctx, id, current)
	}

	// The single-assignee field is a separate notification path from the
	// multi-assignee set; skip it when the set rules already reached the user.
	assignedToChanged := !uuidPtrEqual(old.AssignedTo, current.AssignedTo)
	if current.AssignedTo != nil && assignedToChanged && *current.AssignedTo != actorID {
		id := *current.AssignedTo
		_, inAdded := added[id]
		_, inOldSet := oldSet[id]
		if !inAdded && !inOldSet {
			e.assignedNotification(ctx, id, current)
		}
	}

	if contentChanged(old, current) {
		if err := e.audit.Append(ctx, &actorID, model.ActionUpdate, "task", current.ID, map[string]interface{}{
			"title": current.Title,
		}); err != nil {
			log.Printf("diff: update audit for task %s: %v", current.ID, err)
		}
		for id := range newSet {
			if id == actorID {
				continue
			}
			e.updatedNotification(ctx, id, current)
		}
		if current.AssignedTo != nil && *current.AssignedTo != actorID {
			if _, inNewSet := newSet[*current.AssignedTo]; !inNewSet {
				e.updatedNotification(ctx, *current.AssignedTo, current)
			}
		}
	}

	if old.Status != current.Status {
		if err := e.audit.Append(ctx, &actorID, model.ActionStatus, "task", current.ID, map[string]interface{}{
			"status":   current.Status,
			"previous": old.Status,
		}); err != nil {
			log.Printf("diff: status audit for task %s: %v", current.ID, err)
		}
	}

	if len(added) > 0 || assignedToChanged {
		if err := e.audit.Append(ctx, &actorID, model.ActionAssign, "task", current.ID, map[string]interface{}{
			"assignees": uuidStrings(current.Assignees),
			"previous":  uuidStrings(old.Assignees),
		}); err != nil {
			log.Printf("diff: assign audit for task %s: %v", current.ID, err)
		}
	}

	involved := []uuid.UUID{actorID}
	involved = append(involved, current.Assignees...)
	if current.AssignedTo != nil {
		involved = append(involved, *current.AssignedTo)
	}
	e.broadcastInvalidate(current.ID, involved)
}

// OnTaskDeleted appends the delete audit record.
func (e *Engine) OnTaskDeleted(ctx context.Context, state TaskState, actorID uuid.UUID) {
	if err := e.audit.Append(ctx, &actorID, model.ActionDelete, "task", state.ID, map[string]interface{}{
		"title": state.Title,
	}); err != nil {
		log.Printf("diff: delete audit for task %s: %v", state.ID, err)
	}
	involved := append([]uuid.UUID{actorID}, state.Assignees...)
	if state.AssignedTo != nil {
		involved = append(involved, *state.AssignedTo)
	}
	e.broadcastInvalidate(state.ID, involved)
}

func (e *Engine) assignedNotification(ctx context.Context, recipientID uuid.UUID, state TaskState) {
	_, err := e.store.Create(ctx, recipientID, model.TypeTaskAssigned, "Task Assigned",
		fmt.Sprintf(`You were assigned to task "%s"`, state.Title),
		"/tasks/"+state.ID.String(), map[string]interface{}{"task_id": state.ID.String()})
	if err != nil {
		// One failed recipient must not block the others.
		log.Printf("diff: notify %s about task %s: %v", recipientID, state.ID, err)
	}
}

func (e *Engine) updatedNotification(ctx context.Context, recipientID uuid.UUID, state TaskState) {
	_, err := e.store.Create(ctx, recipientID, model.TypeTaskUpdated, "Task Updated",
		fmt.Sprintf(`Task "%s" was updated.`, state.Title),
		"/tasks/"+state.ID.String(), map[string]interface{}{"task_id": state.ID.String()})
	if err != nil {
		log.Printf("diff: notify %s about task %s: %v", recipientID, state.ID, err)
	}
}

// broadcastInvalidate tells each involved user's live connections to refresh
// their task list.
func (e *Engine) broadcastInvalidate(taskID uuid.UUID, userIDs []uuid.UUID) {
	seen := make(map[uuid.UUID]struct{}, len(userIDs))
	for _, id := range userIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		e.bus.Publish(bus.NotificationsRoom(id), bus.Event{
			Type:    bus.EventTaskListInvalidate,
			Payload: map[string]interface{}{"task_id": taskID.String()},
		})
	}
}

func contentChanged(old, current TaskState) bool {
	return old.Title != current.Title ||
		old.Description != current.Description ||
		old.Priority != current.Priority ||
		!timePtrEqual(old.Deadline, current.Deadline) ||
		!timePtrEqual(old.ReminderAt, current.ReminderAt)
}

func toSet(ids []uuid.UUID) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
