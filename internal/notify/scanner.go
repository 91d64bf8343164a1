package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"taskflow/internal/model"
)

// TaskSource is the slice of the task repository the scanner reads.
type TaskSource interface {
	DueReminders(ctx context.Context, now time.Time) ([]model.Task, error)
	DueDeadlines(ctx context.Context, now time.Time) ([]model.Task, error)
}

// Scanner creates reminder and deadline notifications for tasks whose
// reminder time or deadline has passed. It holds no state between runs; an
// external scheduler invokes Scan on a fixed period and overlapping runs are
// safe thanks to the dedup window claim.
type Scanner struct {
	tasks TaskSource
	store *Store
	dedup *Dedup
}

func NewScanner(tasks TaskSource, store *Store, dedup *Dedup) *Scanner {
	return &Scanner{tasks: tasks, store: store, dedup: dedup}
}

// Scan processes due reminders and deadlines as of now and returns how many
// notifications of each kind were created. With dryRun set it returns the
// would-be counts without writing anything. A failure on one task is logged
// and does not abort the rest of the run; the counts reflect successful
// creations only.
func (s *Scanner) Scan(ctx context.Context, now time.Time, dryRun bool) (remindersCreated, deadlinesCreated int, err error) {
	reminderTasks, err := s.tasks.DueReminders(ctx, now)
	if err != nil {
		return 0, 0, fmt.Errorf("selecting due reminders: %w", err)
	}
	for _, task := range reminderTasks {
		created, err := s.process(ctx, &task, model.TypeReminder, ReminderWindow, now, dryRun)
		if err != nil {
			log.Printf("scan: reminder for task %s: %v", task.ID, err)
			continue
		}
		if created {
			remindersCreated++
		}
	}

	deadlineTasks, err := s.tasks.DueDeadlines(ctx, now)
	if err != nil {
		return remindersCreated, 0, fmt.Errorf("selecting due deadlines: %w", err)
	}
	for _, task := range deadlineTasks {
		created, err := s.process(ctx, &task, model.TypeDeadline, DeadlineWindow, now, dryRun)
		if err != nil {
			log.Printf("scan: deadline for task %s: %v", task.ID, err)
			continue
		}
		if created {
			deadlinesCreated++
		}
	}

	return remindersCreated, deadlinesCreated, nil
}

func (s *Scanner) process(ctx context.Context, task *model.Task, notificationType string, window time.Duration, now time.Time, dryRun bool) (bool, error) {
	notified, err := s.dedup.AlreadyNotified(ctx, notificationType, task.ID, window, now)
	if err != nil {
		return false, err
	}
	if notified {
		return false, nil
	}

	recipient := task.AssignedToID
	if recipient == nil {
		recipient = task.CreatedByID
	}
	if recipient == nil {
		return false, nil
	}

	if dryRun {
		return true, nil
	}

	claimed, err := s.dedup.Claim(ctx, notificationType, task.ID, window, now)
	if err != nil {
		return false, err
	}
	if !claimed {
		// A concurrent run already holds this window.
		return false, nil
	}

	title, message := scanMessage(notificationType, task.Title)
	_, err = s.store.Create(ctx, *recipient, notificationType, title, message,
		"/tasks/"+task.ID.String(), map[string]interface{}{"task_id": task.ID.String()})
	if err != nil {
		return false, err
	}
	return true, nil
}

func scanMessage(notificationType, taskTitle string) (title, message string) {
	if notificationType == model.TypeDeadline {
		return "Deadline Reached", fmt.Sprintf(`Task "%s" has reached its deadline.`, taskTitle)
	}
	return "Reminder", fmt.Sprintf(`Task "%s" reminder.`, taskTitle)
}
