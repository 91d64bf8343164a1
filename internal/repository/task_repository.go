package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"taskflow/internal/model"
)

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// TaskFilter narrows List results. Zero values mean "no constraint".
type TaskFilter struct {
	Status     string
	Priority   string
	AssignedTo *uuid.UUID
	CreatedBy  *uuid.UUID
	// VisibleTo limits results to tasks the user created, is assigned to,
	// or appears in the assignee set of. Nil means no visibility filter.
	VisibleTo *uuid.UUID
	// AssignedUser limits results to tasks where the user is the single
	// assignee or a member of the assignee set.
	AssignedUser *uuid.UUID
}

// Create adds a new task to the database
func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// GetByID retrieves a task with its assignee set by ID
func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	var task model.Task
	result := r.db.WithContext(ctx).
		Preload("Assignees").
		Preload("AssignedTo").
		Preload("CreatedBy").
		First(&task, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, result.Error
	}
	return &task, nil
}

// List retrieves tasks matching the filter, newest first
func (r *TaskRepository) List(ctx context.Context, f TaskFilter) ([]model.Task, error) {
	q := r.db.WithContext(ctx).Model(&model.Task{}).Preload("Assignees").Order("created_at DESC")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Priority != "" {
		q = q.Where("priority = ?", f.Priority)
	}
	if f.AssignedTo != nil {
		q = q.Where("assigned_to_id = ?", *f.AssignedTo)
	}
	if f.CreatedBy != nil {
		q = q.Where("created_by_id = ?", *f.CreatedBy)
	}
	if f.VisibleTo != nil {
		q = q.Where(
			"created_by_id = ? OR assigned_to_id = ? OR id IN (SELECT task_id FROM task_assignees WHERE user_id = ?)",
			*f.VisibleTo, *f.VisibleTo, *f.VisibleTo,
		)
	}
	if f.AssignedUser != nil {
		q = q.Where(
			"assigned_to_id = ? OR id IN (SELECT task_id FROM task_assignees WHERE user_id = ?)",
			*f.AssignedUser, *f.AssignedUser,
		)
	}
	var tasks []model.Task
	if err := q.Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// Update updates an existing task
func (r *TaskRepository) Update(ctx context.Context, task *model.Task) error {
	result := r.db.WithContext(ctx).Omit("Assignees", "AssignedTo", "CreatedBy", "AssignedToRole").Save(task)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// Delete removes a task by its ID
func (r *TaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&model.Task{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// SetAssignees replaces the task's assignee set
func (r *TaskRepository) SetAssignees(ctx context.Context, task *model.Task, users []model.User) error {
	return r.db.WithContext(ctx).Model(task).Association("Assignees").Replace(users)
}

// DueReminders retrieves open tasks whose reminder time has passed
func (r *TaskRepository) DueReminders(ctx context.Context, now time.Time) ([]model.Task, error) {
	return r.due(ctx, "reminder_at", now)
}

// DueDeadlines retrieves open tasks whose deadline has passed
func (r *TaskRepository) DueDeadlines(ctx context.Context, now time.Time) ([]model.Task, error) {
	return r.due(ctx, "deadline", now)
}

func (r *TaskRepository) due(ctx context.Context, column string, now time.Time) ([]model.Task, error) {
	var tasks []model.Task
	result := r.db.WithContext(ctx).
		Where("status IN ?", []string{model.StatusPending, model.StatusOngoing}).
		Where(column+" IS NOT NULL AND "+column+" <= ?", now).
		Find(&tasks)
	if result.Error != nil {
		return nil, result.Error
	}
	return tasks, nil
}

// CreateComment adds a comment to a task
func (r *TaskRepository) CreateComment(ctx context.Context, comment *model.TaskComment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

// ListComments retrieves a task's comments oldest first
func (r *TaskRepository) ListComments(ctx context.Context, taskID uuid.UUID) ([]model.TaskComment, error) {
	var comments []model.TaskComment
	result := r.db.WithContext(ctx).
		Preload("Author").
		Where("task_id = ?", taskID).
		Order("created_at").
		Find(&comments)
	if result.Error != nil {
		return nil, result.Error
	}
	return comments, nil
}
