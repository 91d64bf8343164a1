package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending   = "pending"
	StatusOngoing   = "ongoing"
	StatusFinished  = "finished"
	StatusCancelled = "cancelled"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Task is always assigned to people (AssignedTo and/or Assignees) or to a
// role, never both; writers clear one side when setting the other.
type Task struct {
	ID               uuid.UUID  `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	Title            string     `json:"title" gorm:"not null"`
	Description      string     `json:"description"`
	Priority         string     `json:"priority" gorm:"size:20;not null;default:medium"`
	Status           string     `json:"status" gorm:"size:20;not null;default:pending;index"`
	Deadline         *time.Time `json:"deadline"`
	ReminderAt       *time.Time `json:"reminder_at"`
	AssignedToID     *uuid.UUID `json:"assigned_to" gorm:"type:uuid"`
	AssignedToRoleID *uuid.UUID `json:"assigned_to_role" gorm:"type:uuid"`
	CreatedByID      *uuid.UUID `json:"created_by" gorm:"type:uuid"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	AssignedTo     *User  `json:"assigned_to_detail,omitempty" gorm:"foreignKey:AssignedToID"`
	AssignedToRole *Role  `json:"assigned_to_role_detail,omitempty" gorm:"foreignKey:AssignedToRoleID"`
	CreatedBy      *User  `json:"created_by_detail,omitempty" gorm:"foreignKey:CreatedByID"`
	Assignees      []User `json:"assignees" gorm:"many2many:task_assignees"`
}

// IsOverdue reports whether the deadline has passed on a task that is still
// open. Finished and cancelled tasks are never overdue.
func (t *Task) IsOverdue(now time.Time) bool {
	if t.Deadline == nil || t.Status == StatusFinished || t.Status == StatusCancelled {
		return false
	}
	return now.After(*t.Deadline)
}

func (t *Task) AssigneeIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(t.Assignees))
	for _, u := range t.Assignees {
		ids = append(ids, u.ID)
	}
	return ids
}

type TaskComment struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	TaskID    uuid.UUID  `json:"task_id" gorm:"type:uuid;not null;index"`
	AuthorID  *uuid.UUID `json:"author" gorm:"type:uuid"`
	Body      string     `json:"body" gorm:"not null"`
	CreatedAt time.Time  `json:"created_at"`

	Task   Task  `json:"-" gorm:"foreignKey:TaskID"`
	Author *User `json:"author_detail,omitempty" gorm:"foreignKey:AuthorID"`
}
