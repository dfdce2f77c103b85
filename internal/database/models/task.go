package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Task statuses and priorities.
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusCanceled   = "canceled"

	TaskPriorityLow    = "low"
	TaskPriorityMedium = "medium"
	TaskPriorityHigh   = "high"
)

// ErrInvalidTransition is returned when a status change is not allowed from
// the task's current status.
var ErrInvalidTransition = errors.New("invalid task status transition")

func ValidTaskStatus(s string) bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusCanceled:
		return true
	}
	return false
}

func ValidTaskPriority(p string) bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}

// Task is a scheduled activity, optionally linked to a lead, customer or
// deal through its entity reference.
type Task struct {
	Base
	Title       string     `gorm:"size:200;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Status      string     `gorm:"size:20;default:'pending'" json:"status"`
	Priority    string     `gorm:"size:20;default:'medium'" json:"priority"`
	TaskType    string     `gorm:"size:50" json:"task_type,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	EntityRef

	AssignedTo *uuid.UUID `gorm:"type:uuid;index" json:"assigned_to,omitempty"`
	CreatedBy  uuid.UUID  `gorm:"type:uuid;not null;index" json:"created_by"`

	AssignedUser *User `gorm:"foreignKey:AssignedTo" json:"assigned_user,omitempty"`
	Creator      *User `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
}

func (Task) TableName() string {
	return "tasks"
}

// Complete marks the task done. Completing an already completed task is an
// invalid transition.
func (t *Task) Complete() error {
	if t.Status == TaskStatusCompleted {
		return ErrInvalidTransition
	}
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	return nil
}

// Reopen moves a completed or canceled task back to in progress.
func (t *Task) Reopen() error {
	if t.Status != TaskStatusCompleted && t.Status != TaskStatusCanceled {
		return ErrInvalidTransition
	}
	t.Status = TaskStatusInProgress
	t.CompletedAt = nil
	return nil
}

// Cancel aborts a task that has not finished yet.
func (t *Task) Cancel() error {
	if t.Status == TaskStatusCompleted || t.Status == TaskStatusCanceled {
		return ErrInvalidTransition
	}
	t.Status = TaskStatusCanceled
	return nil
}
