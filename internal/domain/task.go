package domain

import (
	"context"
	"strings"
	"time"
)

// TaskStatus values form the task state machine: PENDING at creation, then
// free transitions between the three states until deletion.
type TaskStatus string

const (
	StatusPending    TaskStatus = "PENDING"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusCompleted  TaskStatus = "COMPLETED"
)

func ParseTaskStatus(s string) (TaskStatus, bool) {
	switch TaskStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, true
	case StatusInProgress:
		return StatusInProgress, true
	case StatusCompleted:
		return StatusCompleted, true
	}
	return "", false
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "LOW"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityHigh   TaskPriority = "HIGH"
)

func ParseTaskPriority(s string) (TaskPriority, bool) {
	switch TaskPriority(strings.ToUpper(strings.TrimSpace(s))) {
	case PriorityLow:
		return PriorityLow, true
	case PriorityMedium:
		return PriorityMedium, true
	case PriorityHigh:
		return PriorityHigh, true
	}
	return "", false
}

// Task is a unit of work created by a manager and assigned to one or more
// employees. ManagerID identifies the creating manager's employee record.
type Task struct {
	ID                  string
	Title               string
	Description         string
	Status              TaskStatus
	Priority            TaskPriority
	DueDate             *time.Time // nil means no due date
	ManagerID           string
	AssignedEmployeeIDs []string // non-empty at creation
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// AssignedTo reports whether the employee id is among the task's assignees.
func (t *Task) AssignedTo(employeeID string) bool {
	for _, id := range t.AssignedEmployeeIDs {
		if id == employeeID {
			return true
		}
	}
	return false
}

// ManagerSummary is the creator information attached to task responses.
type ManagerSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TaskPatch carries a partial update. Pointer fields distinguish "absent"
/// from "present"; DueDate keeps the original tri-state: DueDateSet false
// leaves the stored value untouched, DueDateSet true with a nil DueDate
// clears it.
type TaskPatch struct {
	Title               *string
	Description         *string
	Status              *TaskStatus
	Priority            *TaskPriority
	DueDate             *time.Time
	DueDateSet          bool
	AssignedEmployeeIDs []string // nil means untouched
}

// TaskRepository defines data access for tasks.
type TaskRepository interface {
	Create(ctx context.Context, task *Task) error
	GetByID(ctx context.Context, id string) (*Task, error)
	Update(ctx context.Context, task *Task) error
	Delete(ctx context.Context, id string) error
	// List returns all tasks, newest first.
	List(ctx context.Context) ([]*Task, error)
	// ListVisible returns tasks created by creatorID or assigned to any of
	// assigneeIDs, newest first.
	ListVisible(ctx context.Context, creatorID string, assigneeIDs []string) ([]*Task, error)
}
