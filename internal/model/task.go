package model

import "time"

// Per-plan capacity and task body limits. Exceeding either is truncated at
// the boundary, never rejected.
const (
	MaxTasksPerPlan = 10
	MaxTaskBodyLen  = 255
)

// TaskStatus is the outcome state of a single task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskDone       TaskStatus = "done"
	TaskInProgress TaskStatus = "in_progress"
	TaskSkipped    TaskStatus = "skipped"
)

// ValidTaskStatus reports whether s is one of the known outcome states.
func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskPending, TaskDone, TaskInProgress, TaskSkipped:
		return true
	}
	return false
}

// Remaining reports whether the task still needs attention today.
func (s TaskStatus) Remaining() bool {
	return s != TaskDone && s != TaskSkipped
}

// Task is one action item inside a plan. Position is unique within the plan
// and forms a dense 1..N sequence. CarriedFromTaskID is a weak reference to
// a task in a different plan, kept for traceability only: the referenced
// row is never mutated and may no longer exist.
type Task struct {
	ID                uint `gorm:"primaryKey"`
	PlanID            uint `gorm:"index"`
	UserID            uint `gorm:"index"`
	AreaID            *uint
	Body              string
	Position          int
	Status            TaskStatus `gorm:"default:pending"`
	StatusChangedAt   *time.Time
	CarriedFromTaskID *uint
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
