package domain

import "time"

// TaskPriority represents the priority level of a task.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// IsValid checks if the priority is one of the allowed values.
func (p TaskPriority) IsValid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	default:
		return false
	}
}

// Comment is a single comment embedded in a task.
type Comment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Task represents a unit of work on a project board.
//
// Status is a free-form string validated against the owning project's status
// list at the HTTP layer; the automation engine treats it as opaque. Version
// backs compare-and-set writes: every successful save increments it, and a
// save against a stale version fails with ErrConcurrentModification.
type Task struct {
	ID          string
	ProjectID   string
	Title       string
	Description string
	Status      string
	AssignedTo  *string
	CreatedBy   string
	Priority    TaskPriority
	Tags        []string
	DueDate     *time.Time
	Comments    []Comment
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsAssignedTo checks if the task is assigned to the given user.
func (t *Task) IsAssignedTo(userID string) bool {
	return t.AssignedTo != nil && *t.AssignedTo == userID
}

// AddComment appends a comment and returns it.
func (t *Task) AddComment(id, userID, text string, at time.Time) Comment {
	comment := Comment{ID: id, UserID: userID, Text: text, CreatedAt: at}
	t.Comments = append(t.Comments, comment)
	return comment
}
