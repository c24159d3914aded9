package domain

import "time"

// ActivityType represents the type of activity feed entry.
type ActivityType string

const (
	ActivityTaskCreated     ActivityType = "task_created"
	ActivityTaskUpdated     ActivityType = "task_updated"
	ActivityTaskCommented   ActivityType = "task_commented"
	ActivityRuleCreated     ActivityType = "automation_created"
	ActivityRuleUpdated     ActivityType = "automation_updated"
	ActivityRuleDeleted     ActivityType = "automation_deleted"
	ActivityAutomationFired ActivityType = "automation_fired"
)

// Activity is an append-only feed entry for a project.
type Activity struct {
	ID          string
	ProjectID   string
	UserID      *string // nil for system/automation entries
	TaskID      *string
	Type        ActivityType
	Description string
	CreatedAt   time.Time
}

// IsSystem returns true if the entry was produced by the system rather
// than a user action.
func (a *Activity) IsSystem() bool {
	return a.UserID == nil
}
