package domain

// EventKind represents the kind of task mutation that occurred.
type EventKind string

const (
	EventTaskCreated   EventKind = "task_created"
	EventStatusChanged EventKind = "status_changed"
	EventAssigned      EventKind = "assigned"
	EventCommentAdded  EventKind = "comment_added"

	// EventDueDateCheck is synthesized by the due-date scanner rather than by
	// a request-triggered mutation. It flows through the same coordinator.
	EventDueDateCheck EventKind = "due_date_check"
)

// MutationEvent describes a single task mutation for rule evaluation.
// It is ephemeral: built by the mutation source, consumed by the engine,
// never persisted.
type MutationEvent struct {
	ProjectID   string
	TaskID      string
	ActorUserID string
	Kind        EventKind

	// FromStatus/ToStatus are set for status_changed; ToStatus alone is set
	// for task_created (there is no prior status).
	FromStatus *string
	ToStatus   string

	// AssigneeID is set for assigned events.
	AssigneeID string

	// CommentText is set for comment_added events.
	CommentText string
}
