package dto

import (
	"time"

	"github.com/taskboard/taskboard/internal/domain"
)

// CreateProjectRequest represents the request body for POST /projects.
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// AddMemberRequest represents the request body for POST /projects/:id/members.
type AddMemberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
}

// CreateTaskRequest represents the request body for POST /projects/:id/tasks.
type CreateTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status,omitempty"`
	AssignedTo  *string    `json:"assigned_to,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// UpdateTaskRequest represents the request body for PATCH /tasks/:id.
// Nil fields are left unchanged.
type UpdateTaskRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Priority    *string    `json:"priority,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	ClearDue    bool       `json:"clear_due_date,omitempty"`
}

// UpdateTaskStatusRequest represents the request body for PATCH /tasks/:id/status.
type UpdateTaskStatusRequest struct {
	Status string `json:"status"`
}

// AssignTaskRequest represents the request body for PATCH /tasks/:id/assignee.
// A null assigned_to clears the assignee.
type AssignTaskRequest struct {
	AssignedTo *string `json:"assigned_to"`
}

// CommentTaskRequest represents the request body for POST /tasks/:id/comments.
type CommentTaskRequest struct {
	Text string `json:"text"`
}

// CreateRuleRequest represents the request body for POST /projects/:id/automations.
// Trigger and actions arrive in their wire envelopes and decode through the
// domain codecs.
type CreateRuleRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Trigger     domain.Trigger  `json:"trigger"`
	Actions     []domain.Action `json:"actions"`
	IsActive    *bool           `json:"is_active,omitempty"`
}

// UpdateRuleRequest represents the request body for PATCH /automations/:id.
// Nil fields are left unchanged.
type UpdateRuleRequest struct {
	Name        *string         `json:"name,omitempty"`
	Description *string         `json:"description,omitempty"`
	Trigger     *domain.Trigger `json:"trigger,omitempty"`
	Actions     []domain.Action `json:"actions,omitempty"`
	IsActive    *bool           `json:"is_active,omitempty"`
}

// TestRuleRequest represents the request body for POST /automations/:id/test.
type TestRuleRequest struct {
	TaskID string `json:"task_id"`
}
