package dto

import (
	"time"

	"github.com/taskboard/taskboard/internal/domain"
)

// CommentInfo represents a single task comment.
type CommentInfo struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskResponse represents a full task object.
type TaskResponse struct {
	ID          string        `json:"id"`
	ProjectID   string        `json:"project_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      string        `json:"status"`
	AssignedTo  *string       `json:"assigned_to"`
	CreatedBy   string        `json:"created_by"`
	Priority    string        `json:"priority"`
	Tags        []string      `json:"tags"`
	DueDate     *time.Time    `json:"due_date"`
	Comments    []CommentInfo `json:"comments"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// TasksListResponse represents the response for GET /projects/:id/tasks.
type TasksListResponse struct {
	Tasks []TaskResponse `json:"tasks"`
	Total int            `json:"total"`
}

// RuleResponse represents an automation rule. Trigger and actions keep their
// wire envelopes via the domain codecs.
type RuleResponse struct {
	ID              string          `json:"id"`
	ProjectID       string          `json:"project_id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Trigger         domain.Trigger  `json:"trigger"`
	Actions         []domain.Action `json:"actions"`
	IsActive        bool            `json:"is_active"`
	CreatedBy       string          `json:"created_by"`
	LastTriggeredAt *time.Time      `json:"last_triggered_at"`
	TriggerCount    int             `json:"trigger_count"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// RulesListResponse represents the response for GET /projects/:id/automations.
type RulesListResponse struct {
	Automations []RuleResponse `json:"automations"`
	Total       int            `json:"total"`
}

// MemberInfo represents a project membership.
type MemberInfo struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// StatusInfo represents a board column.
type StatusInfo struct {
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// ProjectResponse represents a project with its board and members.
type ProjectResponse struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	OwnerID     string       `json:"owner_id"`
	Members     []MemberInfo `json:"members"`
	Statuses    []StatusInfo `json:"statuses"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// ProjectsListResponse represents the response for GET /projects.
type ProjectsListResponse struct {
	Projects []ProjectResponse `json:"projects"`
	Total    int               `json:"total"`
}

// ActivityInfo represents one feed entry.
type ActivityInfo struct {
	ID          string    `json:"id"`
	UserID      *string   `json:"user_id"`
	TaskID      *string   `json:"task_id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// ActivityListResponse represents the response for GET /projects/:id/activity.
type ActivityListResponse struct {
	Activities []ActivityInfo `json:"activities"`
	Total      int            `json:"total"`
}

// ToTaskResponse converts domain.Task to TaskResponse.
func ToTaskResponse(task *domain.Task) TaskResponse {
	comments := make([]CommentInfo, len(task.Comments))
	for i, c := range task.Comments {
		comments[i] = CommentInfo{
			ID:        c.ID,
			UserID:    c.UserID,
			Text:      c.Text,
			CreatedAt: c.CreatedAt,
		}
	}

	tags := task.Tags
	if tags == nil {
		tags = []string{}
	}

	return TaskResponse{
		ID:          task.ID,
		ProjectID:   task.ProjectID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		AssignedTo:  task.AssignedTo,
		CreatedBy:   task.CreatedBy,
		Priority:    string(task.Priority),
		Tags:        tags,
		DueDate:     task.DueDate,
		Comments:    comments,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

// ToRuleResponse converts domain.AutomationRule to RuleResponse.
func ToRuleResponse(rule *domain.AutomationRule) RuleResponse {
	return RuleResponse{
		ID:              rule.ID,
		ProjectID:       rule.ProjectID,
		Name:            rule.Name,
		Description:     rule.Description,
		Trigger:         rule.Trigger,
		Actions:         rule.Actions,
		IsActive:        rule.IsActive,
		CreatedBy:       rule.CreatedBy,
		LastTriggeredAt: rule.LastTriggeredAt,
		TriggerCount:    rule.TriggerCount,
		CreatedAt:       rule.CreatedAt,
		UpdatedAt:       rule.UpdatedAt,
	}
}

// ToProjectResponse converts domain.Project to ProjectResponse.
func ToProjectResponse(project *domain.Project) ProjectResponse {
	members := make([]MemberInfo, len(project.Members))
	for i, m := range project.Members {
		members[i] = MemberInfo{UserID: m.UserID, Role: string(m.Role)}
	}
	statuses := make([]StatusInfo, len(project.Statuses))
	for i, s := range project.Statuses {
		statuses[i] = StatusInfo{Name: s.Name, Order: s.Order}
	}

	return ProjectResponse{
		ID:          project.ID,
		Name:        project.Name,
		Description: project.Description,
		OwnerID:     project.OwnerID,
		Members:     members,
		Statuses:    statuses,
		CreatedAt:   project.CreatedAt,
		UpdatedAt:   project.UpdatedAt,
	}
}

// ToActivityInfo converts domain.Activity to ActivityInfo.
func ToActivityInfo(activity *domain.Activity) ActivityInfo {
	return ActivityInfo{
		ID:          activity.ID,
		UserID:      activity.UserID,
		TaskID:      activity.TaskID,
		Type:        string(activity.Type),
		Description: activity.Description,
		CreatedAt:   activity.CreatedAt,
	}
}
