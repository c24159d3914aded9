package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/taskboard/taskboard/internal/automation"
	"github.com/taskboard/taskboard/internal/config"
	"github.com/taskboard/taskboard/internal/domain"
	"github.com/taskboard/taskboard/internal/repository"
)

// TaskService coordinates task operations. Every successful mutation is
// followed by an automation evaluation pass; automation failures are logged
// and never fail the originating request.
type TaskService struct {
	pool         *pgxpool.Pool
	taskRepo     *repository.TaskRepository
	projectRepo  *repository.ProjectRepository
	userRepo     *repository.UserRepository
	activityRepo *repository.ActivityRepository
	engine       *automation.Engine
}

// NewTaskService creates a new TaskService.
func NewTaskService(
	pool *pgxpool.Pool,
	taskRepo *repository.TaskRepository,
	projectRepo *repository.ProjectRepository,
	userRepo *repository.UserRepository,
	activityRepo *repository.ActivityRepository,
	engine *automation.Engine,
) *TaskService {
	return &TaskService{
		pool:         pool,
		taskRepo:     taskRepo,
		projectRepo:  projectRepo,
		userRepo:     userRepo,
		activityRepo: activityRepo,
		engine:       engine,
	}
}

// CreateTaskInput carries the fields for a new task.
type CreateTaskInput struct {
	ProjectID   string
	Title       string
	Description string
	Status      string
	AssignedTo  *string
	Priority    domain.TaskPriority
	Tags        []string
	DueDate     *time.Time
}

// CreateTask creates a task on a project board. The task and its feed entry
// commit in one transaction; automation runs afterwards against the
// committed row.
func (s *TaskService) CreateTask(ctx context.Context, input CreateTaskInput, actorID string) (*domain.Task, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, domain.ErrEmptyTitle
	}

	project, err := s.memberProject(ctx, input.ProjectID, actorID)
	if err != nil {
		return nil, err
	}

	status := input.Status
	if status == "" && len(project.Statuses) > 0 {
		status = project.Statuses[0].Name
	}
	if !project.HasStatus(status) {
		return nil, fmt.Errorf("%w: %q is not on the board", domain.ErrInvalidStatus, status)
	}
	if input.Priority != "" && !input.Priority.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPriority, input.Priority)
	}
	if input.AssignedTo != nil {
		if err := s.checkAssignee(ctx, project, *input.AssignedTo); err != nil {
			return nil, err
		}
	}

	task := &domain.Task{
		ProjectID:   input.ProjectID,
		Title:       input.Title,
		Description: input.Description,
		Status:      status,
		AssignedTo:  input.AssignedTo,
		CreatedBy:   actorID,
		Priority:    input.Priority,
		Tags:        input.Tags,
		DueDate:     input.DueDate,
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && err.Error() != "tx is closed" {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	if _, err := s.taskRepo.Create(ctx, tx, task); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.recordActivity(ctx, task, actorID, domain.ActivityTaskCreated,
		fmt.Sprintf("created task %q", task.Title))

	slog.Info("task created",
		"task_id", task.ID,
		"project_id", task.ProjectID,
		"status", task.Status,
	)

	s.emit(ctx, domain.MutationEvent{
		ProjectID:   task.ProjectID,
		TaskID:      task.ID,
		ActorUserID: actorID,
		Kind:        domain.EventTaskCreated,
		ToStatus:    task.Status,
	})
	if task.AssignedTo != nil {
		s.emit(ctx, domain.MutationEvent{
			ProjectID:   task.ProjectID,
			TaskID:      task.ID,
			ActorUserID: actorID,
			Kind:        domain.EventAssigned,
			AssigneeID:  *task.AssignedTo,
		})
	}

	return s.taskRepo.GetByID(ctx, task.ID)
}

// UpdateStatus moves a task to another board column.
func (s *TaskService) UpdateStatus(ctx context.Context, taskID, actorID, newStatus string) (*domain.Task, error) {
	var oldStatus string

	task, err := s.saveWithRetry(ctx, taskID, func(task *domain.Task) error {
		project, err := s.memberProject(ctx, task.ProjectID, actorID)
		if err != nil {
			return err
		}
		if !project.HasStatus(newStatus) {
			return fmt.Errorf("%w: %q is not on the board", domain.ErrInvalidStatus, newStatus)
		}
		oldStatus = task.Status
		task.Status = newStatus
		return nil
	})
	if err != nil {
		return nil, err
	}
	if oldStatus == newStatus {
		return task, nil
	}

	s.recordActivity(ctx, task, actorID, domain.ActivityTaskUpdated,
		fmt.Sprintf("moved task %q from %q to %q", task.Title, oldStatus, newStatus))

	slog.Info("task status changed",
		"task_id", taskID,
		"old_status", oldStatus,
		"new_status", newStatus,
	)

	s.emit(ctx, domain.MutationEvent{
		ProjectID:   task.ProjectID,
		TaskID:      task.ID,
		ActorUserID: actorID,
		Kind:        domain.EventStatusChanged,
		FromStatus:  &oldStatus,
		ToStatus:    newStatus,
	})

	return s.taskRepo.GetByID(ctx, task.ID)
}

// AssignTask assigns the task to a project member, or clears the assignee
// when assigneeID is nil.
func (s *TaskService) AssignTask(ctx context.Context, taskID, actorID string, assigneeID *string) (*domain.Task, error) {
	task, err := s.saveWithRetry(ctx, taskID, func(task *domain.Task) error {
		project, err := s.memberProject(ctx, task.ProjectID, actorID)
		if err != nil {
			return err
		}
		if assigneeID != nil {
			if err := s.checkAssignee(ctx, project, *assigneeID); err != nil {
				return err
			}
		}
		task.AssignedTo = assigneeID
		return nil
	})
	if err != nil {
		return nil, err
	}

	description := fmt.Sprintf("unassigned task %q", task.Title)
	if assigneeID != nil {
		description = fmt.Sprintf("assigned task %q", task.Title)
	}
	s.recordActivity(ctx, task, actorID, domain.ActivityTaskUpdated, description)

	slog.Info("task assignment changed", "task_id", taskID, "assignee", assigneeID)

	if assigneeID != nil {
		s.emit(ctx, domain.MutationEvent{
			ProjectID:   task.ProjectID,
			TaskID:      task.ID,
			ActorUserID: actorID,
			Kind:        domain.EventAssigned,
			AssigneeID:  *assigneeID,
		})
	}

	return s.taskRepo.GetByID(ctx, task.ID)
}

// AddComment appends a comment authored by the actor.
func (s *TaskService) AddComment(ctx context.Context, taskID, actorID, text string) (*domain.Task, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyComment
	}

	task, err := s.saveWithRetry(ctx, taskID, func(task *domain.Task) error {
		if _, err := s.memberProject(ctx, task.ProjectID, actorID); err != nil {
			return err
		}
		task.AddComment(uuid.NewString(), actorID, text, time.Now().UTC())
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordActivity(ctx, task, actorID, domain.ActivityTaskCommented,
		fmt.Sprintf("commented on task %q", task.Title))

	s.emit(ctx, domain.MutationEvent{
		ProjectID:   task.ProjectID,
		TaskID:      task.ID,
		ActorUserID: actorID,
		Kind:        domain.EventCommentAdded,
		CommentText: text,
	})

	return s.taskRepo.GetByID(ctx, task.ID)
}

// UpdateTaskInput carries optional field updates; nil fields are unchanged.
type UpdateTaskInput struct {
	Title       *string
	Description *string
	Priority    *domain.TaskPriority
	Tags        []string
	DueDate     *time.Time
	ClearDue    bool
}

// UpdateTask edits a task's descriptive fields. Status and assignee move
// through their own operations so automation sees them as events.
func (s *TaskService) UpdateTask(ctx context.Context, taskID, actorID string, input UpdateTaskInput) (*domain.Task, error) {
	task, err := s.saveWithRetry(ctx, taskID, func(task *domain.Task) error {
		if _, err := s.memberProject(ctx, task.ProjectID, actorID); err != nil {
			return err
		}
		if input.Title != nil {
			if strings.TrimSpace(*input.Title) == "" {
				return domain.ErrEmptyTitle
			}
			task.Title = *input.Title
		}
		if input.Description != nil {
			task.Description = *input.Description
		}
		if input.Priority != nil {
			if !input.Priority.IsValid() {
				return fmt.Errorf("%w: %q", domain.ErrInvalidPriority, *input.Priority)
			}
			task.Priority = *input.Priority
		}
		if input.Tags != nil {
			task.Tags = input.Tags
		}
		if input.ClearDue {
			task.DueDate = nil
		} else if input.DueDate != nil {
			task.DueDate = input.DueDate
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordActivity(ctx, task, actorID, domain.ActivityTaskUpdated,
		fmt.Sprintf("updated task %q", task.Title))

	return s.taskRepo.GetByID(ctx, task.ID)
}

// ProcessDueSoon scans for tasks approaching their due date and feeds each
// one to the automation engine as a due date check. Returns the number of
// tasks scanned.
func (s *TaskService) ProcessDueSoon(ctx context.Context) (int, error) {
	tasks, err := s.taskRepo.FindDueWithin(ctx, config.DefaultDueSoonWindow, []string{"Done"})
	if err != nil {
		return 0, fmt.Errorf("find due tasks: %w", err)
	}

	if len(tasks) == 0 {
		slog.Info("no tasks approaching due date")
		return 0, nil
	}

	for _, task := range tasks {
		s.emit(ctx, domain.MutationEvent{
			ProjectID:   task.ProjectID,
			TaskID:      task.ID,
			ActorUserID: "",
			Kind:        domain.EventDueDateCheck,
		})
	}

	slog.Info("due date scan completed", "tasks", len(tasks))
	return len(tasks), nil
}

// saveWithRetry reads the task, applies mutate, and persists it. A write
// conflict re-reads and retries once; a second conflict surfaces to the
// caller as ErrConcurrentModification.
func (s *TaskService) saveWithRetry(ctx context.Context, taskID string, mutate func(*domain.Task) error) (*domain.Task, error) {
	for attempt := 0; ; attempt++ {
		task, err := s.taskRepo.GetByID(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if err := mutate(task); err != nil {
			return nil, err
		}

		err = s.taskRepo.Save(ctx, task)
		if err == nil {
			return task, nil
		}
		if attempt > 0 || !errors.Is(err, domain.ErrConcurrentModification) {
			return nil, err
		}
		slog.Warn("task write conflict, retrying", "task_id", taskID)
	}
}

// memberProject loads the project and verifies the actor belongs to it.
func (s *TaskService) memberProject(ctx context.Context, projectID, actorID string) (*domain.Project, error) {
	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !project.IsMember(actorID) {
		return nil, domain.ErrPermissionDenied
	}
	return project, nil
}

// checkAssignee verifies the assignee exists, is active, and belongs to the
// project.
func (s *TaskService) checkAssignee(ctx context.Context, project *domain.Project, assigneeID string) error {
	assignee, err := s.userRepo.GetByID(ctx, assigneeID)
	if err != nil {
		return err
	}
	if !assignee.IsActive {
		return domain.ErrUserInactive
	}
	if !project.IsMember(assigneeID) {
		return fmt.Errorf("%w: assignee is not a project member", domain.ErrPermissionDenied)
	}
	return nil
}

// recordActivity appends a feed entry. Best effort.
func (s *TaskService) recordActivity(ctx context.Context, task *domain.Task, actorID string, typ domain.ActivityType, description string) {
	taskID := task.ID
	activity := &domain.Activity{
		ProjectID:   task.ProjectID,
		UserID:      &actorID,
		TaskID:      &taskID,
		Type:        typ,
		Description: description,
	}
	if err := s.activityRepo.Record(ctx, activity); err != nil {
		slog.Warn("failed to record activity", "task_id", task.ID, "error", err)
	}
}

// emit runs automation for a committed mutation. Evaluation problems are
// logged; the mutation itself already succeeded.
func (s *TaskService) emit(ctx context.Context, event domain.MutationEvent) {
	outcome, err := s.engine.HandleMutation(ctx, event)
	if err != nil {
		slog.Error("automation evaluation failed",
			"task_id", event.TaskID,
			"event_kind", event.Kind,
			"error", err,
		)
		return
	}
	for _, ruleErr := range outcome.Errors {
		slog.Warn("automation rule error",
			"rule_id", ruleErr.RuleID,
			"kind", ruleErr.Kind,
			"error", ruleErr.Err,
		)
	}
}
