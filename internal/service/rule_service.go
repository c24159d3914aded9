package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/taskboard/taskboard/internal/automation"
	"github.com/taskboard/taskboard/internal/domain"
	"github.com/taskboard/taskboard/internal/repository"
)

// RuleService manages automation rule definitions. Creating, updating, and
// deleting rules is restricted to the project owner; members may list them.
type RuleService struct {
	pool         *pgxpool.Pool
	ruleRepo     *repository.RuleRepository
	taskRepo     *repository.TaskRepository
	projectRepo  *repository.ProjectRepository
	activityRepo *repository.ActivityRepository
	executor     *automation.Executor
}

// NewRuleService creates a new RuleService.
func NewRuleService(
	pool *pgxpool.Pool,
	ruleRepo *repository.RuleRepository,
	taskRepo *repository.TaskRepository,
	projectRepo *repository.ProjectRepository,
	activityRepo *repository.ActivityRepository,
	executor *automation.Executor,
) *RuleService {
	return &RuleService{
		pool:         pool,
		ruleRepo:     ruleRepo,
		taskRepo:     taskRepo,
		projectRepo:  projectRepo,
		activityRepo: activityRepo,
		executor:     executor,
	}
}

// CreateRule validates and persists a new rule on the actor's project.
func (s *RuleService) CreateRule(ctx context.Context, rule *domain.AutomationRule, actorID string) (*domain.AutomationRule, error) {
	if err := s.requireOwner(ctx, rule.ProjectID, actorID); err != nil {
		return nil, err
	}
	if err := automation.ValidateRule(rule); err != nil {
		return nil, err
	}

	rule.CreatedBy = actorID

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && err.Error() != "tx is closed" {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	if _, err := s.ruleRepo.Create(ctx, tx, rule); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.recordRuleActivity(ctx, rule, actorID, domain.ActivityRuleCreated,
		fmt.Sprintf("created automation %q", rule.Name))

	slog.Info("automation rule created",
		"rule_id", rule.ID,
		"project_id", rule.ProjectID,
		"trigger", rule.Trigger.Type,
	)

	return rule, nil
}

// GetRule retrieves a rule visible to the actor.
func (s *RuleService) GetRule(ctx context.Context, ruleID, actorID string) (*domain.AutomationRule, error) {
	rule, err := s.ruleRepo.GetByID(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, rule.ProjectID, actorID); err != nil {
		return nil, err
	}
	return rule, nil
}

// ListRules retrieves all rules of a project the actor belongs to.
func (s *RuleService) ListRules(ctx context.Context, projectID, actorID string) ([]*domain.AutomationRule, error) {
	if err := s.requireMember(ctx, projectID, actorID); err != nil {
		return nil, err
	}
	return s.ruleRepo.ListByProject(ctx, projectID)
}

// UpdateRuleInput carries optional rule updates; nil fields are unchanged.
type UpdateRuleInput struct {
	Name        *string
	Description *string
	Trigger     *domain.Trigger
	Actions     []domain.Action
	IsActive    *bool
}

// UpdateRule edits a rule's definition. The merged result is re-validated as
// a whole before anything is written.
func (s *RuleService) UpdateRule(ctx context.Context, ruleID, actorID string, input UpdateRuleInput) (*domain.AutomationRule, error) {
	rule, err := s.ruleRepo.GetByID(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwner(ctx, rule.ProjectID, actorID); err != nil {
		return nil, err
	}

	if input.Name != nil {
		rule.Name = *input.Name
	}
	if input.Description != nil {
		rule.Description = *input.Description
	}
	if input.Trigger != nil {
		rule.Trigger = *input.Trigger
	}
	if input.Actions != nil {
		rule.Actions = input.Actions
	}
	if input.IsActive != nil {
		rule.IsActive = *input.IsActive
	}

	if err := automation.ValidateRule(rule); err != nil {
		return nil, err
	}

	if err := s.ruleRepo.Update(ctx, rule); err != nil {
		return nil, err
	}

	s.recordRuleActivity(ctx, rule, actorID, domain.ActivityRuleUpdated,
		fmt.Sprintf("updated automation %q", rule.Name))

	return rule, nil
}

// DeleteRule removes a rule.
func (s *RuleService) DeleteRule(ctx context.Context, ruleID, actorID string) error {
	rule, err := s.ruleRepo.GetByID(ctx, ruleID)
	if err != nil {
		return err
	}
	if err := s.requireOwner(ctx, rule.ProjectID, actorID); err != nil {
		return err
	}

	if err := s.ruleRepo.Delete(ctx, ruleID); err != nil {
		return err
	}

	s.recordRuleActivity(ctx, rule, actorID, domain.ActivityRuleDeleted,
		fmt.Sprintf("deleted automation %q", rule.Name))

	slog.Info("automation rule deleted", "rule_id", ruleID)
	return nil
}

// TestRule fires a rule against a task without requiring a matching event:
// the actions run, the task is saved, and firing statistics are recorded.
// Used from the rule editor to try a rule out.
func (s *RuleService) TestRule(ctx context.Context, ruleID, taskID, actorID string) (*domain.Task, error) {
	rule, err := s.ruleRepo.GetByID(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwner(ctx, rule.ProjectID, actorID); err != nil {
		return nil, err
	}

	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.ProjectID != rule.ProjectID {
		return nil, domain.ErrTaskNotFound
	}

	now := time.Now().UTC()
	if _, err := s.executor.Apply(ctx, rule.Actions, task, actorID, now); err != nil {
		return nil, err
	}
	if err := s.taskRepo.Save(ctx, task); err != nil {
		return nil, err
	}
	if err := s.ruleRepo.RecordFired(ctx, rule.ID, now); err != nil {
		slog.Error("failed to record rule firing", "rule_id", rule.ID, "error", err)
	}

	slog.Info("automation rule test-fired", "rule_id", ruleID, "task_id", taskID)
	return task, nil
}

func (s *RuleService) requireOwner(ctx context.Context, projectID, actorID string) error {
	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return err
	}
	if !project.IsOwner(actorID) {
		return domain.ErrNotProjectOwner
	}
	return nil
}

func (s *RuleService) requireMember(ctx context.Context, projectID, actorID string) error {
	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return err
	}
	if !project.IsMember(actorID) {
		return domain.ErrPermissionDenied
	}
	return nil
}

// recordRuleActivity appends a feed entry for a rule change. Best effort.
func (s *RuleService) recordRuleActivity(ctx context.Context, rule *domain.AutomationRule, actorID string, typ domain.ActivityType, description string) {
	activity := &domain.Activity{
		ProjectID:   rule.ProjectID,
		UserID:      &actorID,
		Type:        typ,
		Description: description,
	}
	if err := s.activityRepo.Record(ctx, activity); err != nil {
		slog.Warn("failed to record activity", "rule_id", rule.ID, "error", err)
	}
}
