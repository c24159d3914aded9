package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taskboard/taskboard/internal/domain"
)

// TaskStore is the interface the engine needs from the task repository.
// Save must fail with domain.ErrConcurrentModification when the task was
// modified since it was read.
type TaskStore interface {
	GetByID(ctx context.Context, taskID string) (*domain.Task, error)
	Save(ctx context.Context, task *domain.Task) error
}

// RuleStore is the interface the engine needs from rule persistence.
// RecordFired must be an atomic increment: concurrent fires on the same rule
// from different mutations must not lose counts. The engine treats the rules
// ListActive returns as read-only; firing statistics move only through
// RecordFired, so stores may hand out shared instances.
type RuleStore interface {
	ListActive(ctx context.Context, projectID string) ([]*domain.AutomationRule, error)
	RecordFired(ctx context.Context, ruleID string, firedAt time.Time) error
}

// ActivitySink receives fire-and-forget feed entries. Failures are logged
// and never affect evaluation.
type ActivitySink interface {
	Record(ctx context.Context, activity *domain.Activity) error
}

// Error kinds recorded in Outcome.Errors.
const (
	ErrorKindUnknownTrigger = "unknown_trigger_type"
	ErrorKindUnknownAction  = "unknown_action_type"
	ErrorKindInvalidRule    = "invalid_rule_definition"
	ErrorKindConflict       = "concurrent_modification"
	ErrorKindExecution      = "execution_failed"
)

// RuleError describes a failure local to one rule during evaluation.
type RuleError struct {
	RuleID string
	Kind   string
	Err    error
}

// Outcome reports the result of evaluating one mutation event.
type Outcome struct {
	FiredRuleIDs []string
	Errors       []RuleError
}

// Engine coordinates rule evaluation for task mutation events.
//
// For a single event it loads the project's active rules, matches each
// against the event, applies matching rules' actions to the task, persists
// the task once per fired rule, and records firing statistics. Failures
// local to one rule are isolated; only rule store or task repository
// unavailability is returned to the caller.
//
// The engine holds no per-event state and is safe for concurrent use.
type Engine struct {
	tasks    TaskStore
	rules    RuleStore
	activity ActivitySink
	executor *Executor
}

// NewEngine creates an Engine. The activity sink may be nil.
func NewEngine(tasks TaskStore, rules RuleStore, activity ActivitySink, executor *Executor) *Engine {
	return &Engine{
		tasks:    tasks,
		rules:    rules,
		activity: activity,
		executor: executor,
	}
}

// HandleMutation evaluates all active rules of the event's project against
// the event. Rules are evaluated in the order the rule store returns them;
// each fired rule's task mutations are persisted before the next rule is
// evaluated, so later rules see earlier rules' effects.
//
// The returned error is non-nil only when the rule store or task repository
// is unreachable. Everything else is reported through the Outcome.
func (e *Engine) HandleMutation(ctx context.Context, event domain.MutationEvent) (*Outcome, error) {
	rules, err := e.rules.ListActive(ctx, event.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}

	outcome := &Outcome{}
	if len(rules) == 0 {
		return outcome, nil
	}

	task, err := e.tasks.GetByID(ctx, event.TaskID)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", event.TaskID, err)
	}

	now := time.Now().UTC()

	for _, rule := range rules {
		matched, err := Matches(rule.Trigger, event, task, now)
		if err != nil {
			outcome.Errors = append(outcome.Errors, ruleError(rule.ID, err))
			slog.Warn("skipping rule with unrecognised trigger",
				"rule_id", rule.ID,
				"project_id", rule.ProjectID,
				"error", err,
			)
			continue
		}
		if !matched {
			continue
		}

		task, err = e.fireRule(ctx, rule, task, event, now)
		if err != nil {
			var fatal *storeError
			if errors.As(err, &fatal) {
				return outcome, fatal.err
			}
			outcome.Errors = append(outcome.Errors, ruleError(rule.ID, err))
			slog.Error("rule execution failed",
				"rule_id", rule.ID,
				"task_id", event.TaskID,
				"error", err,
			)
			continue
		}

		outcome.FiredRuleIDs = append(outcome.FiredRuleIDs, rule.ID)

		if err := e.rules.RecordFired(ctx, rule.ID, now); err != nil {
			// The rule's effects are already durable; losing one stats
			// update is preferable to failing the evaluation.
			slog.Error("failed to record rule firing", "rule_id", rule.ID, "error", err)
		}

		slog.Info("automation rule fired",
			"rule_id", rule.ID,
			"rule_name", rule.Name,
			"task_id", event.TaskID,
			"event_kind", event.Kind,
		)
	}

	if len(outcome.FiredRuleIDs) > 0 {
		e.recordActivity(ctx, event, len(outcome.FiredRuleIDs))
	}

	return outcome, nil
}

// fireRule applies one rule's actions to the task and persists the result.
// On a write conflict the task is re-read and the rule retried once; a
// second conflict is reported as the rule's error. The returned task is the
// instance subsequent rules must evaluate against.
func (e *Engine) fireRule(
	ctx context.Context,
	rule *domain.AutomationRule,
	task *domain.Task,
	event domain.MutationEvent,
	now time.Time,
) (*domain.Task, error) {
	// Apply checks the whole action list before mutating, so an error here
	// leaves the task untouched.
	if _, err := e.executor.Apply(ctx, rule.Actions, task, event.ActorUserID, now); err != nil {
		return task, err
	}

	err := e.tasks.Save(ctx, task)
	if err == nil {
		return task, nil
	}
	if !errors.Is(err, domain.ErrConcurrentModification) {
		return task, &storeError{err: fmt.Errorf("save task %s: %w", task.ID, err)}
	}

	// Stale read: re-fetch and retry the rule once against current state.
	slog.Warn("task write conflict, retrying rule", "rule_id", rule.ID, "task_id", task.ID)

	fresh, ferr := e.tasks.GetByID(ctx, event.TaskID)
	if ferr != nil {
		return task, &storeError{err: fmt.Errorf("reload task %s: %w", event.TaskID, ferr)}
	}

	if _, aerr := e.executor.Apply(ctx, rule.Actions, fresh, event.ActorUserID, now); aerr != nil {
		return fresh, aerr
	}

	serr := e.tasks.Save(ctx, fresh)
	if serr == nil {
		return fresh, nil
	}
	if !errors.Is(serr, domain.ErrConcurrentModification) {
		return fresh, &storeError{err: fmt.Errorf("save task %s: %w", fresh.ID, serr)}
	}

	// Second conflict: give up on this rule. Discard the unsaved mutations
	// so the next rule evaluates against persisted state.
	reloaded, rerr := e.tasks.GetByID(ctx, event.TaskID)
	if rerr != nil {
		return fresh, &storeError{err: fmt.Errorf("reload task %s: %w", event.TaskID, rerr)}
	}
	return reloaded, serr
}

// recordActivity appends a feed entry for the firing. Best effort.
func (e *Engine) recordActivity(ctx context.Context, event domain.MutationEvent, fired int) {
	if e.activity == nil {
		return
	}

	taskID := event.TaskID
	activity := &domain.Activity{
		ProjectID:   event.ProjectID,
		TaskID:      &taskID,
		Type:        domain.ActivityAutomationFired,
		Description: fmt.Sprintf("%d automation rule(s) fired on %s", fired, event.Kind),
	}
	if err := e.activity.Record(ctx, activity); err != nil {
		slog.Warn("failed to record automation activity", "task_id", event.TaskID, "error", err)
	}
}

// ruleError classifies a per-rule failure for the outcome.
func ruleError(ruleID string, err error) RuleError {
	kind := ErrorKindExecution
	switch {
	case errors.Is(err, domain.ErrUnknownTriggerType):
		kind = ErrorKindUnknownTrigger
	case errors.Is(err, domain.ErrUnknownActionType):
		kind = ErrorKindUnknownAction
	case errors.Is(err, domain.ErrInvalidRuleDefinition):
		kind = ErrorKindInvalidRule
	case errors.Is(err, domain.ErrConcurrentModification):
		kind = ErrorKindConflict
	}
	return RuleError{RuleID: ruleID, Kind: kind, Err: err}
}

// storeError marks a collaborator failure that must abort evaluation.
type storeError struct {
	err error
}

func (s *storeError) Error() string { return s.err.Error() }
func (s *storeError) Unwrap() error { return s.err }
