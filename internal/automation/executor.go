package automation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/taskboard/taskboard/internal/domain"
)

// Notifier delivers automation notifications to users. Implementations are
// expected to honor context cancellation; the executor bounds each delivery
// with its configured timeout.
type Notifier interface {
	Send(ctx context.Context, message string, recipients []string) error
}

// DefaultNotifyTimeout bounds a single notification delivery.
const DefaultNotifyTimeout = 5 * time.Second

// SideEffect records one applied action. Err is set only for notification
// deliveries that failed; delivery failure never aborts the rule.
type SideEffect struct {
	Action domain.ActionType
	Detail string
	Err    error
}

// Executor applies a rule's ordered action list to a task in memory.
// Persisting the mutated task is the coordinator's job, once per rule.
type Executor struct {
	notifier      Notifier
	notifyTimeout time.Duration
}

// NewExecutor creates an Executor. A zero timeout falls back to
// DefaultNotifyTimeout.
func NewExecutor(notifier Notifier, notifyTimeout time.Duration) *Executor {
	if notifyTimeout <= 0 {
		notifyTimeout = DefaultNotifyTimeout
	}
	return &Executor{
		notifier:      notifier,
		notifyTimeout: notifyTimeout,
	}
}

// Apply executes actions strictly in declaration order against the task.
// Each action's effect is visible to subsequent actions in the same list.
//
// The action list is checked before anything is applied: a malformed or
// unrecognised action rejects the whole rule with no partial mutation.
// After that point only notification delivery can fail, and that failure is
// logged and recorded on the side effect rather than returned.
func (e *Executor) Apply(
	ctx context.Context,
	actions []domain.Action,
	task *domain.Task,
	actingUserID string,
	now time.Time,
) ([]SideEffect, error) {
	for i, action := range actions {
		if err := checkAction(action); err != nil {
			return nil, fmt.Errorf("action[%d]: %w", i, err)
		}
	}

	effects := make([]SideEffect, 0, len(actions))
	for _, action := range actions {
		effects = append(effects, e.applyAction(ctx, action, task, actingUserID, now))
	}
	return effects, nil
}

// checkAction guards against corrupted or legacy rule data reaching the
// apply loop.
func checkAction(action domain.Action) error {
	switch action.Type {
	case domain.ActionChangeStatus:
		if action.ChangeStatus == nil {
			return fmt.Errorf("%w: change_status action missing params", domain.ErrInvalidRuleDefinition)
		}
	case domain.ActionAssignUser:
		if action.AssignUser == nil {
			return fmt.Errorf("%w: assign_user action missing params", domain.ErrInvalidRuleDefinition)
		}
	case domain.ActionAddComment:
		if action.AddComment == nil {
			return fmt.Errorf("%w: add_comment action missing params", domain.ErrInvalidRuleDefinition)
		}
	case domain.ActionSendNotification:
		if action.SendNotification == nil {
			return fmt.Errorf("%w: send_notification action missing params", domain.ErrInvalidRuleDefinition)
		}
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnknownActionType, action.Type)
	}
	return nil
}

func (e *Executor) applyAction(
	ctx context.Context,
	action domain.Action,
	task *domain.Task,
	actingUserID string,
	now time.Time,
) SideEffect {
	effect := SideEffect{Action: action.Type}

	switch action.Type {
	case domain.ActionChangeStatus:
		task.Status = action.ChangeStatus.NewStatus
		effect.Detail = "status set to " + action.ChangeStatus.NewStatus

	case domain.ActionAssignUser:
		assignee := action.AssignUser.Assignee
		task.AssignedTo = &assignee
		effect.Detail = "assigned to " + assignee

	case domain.ActionAddComment:
		task.Comments = append(task.Comments, domain.Comment{
			ID:        uuid.NewString(),
			UserID:    actingUserID,
			Text:      action.AddComment.Comment,
			CreatedAt: now,
		})
		effect.Detail = "comment added"

	case domain.ActionSendNotification:
		effect.Detail = "notification sent"
		if err := e.send(ctx, action.SendNotification); err != nil {
			effect.Detail = "notification delivery failed"
			effect.Err = fmt.Errorf("%w: %v", domain.ErrNotificationDeliveryFailed, err)
			slog.Warn("notification delivery failed",
				"task_id", task.ID,
				"recipients", len(action.SendNotification.Recipients),
				"error", err,
			)
		}
	}

	return effect
}

// send delivers a notification with a bounded timeout. Timeout is treated
// as delivery failure.
func (e *Executor) send(ctx context.Context, p *domain.SendNotificationParams) error {
	if e.notifier == nil {
		return fmt.Errorf("no notifier configured")
	}

	ctx, cancel := context.WithTimeout(ctx, e.notifyTimeout)
	defer cancel()

	return e.notifier.Send(ctx, p.Message, p.Recipients)
}
