package automation

import (
	"fmt"
	"strings"

	"github.com/taskboard/taskboard/internal/domain"
)

// ValidateRule checks an automation rule definition before it is persisted.
// All failures wrap domain.ErrInvalidRuleDefinition; nothing is partially
// accepted.
func ValidateRule(rule *domain.AutomationRule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule is required", domain.ErrInvalidRuleDefinition)
	}
	if strings.TrimSpace(rule.Name) == "" {
		return fmt.Errorf("%w: name is required", domain.ErrInvalidRuleDefinition)
	}
	if err := ValidateTrigger(rule.Trigger); err != nil {
		return err
	}
	return ValidateActions(rule.Actions)
}

// ValidateTrigger checks the trigger type and its required condition fields.
func ValidateTrigger(trigger domain.Trigger) error {
	if !trigger.Type.IsValid() {
		return fmt.Errorf("%w: invalid trigger type %q", domain.ErrInvalidRuleDefinition, trigger.Type)
	}

	switch trigger.Type {
	case domain.TriggerStatusChange:
		if trigger.StatusChange == nil {
			return fmt.Errorf("%w: status_change trigger requires conditions", domain.ErrInvalidRuleDefinition)
		}
		// from may be null: that is the "created directly into to" sentinel.
		if trigger.StatusChange.To == "" {
			return fmt.Errorf("%w: status_change trigger requires a to condition", domain.ErrInvalidRuleDefinition)
		}
	case domain.TriggerAssignment:
		if trigger.Assignment == nil || trigger.Assignment.Assignee == "" {
			return fmt.Errorf("%w: assignment trigger requires an assignee condition", domain.ErrInvalidRuleDefinition)
		}
	case domain.TriggerDueDate:
		if trigger.DueDate == nil || trigger.DueDate.DaysBefore < 1 {
			return fmt.Errorf("%w: due_date trigger requires daysBefore >= 1", domain.ErrInvalidRuleDefinition)
		}
	case domain.TriggerCommentAdded:
		if trigger.CommentAdded == nil || !hasKeyword(trigger.CommentAdded.Keywords) {
			return fmt.Errorf("%w: comment_added trigger requires at least one keyword", domain.ErrInvalidRuleDefinition)
		}
	}
	return nil
}

// ValidateActions checks that at least one action exists and each carries
// the parameters its type requires.
func ValidateActions(actions []domain.Action) error {
	if len(actions) == 0 {
		return fmt.Errorf("%w: at least one action is required", domain.ErrInvalidRuleDefinition)
	}

	for i, action := range actions {
		if err := validateAction(action); err != nil {
			return fmt.Errorf("action[%d]: %w", i, err)
		}
	}
	return nil
}

func validateAction(action domain.Action) error {
	if !action.Type.IsValid() {
		return fmt.Errorf("%w: invalid action type %q", domain.ErrInvalidRuleDefinition, action.Type)
	}

	switch action.Type {
	case domain.ActionChangeStatus:
		if action.ChangeStatus == nil || action.ChangeStatus.NewStatus == "" {
			return fmt.Errorf("%w: change_status action requires newStatus", domain.ErrInvalidRuleDefinition)
		}
	case domain.ActionAssignUser:
		if action.AssignUser == nil || action.AssignUser.Assignee == "" {
			return fmt.Errorf("%w: assign_user action requires assignee", domain.ErrInvalidRuleDefinition)
		}
	case domain.ActionAddComment:
		if action.AddComment == nil || action.AddComment.Comment == "" {
			return fmt.Errorf("%w: add_comment action requires comment", domain.ErrInvalidRuleDefinition)
		}
	case domain.ActionSendNotification:
		if action.SendNotification == nil || action.SendNotification.Message == "" {
			return fmt.Errorf("%w: send_notification action requires message", domain.ErrInvalidRuleDefinition)
		}
		if len(action.SendNotification.Recipients) == 0 {
			return fmt.Errorf("%w: send_notification action requires recipients", domain.ErrInvalidRuleDefinition)
		}
	}
	return nil
}

func hasKeyword(keywords string) bool {
	for _, k := range strings.Split(keywords, ",") {
		if strings.TrimSpace(k) != "" {
			return true
		}
	}
	return false
}
