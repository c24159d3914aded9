// Package automation implements the rule engine that reacts to task
// mutations: a trigger/condition matcher, an ordered action executor, and a
// coordinator that evaluates a project's active rules against a single
// mutation event.
package automation

import (
	"fmt"
	"strings"
	"time"

	"github.com/taskboard/taskboard/internal/domain"
)

// Matches reports whether a rule trigger matches a mutation event. It is a
// pure predicate: no side effects, no collaborator calls.
//
// A trigger whose type does not correspond to the event kind never matches;
// the type pairing is checked before any condition is evaluated. The task is
// consulted only by due-date triggers, which compare its due date against
// now.
func Matches(trigger domain.Trigger, event domain.MutationEvent, task *domain.Task, now time.Time) (bool, error) {
	switch trigger.Type {
	case domain.TriggerStatusChange:
		return matchesStatusChange(trigger.StatusChange, event), nil
	case domain.TriggerAssignment:
		return matchesAssignment(trigger.Assignment, event), nil
	case domain.TriggerDueDate:
		return matchesDueDate(trigger.DueDate, event, task, now), nil
	case domain.TriggerCommentAdded:
		return matchesCommentAdded(trigger.CommentAdded, event), nil
	default:
		return false, fmt.Errorf("%w: %q", domain.ErrUnknownTriggerType, trigger.Type)
	}
}

// matchesStatusChange implements the creation sentinel: a nil From matches
// only tasks created directly into the To status, a non-nil From matches
// only status changes from exactly that status.
func matchesStatusChange(c *domain.StatusChangeConditions, event domain.MutationEvent) bool {
	if c == nil {
		return false
	}

	switch event.Kind {
	case domain.EventTaskCreated:
		return c.From == nil && c.To == event.ToStatus
	case domain.EventStatusChanged:
		if c.From == nil || event.FromStatus == nil {
			return false
		}
		return *c.From == *event.FromStatus && c.To == event.ToStatus
	default:
		return false
	}
}

func matchesAssignment(c *domain.AssignmentConditions, event domain.MutationEvent) bool {
	if c == nil || event.Kind != domain.EventAssigned {
		return false
	}
	return c.Assignee == event.AssigneeID
}

// matchesDueDate checks the task's due date against a forward-looking
// window: due in [0, daysBefore] days from now. Overdue tasks do not match;
// a reminder trigger that kept firing after the deadline would be noise.
func matchesDueDate(c *domain.DueDateConditions, event domain.MutationEvent, task *domain.Task, now time.Time) bool {
	if c == nil || event.Kind != domain.EventDueDateCheck {
		return false
	}
	if task == nil || task.DueDate == nil || c.DaysBefore <= 0 {
		return false
	}

	until := task.DueDate.Sub(now)
	return until >= 0 && until <= time.Duration(c.DaysBefore)*24*time.Hour
}

// matchesCommentAdded reports whether at least one configured keyword occurs
// in the comment text. Keywords are comma-separated; comparison is a trimmed,
// case-insensitive substring check.
func matchesCommentAdded(c *domain.CommentAddedConditions, event domain.MutationEvent) bool {
	if c == nil || event.Kind != domain.EventCommentAdded {
		return false
	}

	text := strings.ToLower(event.CommentText)
	for _, keyword := range strings.Split(c.Keywords, ",") {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
