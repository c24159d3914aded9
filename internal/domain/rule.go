package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// TriggerType represents the kind of task mutation a rule reacts to.
type TriggerType string

const (
	TriggerStatusChange TriggerType = "status_change"
	TriggerAssignment   TriggerType = "assignment"
	TriggerDueDate      TriggerType = "due_date"
	TriggerCommentAdded TriggerType = "comment_added"
)

// IsValid checks if the trigger type is one of the allowed values.
func (t TriggerType) IsValid() bool {
	switch t {
	case TriggerStatusChange, TriggerAssignment, TriggerDueDate, TriggerCommentAdded:
		return true
	default:
		return false
	}
}

// ActionType represents the kind of side effect a rule applies.
type ActionType string

const (
	ActionChangeStatus     ActionType = "change_status"
	ActionAssignUser       ActionType = "assign_user"
	ActionAddComment       ActionType = "add_comment"
	ActionSendNotification ActionType = "send_notification"
)

// IsValid checks if the action type is one of the allowed values.
func (t ActionType) IsValid() bool {
	switch t {
	case ActionChangeStatus, ActionAssignUser, ActionAddComment, ActionSendNotification:
		return true
	default:
		return false
	}
}

// StatusChangeConditions matches a task moving between board statuses.
//
// A nil From is the creation sentinel: the rule matches only tasks created
// directly into the To status. JSON null and an omitted "from" key both
// decode to the sentinel; a non-nil From matches only status changes whose
// prior status equals it exactly.
type StatusChangeConditions struct {
	From *string `json:"from"`
	To   string  `json:"to"`
}

// AssignmentConditions matches a task being assigned to a specific user.
type AssignmentConditions struct {
	Assignee string `json:"assignee"`
}

// DueDateConditions matches a task whose due date falls within the window.
type DueDateConditions struct {
	DaysBefore int `json:"daysBefore"`
}

// CommentAddedConditions matches a comment containing at least one keyword.
// Keywords is a comma-separated list; matching is a trimmed, case-insensitive
// substring check.
type CommentAddedConditions struct {
	Keywords string `json:"keywords"`
}

// Trigger is a closed union of trigger kinds. Exactly one conditions field
// corresponding to Type is set on a valid trigger; rules loaded from storage
// with an unrecognised type carry only the Type and are skipped at
// evaluation time.
type Trigger struct {
	Type         TriggerType
	StatusChange *StatusChangeConditions
	Assignment   *AssignmentConditions
	DueDate      *DueDateConditions
	CommentAdded *CommentAddedConditions
}

// triggerEnvelope is the wire format: {"type": ..., "conditions": {...}}.
type triggerEnvelope struct {
	Type       TriggerType     `json:"type"`
	Conditions json.RawMessage `json:"conditions"`
}

// UnmarshalJSON decodes the {type, conditions} envelope into the typed union.
// Unknown trigger types are preserved rather than rejected so that a single
// corrupted rule cannot break loading a project's rule list.
func (t *Trigger) UnmarshalJSON(data []byte) error {
	var env triggerEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	*t = Trigger{Type: env.Type}
	if len(env.Conditions) == 0 {
		return nil
	}

	return t.decodeConditions(env.Conditions)
}

// DecodeTrigger builds a Trigger from a stored type and conditions document.
func DecodeTrigger(typ TriggerType, conditions []byte) (Trigger, error) {
	t := Trigger{Type: typ}
	if len(conditions) == 0 {
		return t, nil
	}
	if err := t.decodeConditions(conditions); err != nil {
		return Trigger{}, err
	}
	return t, nil
}

func (t *Trigger) decodeConditions(data []byte) error {
	switch t.Type {
	case TriggerStatusChange:
		var c StatusChangeConditions
		if err := json.Unmarshal(data, &c); err != nil {
			return fmt.Errorf("decode status_change conditions: %w", err)
		}
		t.StatusChange = &c
	case TriggerAssignment:
		var c AssignmentConditions
		if err := json.Unmarshal(data, &c); err != nil {
			return fmt.Errorf("decode assignment conditions: %w", err)
		}
		t.Assignment = &c
	case TriggerDueDate:
		var c DueDateConditions
		if err := json.Unmarshal(data, &c); err != nil {
			return fmt.Errorf("decode due_date conditions: %w", err)
		}
		t.DueDate = &c
	case TriggerCommentAdded:
		var c CommentAddedConditions
		if err := json.Unmarshal(data, &c); err != nil {
			return fmt.Errorf("decode comment_added conditions: %w", err)
		}
		t.CommentAdded = &c
	default:
		// Unknown type: conditions are dropped, Type alone survives.
	}
	return nil
}

// MarshalJSON encodes the typed union back into the {type, conditions} envelope.
func (t Trigger) MarshalJSON() ([]byte, error) {
	conditions, err := t.ConditionsJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal(triggerEnvelope{Type: t.Type, Conditions: conditions})
}

// ConditionsJSON returns the conditions document for the trigger's type.
func (t Trigger) ConditionsJSON() (json.RawMessage, error) {
	var v any
	switch t.Type {
	case TriggerStatusChange:
		v = t.StatusChange
	case TriggerAssignment:
		v = t.Assignment
	case TriggerDueDate:
		v = t.DueDate
	case TriggerCommentAdded:
		v = t.CommentAdded
	default:
		v = nil
	}
	if v == nil {
		return json.RawMessage("{}"), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode trigger conditions: %w", err)
	}
	return data, nil
}

// ChangeStatusParams moves the task to a new board status.
type ChangeStatusParams struct {
	NewStatus string `json:"newStatus"`
}

// AssignUserParams reassigns the task.
type AssignUserParams struct {
	Assignee string `json:"assignee"`
}

// AddCommentParams appends an automation-attributed comment.
type AddCommentParams struct {
	Comment string `json:"comment"`
}

// SendNotificationParams delivers a message through the notification sender.
type SendNotificationParams struct {
	Message    string   `json:"message"`
	Recipients []string `json:"recipients"`
}

// Action is a closed union of action kinds, mirroring Trigger. Exactly one
// params field corresponding to Type is set on a valid action.
type Action struct {
	Type             ActionType
	ChangeStatus     *ChangeStatusParams
	AssignUser       *AssignUserParams
	AddComment       *AddCommentParams
	SendNotification *SendNotificationParams
}

// actionEnvelope is the wire format: {"type": ..., "params": {...}}.
type actionEnvelope struct {
	Type   ActionType      `json:"type"`
	Params json.RawMessage `json:"params"`
}

// UnmarshalJSON decodes the {type, params} envelope into the typed union.
// Unknown action types are preserved so the executor can report them as
// UnknownActionType instead of failing the whole rule list load.
func (a *Action) UnmarshalJSON(data []byte) error {
	var env actionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	*a = Action{Type: env.Type}
	if len(env.Params) == 0 {
		return nil
	}

	switch env.Type {
	case ActionChangeStatus:
		var p ChangeStatusParams
		if err := json.Unmarshal(env.Params, &p); err != nil {
			return fmt.Errorf("decode change_status params: %w", err)
		}
		a.ChangeStatus = &p
	case ActionAssignUser:
		var p AssignUserParams
		if err := json.Unmarshal(env.Params, &p); err != nil {
			return fmt.Errorf("decode assign_user params: %w", err)
		}
		a.AssignUser = &p
	case ActionAddComment:
		var p AddCommentParams
		if err := json.Unmarshal(env.Params, &p); err != nil {
			return fmt.Errorf("decode add_comment params: %w", err)
		}
		a.AddComment = &p
	case ActionSendNotification:
		var p SendNotificationParams
		if err := json.Unmarshal(env.Params, &p); err != nil {
			return fmt.Errorf("decode send_notification params: %w", err)
		}
		a.SendNotification = &p
	}
	return nil
}

// MarshalJSON encodes the typed union back into the {type, params} envelope.
func (a Action) MarshalJSON() ([]byte, error) {
	var v any
	switch a.Type {
	case ActionChangeStatus:
		v = a.ChangeStatus
	case ActionAssignUser:
		v = a.AssignUser
	case ActionAddComment:
		v = a.AddComment
	case ActionSendNotification:
		v = a.SendNotification
	}

	params := json.RawMessage("{}")
	if v != nil {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode action params: %w", err)
		}
		params = data
	}
	return json.Marshal(actionEnvelope{Type: a.Type, Params: params})
}

// AutomationRule is a trigger/condition/action rule scoped to a project.
//
// TriggerCount and LastTriggeredAt are the only fields the engine mutates,
// and only through the rule store's atomic RecordFired.
type AutomationRule struct {
	ID              string
	ProjectID       string
	Name            string
	Description     string
	Trigger         Trigger
	Actions         []Action
	IsActive        bool
	CreatedBy       string
	LastTriggeredAt *time.Time
	TriggerCount    int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
