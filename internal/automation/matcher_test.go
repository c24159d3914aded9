package automation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskboard/taskboard/internal/automation"
	"github.com/taskboard/taskboard/internal/domain"
)

func strPtr(s string) *string { return &s }

// triggerOfType builds a trigger with satisfiable conditions for the
// kind-pairing grid.
func triggerOfType(t domain.TriggerType) domain.Trigger {
	switch t {
	case domain.TriggerStatusChange:
		return domain.Trigger{
			Type:         t,
			StatusChange: &domain.StatusChangeConditions{From: strPtr("To Do"), To: "In Progress"},
		}
	case domain.TriggerAssignment:
		return domain.Trigger{Type: t, Assignment: &domain.AssignmentConditions{Assignee: "u1"}}
	case domain.TriggerDueDate:
		return domain.Trigger{Type: t, DueDate: &domain.DueDateConditions{DaysBefore: 3}}
	case domain.TriggerCommentAdded:
		return domain.Trigger{Type: t, CommentAdded: &domain.CommentAddedConditions{Keywords: "urgent"}}
	}
	return domain.Trigger{Type: t}
}

// eventOfKind builds an event whose payload satisfies the matching trigger
// of the corresponding type.
func eventOfKind(k domain.EventKind) domain.MutationEvent {
	event := domain.MutationEvent{ProjectID: "p1", TaskID: "t1", ActorUserID: "actor", Kind: k}
	switch k {
	case domain.EventTaskCreated:
		event.ToStatus = "In Progress"
	case domain.EventStatusChanged:
		event.FromStatus = strPtr("To Do")
		event.ToStatus = "In Progress"
	case domain.EventAssigned:
		event.AssigneeID = "u1"
	case domain.EventCommentAdded:
		event.CommentText = "this is urgent"
	}
	return event
}

// TestMatches_TriggerEventPairing exercises every trigger type against every
// event kind: only the designated pairings may match, regardless of how
// satisfiable the conditions are.
func TestMatches_TriggerEventPairing(t *testing.T) {
	now := time.Now().UTC()
	due := now.Add(24 * time.Hour)
	task := &domain.Task{ID: "t1", ProjectID: "p1", Status: "To Do", DueDate: &due}

	triggers := []domain.TriggerType{
		domain.TriggerStatusChange,
		domain.TriggerAssignment,
		domain.TriggerDueDate,
		domain.TriggerCommentAdded,
	}
	kinds := []domain.EventKind{
		domain.EventTaskCreated,
		domain.EventStatusChanged,
		domain.EventAssigned,
		domain.EventCommentAdded,
		domain.EventDueDateCheck,
	}

	matching := map[domain.TriggerType]map[domain.EventKind]bool{
		domain.TriggerStatusChange: {domain.EventStatusChanged: true},
		domain.TriggerAssignment:   {domain.EventAssigned: true},
		domain.TriggerDueDate:      {domain.EventDueDateCheck: true},
		domain.TriggerCommentAdded: {domain.EventCommentAdded: true},
	}

	for _, tt := range triggers {
		for _, k := range kinds {
			got, err := automation.Matches(triggerOfType(tt), eventOfKind(k), task, now)
			require.NoError(t, err)
			assert.Equal(t, matching[tt][k], got, "trigger %s vs event %s", tt, k)
		}
	}
}

func TestMatches_StatusChange(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name  string
		from  *string
		to    string
		event domain.MutationEvent
		want  bool
	}{
		{
			name:  "exact from and to",
			from:  strPtr("To Do"),
			to:    "In Progress",
			event: domain.MutationEvent{Kind: domain.EventStatusChanged, FromStatus: strPtr("To Do"), ToStatus: "In Progress"},
			want:  true,
		},
		{
			name:  "from mismatch",
			from:  strPtr("Done"),
			to:    "In Progress",
			event: domain.MutationEvent{Kind: domain.EventStatusChanged, FromStatus: strPtr("To Do"), ToStatus: "In Progress"},
			want:  false,
		},
		{
			name:  "to mismatch",
			from:  strPtr("To Do"),
			to:    "Done",
			event: domain.MutationEvent{Kind: domain.EventStatusChanged, FromStatus: strPtr("To Do"), ToStatus: "In Progress"},
			want:  false,
		},
		{
			name:  "nil from matches creation into to",
			from:  nil,
			to:    "In Progress",
			event: domain.MutationEvent{Kind: domain.EventTaskCreated, ToStatus: "In Progress"},
			want:  true,
		},
		{
			name:  "nil from does not match a status change",
			from:  nil,
			to:    "In Progress",
			event: domain.MutationEvent{Kind: domain.EventStatusChanged, FromStatus: strPtr("To Do"), ToStatus: "In Progress"},
			want:  false,
		},
		{
			name:  "explicit from does not match creation",
			from:  strPtr("To Do"),
			to:    "In Progress",
			event: domain.MutationEvent{Kind: domain.EventTaskCreated, ToStatus: "In Progress"},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger := domain.Trigger{
				Type:         domain.TriggerStatusChange,
				StatusChange: &domain.StatusChangeConditions{From: tt.from, To: tt.to},
			}
			got, err := automation.Matches(trigger, tt.event, nil, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatches_Assignment(t *testing.T) {
	now := time.Now().UTC()
	trigger := domain.Trigger{
		Type:       domain.TriggerAssignment,
		Assignment: &domain.AssignmentConditions{Assignee: "u2"},
	}

	got, err := automation.Matches(trigger, domain.MutationEvent{Kind: domain.EventAssigned, AssigneeID: "u2"}, nil, now)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = automation.Matches(trigger, domain.MutationEvent{Kind: domain.EventAssigned, AssigneeID: "u3"}, nil, now)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestMatches_CommentKeywords(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name     string
		keywords string
		text     string
		want     bool
	}{
		{"case-insensitive substring", "urgent,asap", "please handle ASAP", true},
		{"first keyword", "urgent,asap", "this is URGENT stuff", true},
		{"no keyword present", "urgent,asap", "all quiet here", false},
		{"keywords trimmed", " urgent , asap ", "asap please", true},
		{"empty keywords never match", "", "anything", false},
		{"whitespace-only keywords never match", " , ", "anything", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger := domain.Trigger{
				Type:         domain.TriggerCommentAdded,
				CommentAdded: &domain.CommentAddedConditions{Keywords: tt.keywords},
			}
			event := domain.MutationEvent{Kind: domain.EventCommentAdded, CommentText: tt.text}
			got, err := automation.Matches(trigger, event, nil, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatches_DueDateWindow(t *testing.T) {
	now := time.Now().UTC()
	trigger := domain.Trigger{
		Type:    domain.TriggerDueDate,
		DueDate: &domain.DueDateConditions{DaysBefore: 2},
	}
	event := domain.MutationEvent{Kind: domain.EventDueDateCheck, TaskID: "t1"}

	taskDue := func(d time.Duration) *domain.Task {
		due := now.Add(d)
		return &domain.Task{ID: "t1", DueDate: &due}
	}

	tests := []struct {
		name string
		task *domain.Task
		want bool
	}{
		{"due tomorrow", taskDue(24 * time.Hour), true},
		{"due right now", taskDue(0), true},
		{"due at window edge", taskDue(48 * time.Hour), true},
		{"due beyond window", taskDue(72 * time.Hour), false},
		{"already overdue", taskDue(-time.Hour), false},
		{"no due date", &domain.Task{ID: "t1"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := automation.Matches(trigger, event, tt.task, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatches_UnknownTriggerType(t *testing.T) {
	now := time.Now().UTC()
	trigger := domain.Trigger{Type: domain.TriggerType("assign_badge")}

	got, err := automation.Matches(trigger, eventOfKind(domain.EventStatusChanged), nil, now)
	assert.False(t, got)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownTriggerType)
}
