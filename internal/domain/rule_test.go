package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskboard/taskboard/internal/domain"
)

func TestTriggerUnmarshal(t *testing.T) {
	t.Run("status change with null from", func(t *testing.T) {
		var trigger domain.Trigger
		err := json.Unmarshal([]byte(`{"type":"status_change","conditions":{"from":null,"to":"Done"}}`), &trigger)
		require.NoError(t, err)

		assert.Equal(t, domain.TriggerStatusChange, trigger.Type)
		require.NotNil(t, trigger.StatusChange)
		assert.Nil(t, trigger.StatusChange.From)
		assert.Equal(t, "Done", trigger.StatusChange.To)
	})

	t.Run("omitted from decodes to the same sentinel", func(t *testing.T) {
		var trigger domain.Trigger
		err := json.Unmarshal([]byte(`{"type":"status_change","conditions":{"to":"Done"}}`), &trigger)
		require.NoError(t, err)
		require.NotNil(t, trigger.StatusChange)
		assert.Nil(t, trigger.StatusChange.From)
	})

	t.Run("due date", func(t *testing.T) {
		var trigger domain.Trigger
		err := json.Unmarshal([]byte(`{"type":"due_date","conditions":{"daysBefore":3}}`), &trigger)
		require.NoError(t, err)
		require.NotNil(t, trigger.DueDate)
		assert.Equal(t, 3, trigger.DueDate.DaysBefore)
	})

	t.Run("unknown type survives decode", func(t *testing.T) {
		var trigger domain.Trigger
		err := json.Unmarshal([]byte(`{"type":"sla_violation","conditions":{"hours":4}}`), &trigger)
		require.NoError(t, err)

		assert.Equal(t, domain.TriggerType("sla_violation"), trigger.Type)
		assert.False(t, trigger.Type.IsValid())
		assert.Nil(t, trigger.StatusChange)
	})
}

func TestTriggerMarshalRoundTrip(t *testing.T) {
	from := "To Do"
	original := domain.Trigger{
		Type:         domain.TriggerStatusChange,
		StatusChange: &domain.StatusChangeConditions{From: &from, To: "In Progress"},
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"status_change","conditions":{"from":"To Do","to":"In Progress"}}`, string(data))

	var decoded domain.Trigger
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original, decoded)
}

func TestDecodeTrigger(t *testing.T) {
	trigger, err := domain.DecodeTrigger(domain.TriggerCommentAdded, []byte(`{"keywords":"urgent,asap"}`))
	require.NoError(t, err)
	require.NotNil(t, trigger.CommentAdded)
	assert.Equal(t, "urgent,asap", trigger.CommentAdded.Keywords)

	_, err = domain.DecodeTrigger(domain.TriggerDueDate, []byte(`{"daysBefore":"three"}`))
	require.Error(t, err)
}

func TestActionUnmarshal(t *testing.T) {
	t.Run("send notification", func(t *testing.T) {
		var action domain.Action
		err := json.Unmarshal([]byte(`{"type":"send_notification","params":{"message":"heads up","recipients":["u1","u2"]}}`), &action)
		require.NoError(t, err)

		require.NotNil(t, action.SendNotification)
		assert.Equal(t, "heads up", action.SendNotification.Message)
		assert.Equal(t, []string{"u1", "u2"}, action.SendNotification.Recipients)
	})

	t.Run("unknown type survives decode", func(t *testing.T) {
		var action domain.Action
		err := json.Unmarshal([]byte(`{"type":"archive_task","params":{}}`), &action)
		require.NoError(t, err)

		assert.Equal(t, domain.ActionType("archive_task"), action.Type)
		assert.False(t, action.Type.IsValid())
	})
}

func TestActionMarshalRoundTrip(t *testing.T) {
	original := domain.Action{
		Type:         domain.ActionChangeStatus,
		ChangeStatus: &domain.ChangeStatusParams{NewStatus: "Done"},
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"change_status","params":{"newStatus":"Done"}}`, string(data))

	var decoded domain.Action
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original, decoded)
}

func TestRuleActionsListDecode(t *testing.T) {
	raw := `[
		{"type":"change_status","params":{"newStatus":"In Progress"}},
		{"type":"add_comment","params":{"comment":"auto-started"}}
	]`

	var actions []domain.Action
	require.NoError(t, json.Unmarshal([]byte(raw), &actions))
	require.Len(t, actions, 2)
	assert.Equal(t, domain.ActionChangeStatus, actions[0].Type)
	assert.Equal(t, "auto-started", actions[1].AddComment.Comment)
}
