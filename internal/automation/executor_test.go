package automation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskboard/taskboard/internal/automation"
	"github.com/taskboard/taskboard/internal/domain"
)

// recordingNotifier captures deliveries and optionally fails them.
type recordingNotifier struct {
	mu      sync.Mutex
	sent    []sentNotification
	failErr error
	block   bool
}

type sentNotification struct {
	message    string
	recipients []string
}

func (n *recordingNotifier) Send(ctx context.Context, message string, recipients []string) error {
	if n.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if n.failErr != nil {
		return n.failErr
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{message: message, recipients: recipients})
	return nil
}

func changeStatus(status string) domain.Action {
	return domain.Action{Type: domain.ActionChangeStatus, ChangeStatus: &domain.ChangeStatusParams{NewStatus: status}}
}

func assignUser(assignee string) domain.Action {
	return domain.Action{Type: domain.ActionAssignUser, AssignUser: &domain.AssignUserParams{Assignee: assignee}}
}

func addComment(text string) domain.Action {
	return domain.Action{Type: domain.ActionAddComment, AddComment: &domain.AddCommentParams{Comment: text}}
}

func sendNotification(message string, recipients ...string) domain.Action {
	return domain.Action{
		Type:             domain.ActionSendNotification,
		SendNotification: &domain.SendNotificationParams{Message: message, Recipients: recipients},
	}
}

func TestApply_ActionsInDeclarationOrder(t *testing.T) {
	exec := automation.NewExecutor(&recordingNotifier{}, 0)
	task := &domain.Task{ID: "t1", Status: "To Do"}
	now := time.Now().UTC()

	effects, err := exec.Apply(context.Background(),
		[]domain.Action{changeStatus("In Progress"), assignUser("u1"), addComment("picked up")},
		task, "automation", now)
	require.NoError(t, err)

	require.Len(t, effects, 3)
	assert.Equal(t, domain.ActionChangeStatus, effects[0].Action)
	assert.Equal(t, domain.ActionAssignUser, effects[1].Action)
	assert.Equal(t, domain.ActionAddComment, effects[2].Action)

	assert.Equal(t, "In Progress", task.Status)
	require.NotNil(t, task.AssignedTo)
	assert.Equal(t, "u1", *task.AssignedTo)
	require.Len(t, task.Comments, 1)
	assert.Equal(t, "picked up", task.Comments[0].Text)
	assert.Equal(t, "automation", task.Comments[0].UserID)
	assert.NotEmpty(t, task.Comments[0].ID)
}

// TestApply_Idempotence: re-applying the same actions to a task already in
// the post-action state is a no-op on status and assignee, but comments are
// not deduplicated.
func TestApply_Idempotence(t *testing.T) {
	exec := automation.NewExecutor(&recordingNotifier{}, 0)
	task := &domain.Task{ID: "t1", Status: "To Do"}
	actions := []domain.Action{changeStatus("Done"), assignUser("u1"), addComment("done")}
	now := time.Now().UTC()

	_, err := exec.Apply(context.Background(), actions, task, "automation", now)
	require.NoError(t, err)
	_, err = exec.Apply(context.Background(), actions, task, "automation", now)
	require.NoError(t, err)

	assert.Equal(t, "Done", task.Status)
	assert.Equal(t, "u1", *task.AssignedTo)
	assert.Len(t, task.Comments, 2)
}

func TestApply_NotificationDelivered(t *testing.T) {
	notifier := &recordingNotifier{}
	exec := automation.NewExecutor(notifier, 0)
	task := &domain.Task{ID: "t1", Status: "To Do"}

	effects, err := exec.Apply(context.Background(),
		[]domain.Action{sendNotification("Check this", "u1", "u2")},
		task, "automation", time.Now().UTC())
	require.NoError(t, err)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "Check this", notifier.sent[0].message)
	assert.Equal(t, []string{"u1", "u2"}, notifier.sent[0].recipients)
	assert.NoError(t, effects[0].Err)

	// A notification-only rule leaves the task untouched.
	assert.Equal(t, "To Do", task.Status)
	assert.Nil(t, task.AssignedTo)
	assert.Empty(t, task.Comments)
}

func TestApply_NotificationFailureDoesNotAbort(t *testing.T) {
	notifier := &recordingNotifier{failErr: errors.New("gateway down")}
	exec := automation.NewExecutor(notifier, 0)
	task := &domain.Task{ID: "t1", Status: "To Do"}

	effects, err := exec.Apply(context.Background(),
		[]domain.Action{sendNotification("ping", "u1"), changeStatus("In Progress")},
		task, "automation", time.Now().UTC())
	require.NoError(t, err)

	require.Len(t, effects, 2)
	assert.ErrorIs(t, effects[0].Err, domain.ErrNotificationDeliveryFailed)
	// The following action still ran.
	assert.Equal(t, "In Progress", task.Status)
}

func TestApply_NotificationTimeoutIsDeliveryFailure(t *testing.T) {
	notifier := &recordingNotifier{block: true}
	exec := automation.NewExecutor(notifier, 20*time.Millisecond)
	task := &domain.Task{ID: "t1", Status: "To Do"}

	effects, err := exec.Apply(context.Background(),
		[]domain.Action{sendNotification("slow", "u1")},
		task, "automation", time.Now().UTC())
	require.NoError(t, err)
	assert.ErrorIs(t, effects[0].Err, domain.ErrNotificationDeliveryFailed)
}

func TestApply_UnknownActionTypeLeavesTaskUntouched(t *testing.T) {
	exec := automation.NewExecutor(&recordingNotifier{}, 0)
	task := &domain.Task{ID: "t1", Status: "To Do"}

	// The unknown action sits last, but the whole list is rejected before
	// any action runs.
	_, err := exec.Apply(context.Background(),
		[]domain.Action{changeStatus("In Progress"), {Type: domain.ActionType("bogus_action")}},
		task, "automation", time.Now().UTC())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownActionType)

	assert.Equal(t, "To Do", task.Status)
	assert.Empty(t, task.Comments)
}

func TestApply_MissingParamsRejected(t *testing.T) {
	exec := automation.NewExecutor(&recordingNotifier{}, 0)
	task := &domain.Task{ID: "t1", Status: "To Do"}

	_, err := exec.Apply(context.Background(),
		[]domain.Action{{Type: domain.ActionChangeStatus}},
		task, "automation", time.Now().UTC())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidRuleDefinition)
	assert.Equal(t, "To Do", task.Status)
}
