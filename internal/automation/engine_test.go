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

// fakeTaskStore is an in-memory TaskStore. Saves can be made to fail with
// write conflicts to exercise the engine's retry path.
type fakeTaskStore struct {
	mu        sync.Mutex
	tasks     map[string]*domain.Task
	conflicts int // upcoming saves to reject with ErrConcurrentModification
	getErr    error
	saves     int
}

func newFakeTaskStore(tasks ...*domain.Task) *fakeTaskStore {
	s := &fakeTaskStore{tasks: make(map[string]*domain.Task)}
	for _, t := range tasks {
		s.tasks[t.ID] = cloneTask(t)
	}
	return s
}

func cloneTask(t *domain.Task) *domain.Task {
	cp := *t
	if t.AssignedTo != nil {
		v := *t.AssignedTo
		cp.AssignedTo = &v
	}
	if t.DueDate != nil {
		v := *t.DueDate
		cp.DueDate = &v
	}
	cp.Comments = append([]domain.Comment(nil), t.Comments...)
	cp.Tags = append([]string(nil), t.Tags...)
	return &cp
}

func (s *fakeTaskStore) GetByID(_ context.Context, taskID string) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	t, ok := s.tasks[taskID]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return cloneTask(t), nil
}

func (s *fakeTaskStore) Save(_ context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.conflicts > 0 {
		s.conflicts--
		return domain.ErrConcurrentModification
	}
	task.Version++
	s.tasks[task.ID] = cloneTask(task)
	return nil
}

func (s *fakeTaskStore) stored(taskID string) *domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTask(s.tasks[taskID])
}

// fakeRuleStore is an in-memory RuleStore with a thread-safe fired counter.
type fakeRuleStore struct {
	mu      sync.Mutex
	rules   []*domain.AutomationRule
	fired   map[string]int
	listErr error
}

func newFakeRuleStore(rules ...*domain.AutomationRule) *fakeRuleStore {
	return &fakeRuleStore{rules: rules, fired: make(map[string]int)}
}

func (s *fakeRuleStore) ListActive(_ context.Context, projectID string) ([]*domain.AutomationRule, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var active []*domain.AutomationRule
	for _, r := range s.rules {
		if r.ProjectID == projectID && r.IsActive {
			active = append(active, r)
		}
	}
	return active, nil
}

func (s *fakeRuleStore) RecordFired(_ context.Context, ruleID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fired[ruleID]++
	return nil
}

func (s *fakeRuleStore) firedCount(ruleID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fired[ruleID]
}

// fakeActivitySink records feed entries.
type fakeActivitySink struct {
	mu      sync.Mutex
	entries []*domain.Activity
}

func (s *fakeActivitySink) Record(_ context.Context, activity *domain.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, activity)
	return nil
}

func newEngine(tasks *fakeTaskStore, rules *fakeRuleStore, sink *fakeActivitySink, notifier automation.Notifier) *automation.Engine {
	if notifier == nil {
		notifier = &recordingNotifier{}
	}
	// A nil *fakeActivitySink must become a nil interface value, not a
	// typed nil the engine's sink guard cannot detect.
	var activity automation.ActivitySink
	if sink != nil {
		activity = sink
	}
	return automation.NewEngine(tasks, rules, activity, automation.NewExecutor(notifier, 0))
}

func statusChangeRule(id, from, to string, actions ...domain.Action) *domain.AutomationRule {
	return &domain.AutomationRule{
		ID:        id,
		ProjectID: "p1",
		Name:      "rule " + id,
		IsActive:  true,
		Trigger: domain.Trigger{
			Type:         domain.TriggerStatusChange,
			StatusChange: &domain.StatusChangeConditions{From: strPtr(from), To: to},
		},
		Actions: actions,
	}
}

func statusChangedEvent(taskID, from, to string) domain.MutationEvent {
	return domain.MutationEvent{
		ProjectID:   "p1",
		TaskID:      taskID,
		ActorUserID: "actor",
		Kind:        domain.EventStatusChanged,
		FromStatus:  strPtr(from),
		ToStatus:    to,
	}
}

// Scenario A: status-change rule assigns a user and increments its counter.
func TestHandleMutation_StatusChangeAssignsUser(t *testing.T) {
	rule := statusChangeRule("r1", "To Do", "In Progress", assignUser("u1"))
	tasks := newFakeTaskStore(&domain.Task{ID: "t1", ProjectID: "p1", Status: "In Progress", Version: 1})
	rules := newFakeRuleStore(rule)
	sink := &fakeActivitySink{}
	engine := newEngine(tasks, rules, sink, nil)

	outcome, err := engine.HandleMutation(context.Background(), statusChangedEvent("t1", "To Do", "In Progress"))
	require.NoError(t, err)

	assert.Equal(t, []string{"r1"}, outcome.FiredRuleIDs)
	assert.Empty(t, outcome.Errors)
	assert.Equal(t, 1, rules.firedCount("r1"))

	stored := tasks.stored("t1")
	require.NotNil(t, stored.AssignedTo)
	assert.Equal(t, "u1", *stored.AssignedTo)
	require.Len(t, sink.entries, 1)
	assert.Equal(t, domain.ActivityAutomationFired, sink.entries[0].Type)
}

// Scenario B: assignment rule moves the task to In Progress.
func TestHandleMutation_AssignmentChangesStatus(t *testing.T) {
	rule := &domain.AutomationRule{
		ID:        "r1",
		ProjectID: "p1",
		Name:      "start on assign",
		IsActive:  true,
		Trigger: domain.Trigger{
			Type:       domain.TriggerAssignment,
			Assignment: &domain.AssignmentConditions{Assignee: "u2"},
		},
		Actions: []domain.Action{changeStatus("In Progress")},
	}
	tasks := newFakeTaskStore(&domain.Task{ID: "t1", ProjectID: "p1", Status: "To Do", Version: 1})
	rules := newFakeRuleStore(rule)
	engine := newEngine(tasks, rules, nil, nil)

	event := domain.MutationEvent{
		ProjectID:   "p1",
		TaskID:      "t1",
		ActorUserID: "actor",
		Kind:        domain.EventAssigned,
		AssigneeID:  "u2",
	}
	outcome, err := engine.HandleMutation(context.Background(), event)
	require.NoError(t, err)

	assert.Equal(t, []string{"r1"}, outcome.FiredRuleIDs)
	assert.Equal(t, "In Progress", tasks.stored("t1").Status)
}

// Scenario C: keyword comment rule sends a notification without touching
// the task.
func TestHandleMutation_CommentKeywordNotifies(t *testing.T) {
	rule := &domain.AutomationRule{
		ID:        "r1",
		ProjectID: "p1",
		Name:      "urgent alert",
		IsActive:  true,
		Trigger: domain.Trigger{
			Type:         domain.TriggerCommentAdded,
			CommentAdded: &domain.CommentAddedConditions{Keywords: "urgent,asap"},
		},
		Actions: []domain.Action{sendNotification("Check this", "u1")},
	}
	tasks := newFakeTaskStore(&domain.Task{ID: "t1", ProjectID: "p1", Status: "To Do", Version: 1})
	rules := newFakeRuleStore(rule)
	notifier := &recordingNotifier{}
	engine := newEngine(tasks, rules, nil, notifier)

	event := domain.MutationEvent{
		ProjectID:   "p1",
		TaskID:      "t1",
		ActorUserID: "actor",
		Kind:        domain.EventCommentAdded,
		CommentText: "please handle ASAP",
	}
	outcome, err := engine.HandleMutation(context.Background(), event)
	require.NoError(t, err)

	assert.Equal(t, []string{"r1"}, outcome.FiredRuleIDs)
	assert.Equal(t, 1, rules.firedCount("r1"))
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "Check this", notifier.sent[0].message)
	assert.Equal(t, []string{"u1"}, notifier.sent[0].recipients)

	stored := tasks.stored("t1")
	assert.Equal(t, "To Do", stored.Status)
	assert.Nil(t, stored.AssignedTo)
	assert.Empty(t, stored.Comments)
}

// Scenario D: two matching rules fire in store order; the second sees the
// first's mutations, and both counters increment independently.
func TestHandleMutation_TwoRulesFireInOrder(t *testing.T) {
	first := statusChangeRule("r1", "To Do", "In Progress", assignUser("u1"))
	second := statusChangeRule("r2", "To Do", "In Progress", addComment("work started"))
	tasks := newFakeTaskStore(&domain.Task{ID: "t1", ProjectID: "p1", Status: "In Progress", Version: 1})
	rules := newFakeRuleStore(first, second)
	engine := newEngine(tasks, rules, nil, nil)

	outcome, err := engine.HandleMutation(context.Background(), statusChangedEvent("t1", "To Do", "In Progress"))
	require.NoError(t, err)

	assert.Equal(t, []string{"r1", "r2"}, outcome.FiredRuleIDs)
	assert.Equal(t, 1, rules.firedCount("r1"))
	assert.Equal(t, 1, rules.firedCount("r2"))

	// One persist per rule; the second save carried the first rule's
	// assignment forward.
	assert.Equal(t, 2, tasks.saves)
	stored := tasks.stored("t1")
	require.NotNil(t, stored.AssignedTo)
	assert.Equal(t, "u1", *stored.AssignedTo)
	require.Len(t, stored.Comments, 1)
	assert.Equal(t, "work started", stored.Comments[0].Text)
}

// Scenario E: a rule with a corrupted action type is reported and skipped;
// other rules still fire and HandleMutation does not fail.
func TestHandleMutation_CorruptedActionIsIsolated(t *testing.T) {
	broken := statusChangeRule("r1", "To Do", "In Progress", domain.Action{Type: domain.ActionType("bogus_action")})
	healthy := statusChangeRule("r2", "To Do", "In Progress", assignUser("u1"))
	tasks := newFakeTaskStore(&domain.Task{ID: "t1", ProjectID: "p1", Status: "In Progress", Version: 1})
	rules := newFakeRuleStore(broken, healthy)
	engine := newEngine(tasks, rules, nil, nil)

	outcome, err := engine.HandleMutation(context.Background(), statusChangedEvent("t1", "To Do", "In Progress"))
	require.NoError(t, err)

	assert.Equal(t, []string{"r2"}, outcome.FiredRuleIDs)
	require.Len(t, outcome.Errors, 1)
	assert.Equal(t, "r1", outcome.Errors[0].RuleID)
	assert.Equal(t, automation.ErrorKindUnknownAction, outcome.Errors[0].Kind)
	assert.Equal(t, 0, rules.firedCount("r1"))
	assert.Equal(t, 1, rules.firedCount("r2"))
}

func TestHandleMutation_UnknownTriggerIsIsolated(t *testing.T) {
	broken := &domain.AutomationRule{
		ID:        "r1",
		ProjectID: "p1",
		IsActive:  true,
		Trigger:   domain.Trigger{Type: domain.TriggerType("sla_violation")},
		Actions:   []domain.Action{assignUser("u1")},
	}
	healthy := statusChangeRule("r2", "To Do", "In Progress", assignUser("u2"))
	tasks := newFakeTaskStore(&domain.Task{ID: "t1", ProjectID: "p1", Status: "In Progress", Version: 1})
	rules := newFakeRuleStore(broken, healthy)
	engine := newEngine(tasks, rules, nil, nil)

	outcome, err := engine.HandleMutation(context.Background(), statusChangedEvent("t1", "To Do", "In Progress"))
	require.NoError(t, err)

	assert.Equal(t, []string{"r2"}, outcome.FiredRuleIDs)
	require.Len(t, outcome.Errors, 1)
	assert.Equal(t, automation.ErrorKindUnknownTrigger, outcome.Errors[0].Kind)
}

func TestHandleMutation_InactiveRulesNeverFire(t *testing.T) {
	inactive := statusChangeRule("r1", "To Do", "In Progress", assignUser("u1"))
	inactive.IsActive = false
	tasks := newFakeTaskStore(&domain.Task{ID: "t1", ProjectID: "p1", Status: "In Progress", Version: 1})
	rules := newFakeRuleStore(inactive)
	engine := newEngine(tasks, rules, nil, nil)

	outcome, err := engine.HandleMutation(context.Background(), statusChangedEvent("t1", "To Do", "In Progress"))
	require.NoError(t, err)

	assert.Empty(t, outcome.FiredRuleIDs)
	assert.Equal(t, 0, rules.firedCount("r1"))
	assert.Nil(t, tasks.stored("t1").AssignedTo)
}

func TestHandleMutation_ConflictRetriesOnce(t *testing.T) {
	rule := statusChangeRule("r1", "To Do", "In Progress", assignUser("u1"))
	tasks := newFakeTaskStore(&domain.Task{ID: "t1", ProjectID: "p1", Status: "In Progress", Version: 1})
	tasks.conflicts = 1
	rules := newFakeRuleStore(rule)
	engine := newEngine(tasks, rules, nil, nil)

	outcome, err := engine.HandleMutation(context.Background(), statusChangedEvent("t1", "To Do", "In Progress"))
	require.NoError(t, err)

	assert.Equal(t, []string{"r1"}, outcome.FiredRuleIDs)
	assert.Empty(t, outcome.Errors)
	assert.Equal(t, 2, tasks.saves)
	assert.Equal(t, "u1", *tasks.stored("t1").AssignedTo)
}

func TestHandleMutation_SecondConflictReported(t *testing.T) {
	conflicted := statusChangeRule("r1", "To Do", "In Progress", assignUser("u1"))
	healthy := statusChangeRule("r2", "To Do", "In Progress", addComment("noted"))
	tasks := newFakeTaskStore(&domain.Task{ID: "t1", ProjectID: "p1", Status: "In Progress", Version: 1})
	tasks.conflicts = 2
	rules := newFakeRuleStore(conflicted, healthy)
	engine := newEngine(tasks, rules, nil, nil)

	outcome, err := engine.HandleMutation(context.Background(), statusChangedEvent("t1", "To Do", "In Progress"))
	require.NoError(t, err)

	require.Len(t, outcome.Errors, 1)
	assert.Equal(t, "r1", outcome.Errors[0].RuleID)
	assert.Equal(t, automation.ErrorKindConflict, outcome.Errors[0].Kind)
	assert.Equal(t, 0, rules.firedCount("r1"))

	// The failed rule's in-memory mutations were discarded; the healthy
	// rule still fired against persisted state.
	assert.Equal(t, []string{"r2"}, outcome.FiredRuleIDs)
	stored := tasks.stored("t1")
	assert.Nil(t, stored.AssignedTo)
	require.Len(t, stored.Comments, 1)
}

func TestHandleMutation_RuleStoreUnreachableIsFatal(t *testing.T) {
	tasks := newFakeTaskStore(&domain.Task{ID: "t1", ProjectID: "p1", Status: "To Do", Version: 1})
	rules := newFakeRuleStore()
	rules.listErr = errors.New("connection refused")
	engine := newEngine(tasks, rules, nil, nil)

	_, err := engine.HandleMutation(context.Background(), statusChangedEvent("t1", "To Do", "In Progress"))
	require.Error(t, err)
}

func TestHandleMutation_NoActiveRulesSkipsTaskRead(t *testing.T) {
	tasks := newFakeTaskStore()
	tasks.getErr = errors.New("should not be called")
	rules := newFakeRuleStore()
	engine := newEngine(tasks, rules, nil, nil)

	outcome, err := engine.HandleMutation(context.Background(), statusChangedEvent("t1", "To Do", "In Progress"))
	require.NoError(t, err)
	assert.Empty(t, outcome.FiredRuleIDs)
}

// The rule store may hand out shared rule instances; firing must go through
// RecordFired without the engine writing stats on the instance itself.
func TestHandleMutation_StoredRuleInstanceUntouched(t *testing.T) {
	rule := statusChangeRule("r1", "To Do", "In Progress", assignUser("u1"))
	tasks := newFakeTaskStore(&domain.Task{ID: "t1", ProjectID: "p1", Status: "In Progress", Version: 1})
	rules := newFakeRuleStore(rule)
	engine := newEngine(tasks, rules, nil, nil)

	outcome, err := engine.HandleMutation(context.Background(), statusChangedEvent("t1", "To Do", "In Progress"))
	require.NoError(t, err)

	require.Equal(t, []string{"r1"}, outcome.FiredRuleIDs)
	assert.Equal(t, 1, rules.firedCount("r1"))
	assert.Equal(t, 0, rule.TriggerCount)
	assert.Nil(t, rule.LastTriggeredAt)
}

// Counter property: N concurrent evaluations that each fire the rule once
// produce exactly N increments.
func TestHandleMutation_ConcurrentFiresCountExactly(t *testing.T) {
	const n = 20

	rule := &domain.AutomationRule{
		ID:        "r1",
		ProjectID: "p1",
		IsActive:  true,
		Trigger: domain.Trigger{
			Type:       domain.TriggerAssignment,
			Assignment: &domain.AssignmentConditions{Assignee: "u1"},
		},
		Actions: []domain.Action{addComment("assigned")},
	}
	tasks := newFakeTaskStore(&domain.Task{ID: "t1", ProjectID: "p1", Status: "To Do", Version: 1})
	rules := newFakeRuleStore(rule)
	engine := newEngine(tasks, rules, nil, nil)

	event := domain.MutationEvent{
		ProjectID:   "p1",
		TaskID:      "t1",
		ActorUserID: "actor",
		Kind:        domain.EventAssigned,
		AssigneeID:  "u1",
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.HandleMutation(context.Background(), event)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, n, rules.firedCount("r1"))
}
