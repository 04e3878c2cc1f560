package cascade

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/classtrack/domain"
)

var now = time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)

func keys(records []domain.CompletionRecord) map[domain.StatusKey]bool {
	out := make(map[domain.StatusKey]bool, len(records))
	for _, rec := range records {
		out[rec.Key()] = rec.IsCompleted
	}
	return out
}

func TestPlanTaskCompleteForcesSubtasks(t *testing.T) {
	task := &domain.Task{ID: "t1", SubtaskIDs: []string{"a", "b"}}
	current := domain.NewIndex([]domain.CompletionRecord{
		{UserID: "u1", TaskID: "t1", SubtaskID: "orphan", IsCompleted: false},
	})

	plan := PlanTask("u1", task, current, true, now)

	assert.True(t, plan.FullyCompleted)
	assert.Equal(t, map[domain.StatusKey]bool{
		domain.TaskKey("t1"):              true,
		domain.SubtaskKey("t1", "a"):      true,
		domain.SubtaskKey("t1", "b"):      true,
		domain.SubtaskKey("t1", "orphan"): true,
	}, keys(plan.Records))
	for _, rec := range plan.Records {
		assert.Equal(t, now, rec.UpdatedAt)
		assert.Equal(t, "u1", rec.UserID)
	}
	assert.Equal(t, domain.StateComplete, plan.Apply(current).Derive(task))
}

func TestPlanTaskReopenDoesNotCascadeDown(t *testing.T) {
	task := &domain.Task{ID: "t1", SubtaskIDs: []string{"a", "b"}}

	plan := PlanTask("u1", task, nil, false, now)

	assert.False(t, plan.FullyCompleted)
	assert.Equal(t, map[domain.StatusKey]bool{domain.TaskKey("t1"): false}, keys(plan.Records))
}

func TestPlanTaskGroupLeavesSharedState(t *testing.T) {
	task := &domain.Task{ID: "g1", IsGroupTask: true, SubtaskIDs: []string{"a"}}

	plan := PlanTask("u1", task, nil, true, now)

	assert.True(t, plan.FullyCompleted)
	assert.Empty(t, plan.Shared)
	assert.Equal(t, map[domain.StatusKey]bool{domain.TaskKey("g1"): true}, keys(plan.Records))
}

func TestPlanSubtaskRollUp(t *testing.T) {
	task := &domain.Task{ID: "t1", SubtaskIDs: []string{"a", "b"}}
	current := domain.NewIndex([]domain.CompletionRecord{
		{UserID: "u1", TaskID: "t1", SubtaskID: "a", IsCompleted: true},
	})

	plan := PlanSubtask("u1", task, current, "b", true, now)

	require.True(t, plan.FullyCompleted)
	assert.Equal(t, map[domain.StatusKey]bool{
		domain.SubtaskKey("t1", "b"): true,
		domain.TaskKey("t1"):         true,
	}, keys(plan.Records))
}

func TestPlanSubtaskNotLast(t *testing.T) {
	task := &domain.Task{ID: "t1", SubtaskIDs: []string{"a", "b"}}

	plan := PlanSubtask("u1", task, nil, "a", true, now)

	assert.False(t, plan.FullyCompleted)
	assert.Len(t, plan.Records, 1)
	assert.Equal(t, domain.StatePartiallyComplete, plan.Apply(nil).Derive(task))
}

func TestPlanSubtaskAlreadyCompletedIsNoTransition(t *testing.T) {
	task := &domain.Task{ID: "t1", SubtaskIDs: []string{"a", "b"}}
	current := domain.NewIndex([]domain.CompletionRecord{
		{UserID: "u1", TaskID: "t1", SubtaskID: "a", IsCompleted: true},
		{UserID: "u1", TaskID: "t1", SubtaskID: "b", IsCompleted: true},
	})

	plan := PlanSubtask("u1", task, current, "b", true, now)

	assert.False(t, plan.FullyCompleted, "re-confirming a completed subtask is not a completion transition")
	assert.Len(t, plan.Records, 1)
}

func TestPlanSubtaskUncheckKeepsTask(t *testing.T) {
	task := &domain.Task{ID: "t1", SubtaskIDs: []string{"a", "b"}}
	current := domain.NewIndex([]domain.CompletionRecord{
		{UserID: "u1", TaskID: "t1", IsCompleted: true},
		{UserID: "u1", TaskID: "t1", SubtaskID: "a", IsCompleted: true},
		{UserID: "u1", TaskID: "t1", SubtaskID: "b", IsCompleted: true},
	})

	plan := PlanSubtask("u1", task, current, "a", false, now)

	assert.False(t, plan.FullyCompleted)
	assert.Equal(t, map[domain.StatusKey]bool{domain.SubtaskKey("t1", "a"): false}, keys(plan.Records))
	assert.Equal(t, domain.StateComplete, plan.Apply(current).Derive(task))
}

func TestPlanSharedSubtask(t *testing.T) {
	task := &domain.Task{ID: "g1", IsGroupTask: true, SubtaskIDs: []string{"a", "b"}}
	shared := []domain.SharedState{{TaskID: "g1", SubtaskID: "a", IsCompleted: true, UpdatedBy: "u2"}}

	plan := PlanSharedSubtask("u1", task, shared, "b", true, now)

	require.Len(t, plan.Shared, 1)
	assert.Equal(t, domain.SharedState{TaskID: "g1", SubtaskID: "b", IsCompleted: true, UpdatedBy: "u1", UpdatedAt: now}, plan.Shared[0])
	assert.True(t, plan.FullyCompleted)
	assert.Equal(t, map[domain.StatusKey]bool{domain.TaskKey("g1"): true}, keys(plan.Records))

	plan = PlanSharedSubtask("u1", task, nil, "a", true, now)
	assert.False(t, plan.FullyCompleted)
	assert.Empty(t, plan.Records)
}
