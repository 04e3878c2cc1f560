package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexDerive(t *testing.T) {
	task := &Task{ID: "t1", SubtaskIDs: []string{"a", "b"}}
	rec := func(sub string, done bool) CompletionRecord {
		return CompletionRecord{UserID: "u1", TaskID: "t1", SubtaskID: sub, IsCompleted: done}
	}

	assert.Equal(t, StateIncomplete, NewIndex(nil).Derive(task))
	assert.Equal(t, StatePartiallyComplete, NewIndex([]CompletionRecord{rec("a", true)}).Derive(task))
	assert.Equal(t, StateIncomplete, NewIndex([]CompletionRecord{rec("a", false), rec("", false)}).Derive(task))
	assert.Equal(t, StateComplete, NewIndex([]CompletionRecord{rec("", true), rec("a", false)}).Derive(task))
}

func TestIndexAllSubtasksCompleted(t *testing.T) {
	idx := NewIndex([]CompletionRecord{
		{TaskID: "t1", SubtaskID: "a", IsCompleted: true},
		{TaskID: "t1", SubtaskID: "b", IsCompleted: true},
	})
	assert.True(t, idx.AllSubtasksCompleted("t1", []string{"a", "b"}))
	assert.False(t, idx.AllSubtasksCompleted("t1", []string{"a", "b", "c"}))
	assert.False(t, idx.AllSubtasksCompleted("t1", nil))
}

func TestStatusKey(t *testing.T) {
	assert.True(t, TaskKey("t1").IsTaskLevel())
	assert.Equal(t, "t1", TaskKey("t1").String())
	assert.Equal(t, "t1/a", SubtaskKey("t1", "a").String())

	st := SharedState{TaskID: "g", SubtaskID: "a", IsCompleted: true, UpdatedBy: "u2", UpdatedAt: time.Unix(10, 0)}
	rec := st.Record("u1")
	require.Equal(t, SubtaskKey("g", "a"), rec.Key())
	assert.Equal(t, "u1", rec.UserID)
	assert.True(t, rec.IsCompleted)
}

func TestDaysOverdue(t *testing.T) {
	deadline := time.Date(2024, 10, 1, 18, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, DaysOverdue(deadline, deadline))
	assert.Equal(t, 1, DaysOverdue(deadline, deadline.Add(time.Minute)))
	assert.Equal(t, 1, DaysOverdue(deadline, deadline.Add(24*time.Hour)))
	assert.Equal(t, 2, DaysOverdue(deadline, deadline.Add(24*time.Hour+time.Second)))

	task := &Task{ID: "t1", Deadline: &deadline}
	assert.True(t, task.IsOverdue(deadline.Add(time.Second)))
	assert.False(t, task.IsOverdue(deadline))
	assert.False(t, (&Task{ID: "t2"}).IsOverdue(deadline))
}

func TestPrincipalAuthorize(t *testing.T) {
	task := &Task{ID: "t1", ClassID: "c1"}

	assert.NoError(t, Principal{UserID: "u1", ClassIDs: []string{"c1"}}.Authorize(task))
	assert.True(t, IsDomainError(Principal{UserID: "u1", ClassIDs: []string{"c2"}}.Authorize(task), ErrCodeUnauthorized))
	assert.ErrorIs(t, Principal{}.Authorize(task), ErrUnauthorized)
}

func TestCanToggleShared(t *testing.T) {
	task := &Task{ID: "g", AuthorID: "author", IsGroupTask: true, MemberIDs: []string{"m1"}}

	assert.True(t, task.CanToggleShared("author"))
	assert.True(t, task.CanToggleShared("m1"))
	assert.False(t, task.CanToggleShared("stranger"))
	assert.False(t, (&Task{ID: "t", AuthorID: "author"}).CanToggleShared("author"))
}
