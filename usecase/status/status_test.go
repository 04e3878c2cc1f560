package status_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/classtrack/domain"
	"github.com/fastygo/classtrack/internal/testutil"
	"github.com/fastygo/classtrack/usecase/cascade"
	"github.com/fastygo/classtrack/usecase/history"
	"github.com/fastygo/classtrack/usecase/status"
)

var start = time.Date(2024, 10, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store *testutil.Store
	clock *testutil.Clock
	uc    *status.UseCase
	inv   *invalidations
}

type invalidations struct {
	mu    sync.Mutex
	tasks []string
}

func (i *invalidations) Invalidate(_ context.Context, taskID string) {
	i.mu.Lock()
	i.tasks = append(i.tasks, taskID)
	i.mu.Unlock()
}

func newFixture(t *testing.T, tasks ...domain.Task) *fixture {
	t.Helper()
	store := testutil.NewTestStore(t, tasks...)
	clock := testutil.NewClock(start)
	engine := cascade.NewEngine(store.Completions, history.NewArchiver(nil), clock.Now, nil)
	inv := &invalidations{}
	return &fixture{
		store: store,
		clock: clock,
		uc:    status.New(store.Catalog, store.Completions, engine, inv, clock.Now, nil),
		inv:   inv,
	}
}

func student(classIDs ...string) domain.Principal {
	return domain.Principal{UserID: "u1", ClassIDs: classIDs}
}

func statusMap(records []domain.CompletionRecord) map[string]bool {
	out := make(map[string]bool, len(records))
	for _, rec := range records {
		name := "task"
		if rec.SubtaskID != "" {
			name = rec.SubtaskID
		}
		out[name] = rec.IsCompleted
	}
	return out
}

func (f *fixture) history(t *testing.T, userID string) []domain.HistoryEntry {
	t.Helper()
	entries, err := f.store.History.ListByUser(context.Background(), userID, 0)
	require.NoError(t, err)
	return entries
}

func TestMatematikaScenario(t *testing.T) {
	f := newFixture(t, testutil.Task("m1", "c1", "Matematika", "A", "B"))
	ctx := context.Background()
	p := student("c1")

	_, err := f.uc.ToggleSubtask(ctx, p, "m1", "A", true)
	require.NoError(t, err)

	records, err := f.uc.GetStatuses(ctx, p, "m1")
	require.NoError(t, err)
	got := statusMap(records)
	assert.False(t, got["task"])
	assert.True(t, got["A"])
	assert.False(t, got["B"])
	assert.Empty(t, f.history(t, "u1"))

	f.clock.Advance(time.Minute)
	result, err := f.uc.ToggleSubtask(ctx, p, "m1", "B", true)
	require.NoError(t, err)
	assert.True(t, result.FullyCompleted)
	assert.Equal(t, domain.StateComplete, result.State)

	records, err = f.uc.GetStatuses(ctx, p, "m1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"task": true, "A": true, "B": true}, statusMap(records))
	assert.Empty(t, records[0].SubtaskID, "task-level record comes first")

	entries := f.history(t, "u1")
	require.Len(t, entries, 1)
	assert.Equal(t, "Matematika", entries[0].Title)
	assert.WithinDuration(t, f.clock.Now(), entries[0].CompletedAt, time.Second)
}

func TestCascadeUpCompleteness(t *testing.T) {
	f := newFixture(t, testutil.Task("t1", "c1", "Biologi", "A", "B", "C"))
	ctx := context.Background()
	p := student("c1")

	for _, sub := range []string{"A", "B", "C"} {
		_, err := f.uc.ToggleSubtask(ctx, p, "t1", sub, true)
		require.NoError(t, err)
	}

	records, err := f.uc.GetStatuses(ctx, p, "t1")
	require.NoError(t, err)
	assert.True(t, statusMap(records)["task"])
	assert.Len(t, f.history(t, "u1"), 1)

	// Reopening and finishing again never adds a second milestone.
	_, err = f.uc.ToggleSubtask(ctx, p, "t1", "C", false)
	require.NoError(t, err)
	_, err = f.uc.ToggleSubtask(ctx, p, "t1", "C", true)
	require.NoError(t, err)
	assert.Len(t, f.history(t, "u1"), 1)
}

func TestToggleTaskForcesChildren(t *testing.T) {
	f := newFixture(t, testutil.Task("t1", "c1", "Sejarah", "A", "B"))
	ctx := context.Background()
	p := student("c1")

	result, err := f.uc.ToggleTask(ctx, p, "t1", true)
	require.NoError(t, err)
	assert.True(t, result.FullyCompleted)
	assert.True(t, result.Archived)

	records, err := f.uc.GetStatuses(ctx, p, "t1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"task": true, "A": true, "B": true}, statusMap(records))
}

func TestNoCascadeDown(t *testing.T) {
	f := newFixture(t, testutil.Task("t1", "c1", "Geografi", "A", "B"))
	ctx := context.Background()
	p := student("c1")

	_, err := f.uc.ToggleTask(ctx, p, "t1", true)
	require.NoError(t, err)

	result, err := f.uc.ToggleSubtask(ctx, p, "t1", "A", false)
	require.NoError(t, err)
	assert.False(t, result.FullyCompleted)

	records, err := f.uc.GetStatuses(ctx, p, "t1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"task": true, "A": false, "B": true}, statusMap(records))

	_, err = f.uc.ToggleTask(ctx, p, "t1", false)
	require.NoError(t, err)
	records, err = f.uc.GetStatuses(ctx, p, "t1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"task": false, "A": false, "B": true}, statusMap(records))
	assert.Len(t, f.history(t, "u1"), 1, "reopening keeps history")
}

func TestToggleIsIdempotentAndRefreshesUpdatedAt(t *testing.T) {
	f := newFixture(t, testutil.Task("t1", "c1", "Kimia", "A", "B"))
	ctx := context.Background()
	p := student("c1")

	_, err := f.uc.ToggleSubtask(ctx, p, "t1", "A", true)
	require.NoError(t, err)
	first, err := f.uc.GetStatuses(ctx, p, "t1")
	require.NoError(t, err)
	require.Len(t, first, 1)

	f.clock.Advance(time.Hour)
	_, err = f.uc.ToggleSubtask(ctx, p, "t1", "A", true)
	require.NoError(t, err)
	second, err := f.uc.GetStatuses(ctx, p, "t1")
	require.NoError(t, err)

	require.Len(t, second, 1)
	assert.True(t, second[0].IsCompleted)
	assert.True(t, second[0].UpdatedAt.After(first[0].UpdatedAt))
	assert.True(t, second[0].UpdatedAt.Equal(f.clock.Now()))
}

func TestConcurrentLastSubtaskArchivesOnce(t *testing.T) {
	f := newFixture(t, testutil.Task("t1", "c1", "Fizika", "A", "B"))
	ctx := context.Background()
	p := student("c1")

	var wg sync.WaitGroup
	results := make([]cascade.Result, 2)
	errs := make([]error, 2)
	for i, sub := range []string{"A", "B"} {
		wg.Add(1)
		go func(i int, sub string) {
			defer wg.Done()
			results[i], errs[i] = f.uc.ToggleSubtask(ctx, p, "t1", sub, true)
		}(i, sub)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.NotEqual(t, results[0].FullyCompleted, results[1].FullyCompleted, "exactly one toggle completes the task")
	assert.Len(t, f.history(t, "u1"), 1)

	records, err := f.uc.GetStatuses(ctx, p, "t1")
	require.NoError(t, err)
	assert.True(t, statusMap(records)["task"])
}

func TestConcurrentDuplicateLastSubtask(t *testing.T) {
	f := newFixture(t, testutil.Task("t1", "c1", "Fizika", "A", "B"))
	ctx := context.Background()
	p := student("c1")

	_, err := f.uc.ToggleSubtask(ctx, p, "t1", "A", true)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.uc.ToggleSubtask(ctx, p, "t1", "B", true)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, f.history(t, "u1"), 1)
}

func TestErrors(t *testing.T) {
	f := newFixture(t, testutil.Task("t1", "c1", "Seni", "A"))
	ctx := context.Background()

	_, err := f.uc.GetStatuses(ctx, student("c1"), "missing")
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))

	_, err = f.uc.GetStatuses(ctx, student("c2"), "t1")
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeUnauthorized))

	_, err = f.uc.ToggleTask(ctx, student("c2"), "t1", true)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeUnauthorized))

	_, err = f.uc.ToggleSubtask(ctx, student("c1"), "t1", "Z", true)
	assert.ErrorIs(t, err, domain.ErrSubtaskNotFound)

	_, err = f.uc.GetStatuses(ctx, domain.Principal{}, "t1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	records, err := f.store.Completions.ListForTask(ctx, "u1", "t1")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestGroupTaskSharedSubtasks(t *testing.T) {
	group := testutil.Task("g1", "c1", "Proyek", "A", "B")
	group.IsGroupTask = true
	group.MemberIDs = []string{"u1", "u2"}
	f := newFixture(t, group)
	ctx := context.Background()
	u1 := domain.Principal{UserID: "u1", ClassIDs: []string{"c1"}}
	u2 := domain.Principal{UserID: "u2", ClassIDs: []string{"c1"}}
	outsider := domain.Principal{UserID: "u3", ClassIDs: []string{"c1"}}

	_, err := f.uc.ToggleSubtask(ctx, u1, "g1", "A", true)
	require.NoError(t, err)

	records, err := f.uc.GetStatuses(ctx, u2, "g1")
	require.NoError(t, err)
	assert.True(t, statusMap(records)["A"], "members see the shared state")

	_, err = f.uc.ToggleSubtask(ctx, outsider, "g1", "B", true)
	assert.ErrorIs(t, err, domain.ErrNotGroupMember)

	result, err := f.uc.ToggleSubtask(ctx, u2, "g1", "B", true)
	require.NoError(t, err)
	assert.True(t, result.FullyCompleted)
	assert.True(t, result.SharedChanged)
	assert.Len(t, f.history(t, "u2"), 1)
	assert.Empty(t, f.history(t, "u1"))

	records, err = f.uc.GetStatuses(ctx, u1, "g1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"A": true, "B": true}, statusMap(records))

	assert.Equal(t, []string{"g1", "g1"}, f.inv.tasks)
}

func TestUncompletedCountAndOverdue(t *testing.T) {
	overdueLong := testutil.Task("t1", "c1", "Bahasa", "A")
	d1 := start.Add(-50 * time.Hour)
	overdueLong.Deadline = &d1

	overdueShort := testutil.Task("t2", "c1", "Agama")
	d2 := start.Add(-time.Hour)
	overdueShort.Deadline = &d2

	future := testutil.Task("t3", "c1", "Musik")
	d3 := start.Add(time.Hour)
	future.Deadline = &d3

	done := testutil.Task("t4", "c1", "Olahraga")
	d4 := start.Add(-time.Hour)
	done.Deadline = &d4

	otherClass := testutil.Task("t5", "c2", "Ekonomi")

	f := newFixture(t, overdueLong, overdueShort, future, done, otherClass)
	ctx := context.Background()
	p := student("c1")

	_, err := f.uc.ToggleTask(ctx, p, "t4", true)
	require.NoError(t, err)

	count, err := f.uc.UncompletedCount(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	overdue, err := f.uc.OverdueTasks(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, []domain.OverdueTask{
		{TaskID: "t1", Title: "Bahasa", DaysOverdue: 3},
		{TaskID: "t2", Title: "Agama", DaysOverdue: 1},
	}, overdue)
}
