package cascade

import (
	"maps"
	"slices"
	"time"

	"github.com/fastygo/classtrack/domain"
)

// Plan is the complete set of writes of one toggle. It is applied atomically or not at all.
type Plan struct {
	Records        []domain.CompletionRecord
	Shared         []domain.SharedState
	FullyCompleted bool
}

// PlanTask computes the writes of a task-level toggle.
//
// Completing a task forces every subtask record of the user to completed. Group tasks keep their
// shared subtask state untouched: one member checking the task does not finish it for everybody.
// Reopening a task never cascades down.
func PlanTask(userID string, task *domain.Task, current domain.Index, completed bool, now time.Time) Plan {
	plan := Plan{
		Records: []domain.CompletionRecord{record(userID, task.ID, "", completed, now)},
	}
	if !completed {
		return plan
	}

	plan.FullyCompleted = true
	if task.IsGroupTask {
		return plan
	}
	for _, subtaskID := range subtaskIDs(task, current) {
		plan.Records = append(plan.Records, record(userID, task.ID, subtaskID, true, now))
	}
	return plan
}

// PlanSubtask computes the writes of a per-user subtask toggle. Completing the last open
// subtask rolls the task up, whatever the previous task flag was.
func PlanSubtask(userID string, task *domain.Task, current domain.Index, subtaskID string, completed bool, now time.Time) Plan {
	plan := Plan{
		Records: []domain.CompletionRecord{record(userID, task.ID, subtaskID, completed, now)},
	}
	if completesLast(task, current, subtaskID, completed) {
		plan.Records = append(plan.Records, record(userID, task.ID, "", true, now))
		plan.FullyCompleted = true
	}
	return plan
}

// PlanSharedSubtask computes the writes of a group task subtask toggle. The shared state changes
// for every member; the roll-up completes the task for the member who finished the last subtask.
func PlanSharedSubtask(userID string, task *domain.Task, shared []domain.SharedState, subtaskID string, completed bool, now time.Time) Plan {
	current := make(domain.Index, len(shared))
	for _, st := range shared {
		rec := st.Record(userID)
		current[rec.Key()] = rec
	}

	plan := Plan{
		Shared: []domain.SharedState{{
			TaskID:      task.ID,
			SubtaskID:   subtaskID,
			IsCompleted: completed,
			UpdatedBy:   userID,
			UpdatedAt:   now,
		}},
	}
	if completesLast(task, current, subtaskID, completed) {
		plan.Records = append(plan.Records, record(userID, task.ID, "", true, now))
		plan.FullyCompleted = true
	}
	return plan
}

// Apply returns the index as the toggling user sees it after the plan's writes.
func (p Plan) Apply(current domain.Index) domain.Index {
	next := make(domain.Index, len(current)+len(p.Records)+len(p.Shared))
	for k, v := range current {
		next[k] = v
	}
	for _, st := range p.Shared {
		rec := st.Record(st.UpdatedBy)
		next[rec.Key()] = rec
	}
	for _, rec := range p.Records {
		next[rec.Key()] = rec
	}
	return next
}

// completesLast reports whether setting subtaskID to completed is the transition that closes the
// last open subtask of the task.
func completesLast(task *domain.Task, current domain.Index, subtaskID string, completed bool) bool {
	key := domain.SubtaskKey(task.ID, subtaskID)
	if !completed || current.IsCompleted(key) {
		return false
	}
	after := make(domain.Index, len(current)+1)
	maps.Copy(after, current)
	after[key] = domain.CompletionRecord{TaskID: task.ID, SubtaskID: subtaskID, IsCompleted: true}
	return after.AllSubtasksCompleted(task.ID, task.SubtaskIDs)
}

// subtaskIDs lists the catalog subtasks followed by any other subtask the user has a record for.
func subtaskIDs(task *domain.Task, current domain.Index) []string {
	ids := slices.Clone(task.SubtaskIDs)
	var extra []string
	for key := range current {
		if key.TaskID == task.ID && !key.IsTaskLevel() && !slices.Contains(ids, key.SubtaskID) {
			extra = append(extra, key.SubtaskID)
		}
	}
	slices.Sort(extra)
	return append(ids, extra...)
}

func record(userID, taskID, subtaskID string, completed bool, now time.Time) domain.CompletionRecord {
	return domain.CompletionRecord{
		UserID:      userID,
		TaskID:      taskID,
		SubtaskID:   subtaskID,
		IsCompleted: completed,
		UpdatedAt:   now,
	}
}
