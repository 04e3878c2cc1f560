package domain

import (
	"sort"
	"time"
)

// StatusKey addresses one completion flag of a task. An empty SubtaskID is the task-level key.
type StatusKey struct {
	TaskID    string
	SubtaskID string
}

func TaskKey(taskID string) StatusKey {
	return StatusKey{TaskID: taskID}
}

func SubtaskKey(taskID, subtaskID string) StatusKey {
	return StatusKey{TaskID: taskID, SubtaskID: subtaskID}
}

func (k StatusKey) IsTaskLevel() bool {
	return k.SubtaskID == ""
}

func (k StatusKey) String() string {
	if k.IsTaskLevel() {
		return k.TaskID
	}
	return k.TaskID + "/" + k.SubtaskID
}

// CompletionRecord is the per-user completion flag of a task or one of its subtasks.
// A missing record means "not completed".
type CompletionRecord struct {
	UserID      string    `json:"user_id"`
	TaskID      string    `json:"task_id"`
	SubtaskID   string    `json:"subtask_id,omitempty"`
	IsCompleted bool      `json:"is_completed"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (r CompletionRecord) Key() StatusKey {
	return StatusKey{TaskID: r.TaskID, SubtaskID: r.SubtaskID}
}

// SharedState is the completion flag of a group task subtask. It is shared by all members.
type SharedState struct {
	TaskID      string    `json:"task_id"`
	SubtaskID   string    `json:"subtask_id"`
	IsCompleted bool      `json:"is_completed"`
	UpdatedBy   string    `json:"updated_by"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Record projects the shared state as a completion record for the given viewer.
func (s SharedState) Record(userID string) CompletionRecord {
	return CompletionRecord{
		UserID:      userID,
		TaskID:      s.TaskID,
		SubtaskID:   s.SubtaskID,
		IsCompleted: s.IsCompleted,
		UpdatedAt:   s.UpdatedAt,
	}
}

// Index gives constant time lookups of records by key. Slices are only a transport shape.
type Index map[StatusKey]CompletionRecord

func NewIndex(records []CompletionRecord) Index {
	idx := make(Index, len(records))
	for _, rec := range records {
		idx[rec.Key()] = rec
	}
	return idx
}

func (idx Index) IsCompleted(key StatusKey) bool {
	rec, ok := idx[key]
	return ok && rec.IsCompleted
}

// Records lists the indexed records, task-level record first and subtasks by id.
func (idx Index) Records() []CompletionRecord {
	records := make([]CompletionRecord, 0, len(idx))
	for _, rec := range idx {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].TaskID != records[j].TaskID {
			return records[i].TaskID < records[j].TaskID
		}
		return records[i].SubtaskID < records[j].SubtaskID
	})
	return records
}

// AllSubtasksCompleted reports whether every listed subtask has a completed record.
// A task without subtasks is never considered rolled up.
func (idx Index) AllSubtasksCompleted(taskID string, subtaskIDs []string) bool {
	if len(subtaskIDs) == 0 {
		return false
	}
	for _, id := range subtaskIDs {
		if !idx.IsCompleted(SubtaskKey(taskID, id)) {
			return false
		}
	}
	return true
}

// DerivedState summarises a user's progress on a task.
type DerivedState string

const (
	StateIncomplete        DerivedState = "incomplete"
	StatePartiallyComplete DerivedState = "partially_complete"
	StateComplete          DerivedState = "complete"
)

// Derive computes the state from the task-level record and the subtask records.
// The task flag wins: a completed task stays complete even if a subtask was reopened.
func (idx Index) Derive(task *Task) DerivedState {
	if task == nil {
		return StateIncomplete
	}
	if idx.IsCompleted(TaskKey(task.ID)) {
		return StateComplete
	}
	for _, id := range task.SubtaskIDs {
		if idx.IsCompleted(SubtaskKey(task.ID, id)) {
			return StatePartiallyComplete
		}
	}
	return StateIncomplete
}
