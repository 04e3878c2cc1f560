package transport

import (
	"time"

	"github.com/fastygo/classtrack/domain"
)

// StatusView is one completion flag as seen by the caller. SubtaskID is null for the task itself.
type StatusView struct {
	TaskID      string     `json:"task_id"`
	SubtaskID   *string    `json:"subtask_id"`
	IsCompleted bool       `json:"is_completed"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeleteAt    *time.Time `json:"delete_at,omitempty"`
}

// ToggleView is the response of a toggle.
type ToggleView struct {
	State          domain.DerivedState `json:"state"`
	FullyCompleted bool                `json:"fully_completed"`
	Archived       bool                `json:"archived"`
	Statuses       []StatusView        `json:"statuses"`
}

type CountView struct {
	Count int `json:"count"`
}

// HistoryView omits the owner, which is always the caller.
type HistoryView struct {
	TaskID      string    `json:"task_id"`
	Title       string    `json:"title"`
	CompletedAt time.Time `json:"completed_at"`
}

func NewStatusView(rec domain.CompletionRecord, ttl domain.TTL) StatusView {
	view := StatusView{
		TaskID:      rec.TaskID,
		IsCompleted: rec.IsCompleted,
		UpdatedAt:   rec.UpdatedAt,
	}
	if rec.SubtaskID != "" {
		id := rec.SubtaskID
		view.SubtaskID = &id
	}
	if deleteAt, ok := ttl.DeleteAt(rec); ok {
		view.DeleteAt = &deleteAt
	}
	return view
}

func NewStatusViews(records []domain.CompletionRecord, ttl domain.TTL) []StatusView {
	views := make([]StatusView, 0, len(records))
	for _, rec := range records {
		views = append(views, NewStatusView(rec, ttl))
	}
	return views
}

// Record converts the view back to a record of the given user.
func (v StatusView) Record(userID string) domain.CompletionRecord {
	rec := domain.CompletionRecord{
		UserID:      userID,
		TaskID:      v.TaskID,
		IsCompleted: v.IsCompleted,
		UpdatedAt:   v.UpdatedAt,
	}
	if v.SubtaskID != nil {
		rec.SubtaskID = *v.SubtaskID
	}
	return rec
}

func NewHistoryViews(entries []domain.HistoryEntry) []HistoryView {
	views := make([]HistoryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, HistoryView{TaskID: e.TaskID, Title: e.Title, CompletedAt: e.CompletedAt})
	}
	return views
}
