package domain

import "time"

// HistoryEntry marks the first time a user fully completed a task. Entries are never updated
// or removed, even if the task is reopened later.
type HistoryEntry struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	TaskID      string    `json:"task_id"`
	Title       string    `json:"title"`
	CompletedAt time.Time `json:"completed_at"`
}
