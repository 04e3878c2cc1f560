package domain

import (
	"slices"
	"time"
)

// Task is a homework thread owned by the task catalog. The completion engine only reads it.
type Task struct {
	ID          string     `json:"id"`
	AuthorID    string     `json:"author_id"`
	ClassID     string     `json:"class_id"`
	Title       string     `json:"title"`
	CreatedAt   time.Time  `json:"created_at"`
	Date        time.Time  `json:"date"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	IsGroupTask bool       `json:"is_group_task"`
	MemberIDs   []string   `json:"member_ids,omitempty"`
	SubtaskIDs  []string   `json:"subtask_ids"`
}

// Subtask is a comment attached to a task.
type Subtask struct {
	ID        string     `json:"id"`
	TaskID    string     `json:"task_id"`
	AuthorID  string     `json:"author_id"`
	Content   string     `json:"content"`
	Deadline  *time.Time `json:"deadline,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (t *Task) HasSubtask(subtaskID string) bool {
	return t != nil && subtaskID != "" && slices.Contains(t.SubtaskIDs, subtaskID)
}

// CanToggleShared reports whether the user may change the shared subtask state of a group task.
func (t *Task) CanToggleShared(userID string) bool {
	if t == nil || !t.IsGroupTask || userID == "" {
		return false
	}
	return t.AuthorID == userID || slices.Contains(t.MemberIDs, userID)
}

// IsOverdue reports whether the deadline lies before the reference time.
func (t *Task) IsOverdue(reference time.Time) bool {
	return t != nil && t.Deadline != nil && t.Deadline.Before(reference)
}

// OverdueTask is a task past its deadline that the user has not completed.
type OverdueTask struct {
	TaskID      string `json:"task_id"`
	Title       string `json:"title"`
	DaysOverdue int    `json:"days_overdue"`
}

// DaysOverdue counts started days past the deadline, at least 1 for an overdue task.
func DaysOverdue(deadline, reference time.Time) int {
	late := reference.Sub(deadline)
	if late <= 0 {
		return 0
	}
	days := int(late / (24 * time.Hour))
	if late%(24*time.Hour) != 0 {
		days++
	}
	return days
}
