package domain

import "math"

// GroupProgress is the shared completion of a group task.
type GroupProgress struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// ComputeGroupProgress counts shared states of the task's current subtasks. States of
// subtasks no longer listed by the catalog are ignored.
func ComputeGroupProgress(task *Task, states []SharedState) GroupProgress {
	if task == nil {
		return GroupProgress{}
	}
	done := make(map[string]bool, len(states))
	for _, st := range states {
		if st.TaskID == task.ID {
			done[st.SubtaskID] = st.IsCompleted
		}
	}

	progress := GroupProgress{Total: len(task.SubtaskIDs)}
	for _, id := range task.SubtaskIDs {
		if done[id] {
			progress.Completed++
		}
	}
	progress.Percentage = Percentage(progress.Completed, progress.Total)
	return progress
}

// Percentage rounds completed/total to a whole percent. Rounding never reports 100 while
// something is still open, and never 0 for an empty total.
func Percentage(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	if completed >= total {
		return 100
	}
	pct := int(math.Round(100 * float64(completed) / float64(total)))
	if pct >= 100 {
		pct = 99
	}
	return pct
}
