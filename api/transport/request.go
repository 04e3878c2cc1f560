package transport

// ToggleRequest is the body of the task and subtask status endpoints.
type ToggleRequest struct {
	IsCompleted *bool `json:"is_completed"`
}
