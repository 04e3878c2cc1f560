package domain

import "slices"

// Principal is the caller identity handed over by the identity collaborator.
type Principal struct {
	UserID   string
	ClassIDs []string
}

func (p Principal) CanRead(task *Task) bool {
	if p.UserID == "" || task == nil {
		return false
	}
	return slices.Contains(p.ClassIDs, task.ClassID)
}

// Authorize returns ErrUnauthorized for anonymous callers and ErrNotClassMember for cross-class access.
func (p Principal) Authorize(task *Task) error {
	if p.UserID == "" {
		return ErrUnauthorized
	}
	if !p.CanRead(task) {
		return ErrNotClassMember
	}
	return nil
}
