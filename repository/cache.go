package repository

import (
	"context"

	"github.com/fastygo/classtrack/domain"
)

// ProgressCache keeps short lived group progress projections.
type ProgressCache interface {
	Get(ctx context.Context, taskID string) (*domain.GroupProgress, bool, error)
	Set(ctx context.Context, taskID string, progress domain.GroupProgress) error
	Invalidate(ctx context.Context, taskID string) error
}
