package repository

import (
	"context"

	"github.com/fastygo/classtrack/domain"
)

// MaxHistoryLimit caps one history page on every backend.
const MaxHistoryLimit = 100

type HistoryRepository interface {
	// ListByUser returns entries newest first. A limit outside 1..MaxHistoryLimit means MaxHistoryLimit.
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error)
}
