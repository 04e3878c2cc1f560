package history

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/classtrack/domain"
	"github.com/fastygo/classtrack/pkg/logger"
	"github.com/fastygo/classtrack/repository"
)

// Archiver records the first full completion of a task by a user.
type Archiver struct {
	logger *zap.Logger
}

func NewArchiver(logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{logger: logger}
}

// Archive inserts the history entry inside the caller's unit of work unless one already exists.
// It reports whether a new entry was created.
func (a *Archiver) Archive(ctx context.Context, tx repository.CompletionTx, userID string, task *domain.Task, completedAt time.Time) (bool, error) {
	entry := domain.HistoryEntry{
		ID:          uuid.NewString(),
		UserID:      userID,
		TaskID:      task.ID,
		Title:       task.Title,
		CompletedAt: completedAt,
	}
	created, err := tx.InsertHistoryIfAbsent(ctx, entry)
	if err != nil {
		return false, err
	}
	if created {
		logger.WithRequestID(ctx, a.logger).Info("task archived to history",
			zap.String("user_id", userID),
			zap.String("task_id", task.ID))
	}
	return created, nil
}

// UseCase serves the history log to its consumers.
type UseCase struct {
	entries repository.HistoryRepository
	limit   int
}

func New(entries repository.HistoryRepository, limit int) *UseCase {
	if limit <= 0 || limit > repository.MaxHistoryLimit {
		limit = repository.MaxHistoryLimit
	}
	return &UseCase{entries: entries, limit: limit}
}

func (uc *UseCase) List(ctx context.Context, principal domain.Principal) ([]domain.HistoryEntry, error) {
	if principal.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	entries, err := uc.entries.ListByUser(ctx, principal.UserID, uc.limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "listing history", err)
	}
	return entries, nil
}
