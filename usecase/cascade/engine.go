package cascade

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/classtrack/domain"
	"github.com/fastygo/classtrack/pkg/logger"
	"github.com/fastygo/classtrack/repository"
	"github.com/fastygo/classtrack/usecase/history"
)

// Result describes what a toggle changed.
type Result struct {
	State          domain.DerivedState
	FullyCompleted bool
	Archived       bool
	SharedChanged  bool
	// Records are the caller's statuses of the task as committed by the toggle.
	Records []domain.CompletionRecord
}

// Engine applies toggles and their cascades inside one unit of work per (user, task).
type Engine struct {
	store    repository.CompletionRepository
	archiver *history.Archiver
	now      func() time.Time
	logger   *zap.Logger
}

func NewEngine(store repository.CompletionRepository, archiver *history.Archiver, now func() time.Time, logger *zap.Logger) *Engine {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if archiver == nil {
		archiver = history.NewArchiver(logger)
	}
	return &Engine{
		store:    store,
		archiver: archiver,
		now:      now,
		logger:   logger,
	}
}

// ToggleTask sets the task-level flag of the user and cascades completion to the subtasks.
func (e *Engine) ToggleTask(ctx context.Context, userID string, task *domain.Task, completed bool) (Result, error) {
	scope := repository.NewScope(repository.UserScope(userID, task.ID))
	return e.run(ctx, scope, func(tx repository.CompletionTx, now time.Time) (Plan, domain.Index, error) {
		idx, err := currentIndex(ctx, tx, userID, task)
		if err != nil {
			return Plan{}, nil, err
		}
		return PlanTask(userID, task, idx, completed, now), idx, nil
	}, userID, task)
}

// ToggleSubtask sets one subtask flag and rolls the task up when it closes the last open subtask.
// Group tasks write the shared state visible to every member.
func (e *Engine) ToggleSubtask(ctx context.Context, userID string, task *domain.Task, subtaskID string, completed bool) (Result, error) {
	if task.IsGroupTask {
		scope := repository.NewScope(repository.SharedScope(task.ID), repository.UserScope(userID, task.ID))
		return e.run(ctx, scope, func(tx repository.CompletionTx, now time.Time) (Plan, domain.Index, error) {
			shared, err := tx.ListShared(ctx, task.ID)
			if err != nil {
				return Plan{}, nil, err
			}
			idx, err := currentIndex(ctx, tx, userID, task)
			if err != nil {
				return Plan{}, nil, err
			}
			return PlanSharedSubtask(userID, task, shared, subtaskID, completed, now), idx, nil
		}, userID, task)
	}

	scope := repository.NewScope(repository.UserScope(userID, task.ID))
	return e.run(ctx, scope, func(tx repository.CompletionTx, now time.Time) (Plan, domain.Index, error) {
		idx, err := currentIndex(ctx, tx, userID, task)
		if err != nil {
			return Plan{}, nil, err
		}
		return PlanSubtask(userID, task, idx, subtaskID, completed, now), idx, nil
	}, userID, task)
}

// currentIndex reads the caller's view of the task inside the unit of work. Group tasks take
// their subtask entries from the shared state.
func currentIndex(ctx context.Context, tx repository.CompletionTx, userID string, task *domain.Task) (domain.Index, error) {
	records, err := tx.ListForTask(ctx, userID, task.ID)
	if err != nil {
		return nil, err
	}
	if !task.IsGroupTask {
		return domain.NewIndex(records), nil
	}
	shared, err := tx.ListShared(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	idx := make(domain.Index, len(shared)+1)
	for _, rec := range records {
		if rec.SubtaskID == "" {
			idx[rec.Key()] = rec
		}
	}
	for _, st := range shared {
		rec := st.Record(userID)
		idx[rec.Key()] = rec
	}
	return idx, nil
}

type planner func(tx repository.CompletionTx, now time.Time) (Plan, domain.Index, error)

// run applies the plan inside one unit of work and retries exactly once on a conflict. Every
// write of the cascade, including the history entry, commits together.
func (e *Engine) run(ctx context.Context, scope repository.Scope, plan planner, userID string, task *domain.Task) (Result, error) {
	log := logger.WithRequestID(ctx, e.logger).With(zap.String("user_id", userID), zap.String("task_id", task.ID))

	var result Result
	apply := func(tx repository.CompletionTx) error {
		result = Result{}
		now := e.now()
		p, current, err := plan(tx, now)
		if err != nil {
			return err
		}
		if err := tx.Upsert(ctx, p.Records...); err != nil {
			return err
		}
		if err := tx.UpsertShared(ctx, p.Shared...); err != nil {
			return err
		}
		if p.FullyCompleted {
			archived, err := e.archiver.Archive(ctx, tx, userID, task, now)
			if err != nil {
				return err
			}
			result.Archived = archived
		}
		result.FullyCompleted = p.FullyCompleted
		result.SharedChanged = len(p.Shared) > 0
		next := p.Apply(current)
		result.State = next.Derive(task)
		result.Records = next.Records()
		return nil
	}

	err := e.store.Atomic(ctx, scope, apply)
	if domain.IsDomainError(err, domain.ErrCodeConflict) {
		log.Warn("cascade conflict, retrying once", zap.Error(err))
		err = e.store.Atomic(ctx, scope, apply)
	}
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeConflict) {
			return Result{}, err
		}
		return Result{}, domain.WrapError(domain.ErrCodeInternal, "applying completion cascade", err)
	}

	if result.FullyCompleted {
		log.Info("task fully completed", zap.Bool("archived", result.Archived))
	}
	return result, nil
}
