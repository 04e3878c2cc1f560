package progress

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fastygo/classtrack/domain"
	"github.com/fastygo/classtrack/pkg/logger"
	"github.com/fastygo/classtrack/repository"
)

// UseCase aggregates the shared completion of group tasks. The projection is the same for
// every class member and independent of their own completion records.
type UseCase struct {
	catalog repository.CatalogRepository
	store   repository.CompletionReader
	cache   repository.ProgressCache
	group   singleflight.Group
	logger  *zap.Logger
}

// New builds the aggregator. cache may be nil to always read through.
func New(catalog repository.CatalogRepository, store repository.CompletionReader, cache repository.ProgressCache, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		catalog: catalog,
		store:   store,
		cache:   cache,
		logger:  logger,
	}
}

func (uc *UseCase) GetGroupProgress(ctx context.Context, principal domain.Principal, taskID string) (domain.GroupProgress, error) {
	if principal.UserID == "" {
		return domain.GroupProgress{}, domain.ErrUnauthorized
	}
	task, err := uc.catalog.GetTask(ctx, taskID)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return domain.GroupProgress{}, err
		}
		return domain.GroupProgress{}, domain.WrapError(domain.ErrCodeInternal, "loading task", err)
	}
	if err := principal.Authorize(task); err != nil {
		return domain.GroupProgress{}, err
	}
	if !task.IsGroupTask {
		return domain.GroupProgress{}, domain.ErrNotGroupTask
	}

	log := logger.WithRequestID(ctx, uc.logger)
	if uc.cache != nil {
		cached, ok, err := uc.cache.Get(ctx, task.ID)
		if err != nil {
			log.Warn("progress cache read failed", zap.String("task_id", task.ID), zap.Error(err))
		} else if ok {
			return *cached, nil
		}
	}

	v, err, _ := uc.group.Do(task.ID, func() (interface{}, error) {
		states, err := uc.store.ListShared(ctx, task.ID)
		if err != nil {
			return nil, err
		}
		progress := domain.ComputeGroupProgress(task, states)
		if uc.cache != nil {
			if err := uc.cache.Set(ctx, task.ID, progress); err != nil {
				log.Warn("progress cache write failed", zap.String("task_id", task.ID), zap.Error(err))
			}
		}
		return progress, nil
	})
	if err != nil {
		return domain.GroupProgress{}, domain.WrapError(domain.ErrCodeInternal, "computing group progress", err)
	}
	return v.(domain.GroupProgress), nil
}

// Invalidate drops the cached projection of a task. Failures only delay freshness until the
// cache entry expires, so they are logged and swallowed.
func (uc *UseCase) Invalidate(ctx context.Context, taskID string) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.Invalidate(ctx, taskID); err != nil {
		logger.WithRequestID(ctx, uc.logger).Warn("progress cache invalidation failed",
			zap.String("task_id", taskID), zap.Error(err))
	}
}
