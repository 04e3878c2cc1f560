package status

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/classtrack/domain"
	"github.com/fastygo/classtrack/pkg/logger"
	"github.com/fastygo/classtrack/repository"
	"github.com/fastygo/classtrack/usecase/cascade"
)

// ProgressInvalidator drops cached group progress after a shared state change.
type ProgressInvalidator interface {
	Invalidate(ctx context.Context, taskID string)
}

type UseCase struct {
	catalog  repository.CatalogRepository
	store    repository.CompletionRepository
	engine   *cascade.Engine
	progress ProgressInvalidator
	now      func() time.Time
	logger   *zap.Logger
}

func New(
	catalog repository.CatalogRepository,
	store repository.CompletionRepository,
	engine *cascade.Engine,
	progress ProgressInvalidator,
	now func() time.Time,
	logger *zap.Logger,
) *UseCase {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		catalog:  catalog,
		store:    store,
		engine:   engine,
		progress: progress,
		now:      now,
		logger:   logger,
	}
}

// GetStatuses returns the caller's task-level record (if any) followed by the subtask records.
// Group tasks report the shared subtask state instead of per-user subtask records.
func (uc *UseCase) GetStatuses(ctx context.Context, principal domain.Principal, taskID string) ([]domain.CompletionRecord, error) {
	task, err := uc.authorizedTask(ctx, principal, taskID)
	if err != nil {
		return nil, err
	}

	records, err := uc.store.ListForTask(ctx, principal.UserID, task.ID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "listing statuses", err)
	}

	if task.IsGroupTask {
		shared, err := uc.store.ListShared(ctx, task.ID)
		if err != nil {
			return nil, domain.WrapError(domain.ErrCodeInternal, "listing shared statuses", err)
		}
		own := records[:0]
		for _, rec := range records {
			if rec.SubtaskID == "" {
				own = append(own, rec)
			}
		}
		records = own
		for _, st := range shared {
			records = append(records, st.Record(principal.UserID))
		}
	}

	sortRecords(task, records)
	return records, nil
}

func (uc *UseCase) ToggleTask(ctx context.Context, principal domain.Principal, taskID string, completed bool) (cascade.Result, error) {
	task, err := uc.authorizedTask(ctx, principal, taskID)
	if err != nil {
		return cascade.Result{}, err
	}

	logger.WithRequestID(ctx, uc.logger).Debug("toggle task",
		zap.String("user_id", principal.UserID),
		zap.String("task_id", task.ID),
		zap.Bool("completed", completed))

	return uc.engine.ToggleTask(ctx, principal.UserID, task, completed)
}

func (uc *UseCase) ToggleSubtask(ctx context.Context, principal domain.Principal, taskID, subtaskID string, completed bool) (cascade.Result, error) {
	task, err := uc.authorizedTask(ctx, principal, taskID)
	if err != nil {
		return cascade.Result{}, err
	}
	if !task.HasSubtask(subtaskID) {
		return cascade.Result{}, domain.ErrSubtaskNotFound
	}
	if task.IsGroupTask && !task.CanToggleShared(principal.UserID) {
		return cascade.Result{}, domain.ErrNotGroupMember
	}

	logger.WithRequestID(ctx, uc.logger).Debug("toggle subtask",
		zap.String("user_id", principal.UserID),
		zap.String("task_id", task.ID),
		zap.String("subtask_id", subtaskID),
		zap.Bool("completed", completed))

	result, err := uc.engine.ToggleSubtask(ctx, principal.UserID, task, subtaskID, completed)
	if err != nil {
		return cascade.Result{}, err
	}
	if result.SharedChanged && uc.progress != nil {
		uc.progress.Invalidate(ctx, task.ID)
	}
	return result, nil
}

// UncompletedCount counts the tasks of the caller's classes without a completed task-level record.
func (uc *UseCase) UncompletedCount(ctx context.Context, principal domain.Principal) (int, error) {
	tasks, completed, err := uc.classTasks(ctx, principal)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, task := range tasks {
		if !completed.IsCompleted(domain.TaskKey(task.ID)) {
			count++
		}
	}
	return count, nil
}

// OverdueTasks lists uncompleted tasks past their deadline, most overdue first.
func (uc *UseCase) OverdueTasks(ctx context.Context, principal domain.Principal) ([]domain.OverdueTask, error) {
	tasks, completed, err := uc.classTasks(ctx, principal)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	overdue := make([]domain.OverdueTask, 0)
	for i := range tasks {
		task := &tasks[i]
		if !task.IsOverdue(now) || completed.IsCompleted(domain.TaskKey(task.ID)) {
			continue
		}
		overdue = append(overdue, domain.OverdueTask{
			TaskID:      task.ID,
			Title:       task.Title,
			DaysOverdue: domain.DaysOverdue(*task.Deadline, now),
		})
	}

	sort.SliceStable(overdue, func(i, j int) bool {
		if overdue[i].DaysOverdue != overdue[j].DaysOverdue {
			return overdue[i].DaysOverdue > overdue[j].DaysOverdue
		}
		return overdue[i].Title < overdue[j].Title
	})
	return overdue, nil
}

func (uc *UseCase) classTasks(ctx context.Context, principal domain.Principal) ([]domain.Task, domain.Index, error) {
	if principal.UserID == "" {
		return nil, nil, domain.ErrUnauthorized
	}
	tasks, err := uc.catalog.ListByClasses(ctx, principal.ClassIDs)
	if err != nil {
		return nil, nil, domain.WrapError(domain.ErrCodeInternal, "listing class tasks", err)
	}

	ids := make([]string, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	records, err := uc.store.ListTaskLevel(ctx, principal.UserID, ids)
	if err != nil {
		return nil, nil, domain.WrapError(domain.ErrCodeInternal, "listing task statuses", err)
	}
	return tasks, domain.NewIndex(records), nil
}

func (uc *UseCase) authorizedTask(ctx context.Context, principal domain.Principal, taskID string) (*domain.Task, error) {
	if principal.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	task, err := uc.catalog.GetTask(ctx, taskID)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrCodeInternal, "loading task", err)
	}
	if err := principal.Authorize(task); err != nil {
		return nil, err
	}
	return task, nil
}

// sortRecords puts the task-level record first and subtasks in catalog order.
func sortRecords(task *domain.Task, records []domain.CompletionRecord) {
	position := make(map[string]int, len(task.SubtaskIDs))
	for i, id := range task.SubtaskIDs {
		position[id] = i + 1
	}
	rank := func(rec domain.CompletionRecord) int {
		if rec.SubtaskID == "" {
			return 0
		}
		if p, ok := position[rec.SubtaskID]; ok {
			return p
		}
		return len(task.SubtaskIDs) + 1
	}
	sort.SliceStable(records, func(i, j int) bool {
		ri, rj := rank(records[i]), rank(records[j])
		if ri != rj {
			return ri < rj
		}
		return records[i].SubtaskID < records[j].SubtaskID
	})
}
