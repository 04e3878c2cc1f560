package bolt

import (
	"context"
	"encoding/json"
	"slices"
	"sort"

	bbolt "go.etcd.io/bbolt"

	"github.com/fastygo/classtrack/domain"
)

// CatalogRepository keeps a local copy of the task catalog for single-node deployments.
type CatalogRepository struct {
	db *bbolt.DB
}

func NewCatalogRepository(db *bbolt.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	var task *domain.Task
	err := r.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(BucketTasks)).Get([]byte(id))
		if v == nil {
			return domain.ErrTaskNotFound
		}
		task = &domain.Task{}
		return json.Unmarshal(v, task)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (r *CatalogRepository) ListByClasses(ctx context.Context, classIDs []string) ([]domain.Task, error) {
	if len(classIDs) == 0 {
		return nil, nil
	}
	var tasks []domain.Task
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(BucketTasks)).ForEach(func(_, v []byte) error {
			var task domain.Task
			if err := json.Unmarshal(v, &task); err != nil {
				return err
			}
			if slices.Contains(classIDs, task.ClassID) {
				tasks = append(tasks, task)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].Date.Equal(tasks[j].Date) {
			return tasks[i].Date.Before(tasks[j].Date)
		}
		return tasks[i].ID < tasks[j].ID
	})
	return tasks, nil
}

// Import replaces the local copy of the given tasks with a catalog snapshot.
func (r *CatalogRepository) Import(ctx context.Context, tasks ...domain.Task) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketTasks))
		for _, task := range tasks {
			if task.ID == "" {
				return domain.ErrInvalidPayload
			}
			if err := put(b, []byte(task.ID), task); err != nil {
				return err
			}
		}
		return nil
	})
}
