package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/classtrack/domain"
	"github.com/fastygo/classtrack/repository"
)

type catalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository reads the task catalog tables shared with the catalog service.
func NewCatalogRepository(pool *pgxpool.Pool) repository.CatalogRepository {
	return &catalogRepository{pool: pool}
}

const taskColumns = `
	t.id, t.author_id, t.class_id, t.title, t.created_at, t.date, t.deadline, t.is_group_task,
	COALESCE((SELECT array_agg(m.user_id ORDER BY m.user_id) FROM task_members m WHERE m.task_id = t.id), '{}') AS member_ids,
	COALESCE((SELECT array_agg(s.id ORDER BY s.created_at, s.id) FROM subtasks s WHERE s.task_id = t.id), '{}') AS subtask_ids
`

func (r *catalogRepository) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.id = $1`
	return scanTask(r.pool.QueryRow(ctx, query, id))
}

func (r *catalogRepository) ListByClasses(ctx context.Context, classIDs []string) ([]domain.Task, error) {
	if len(classIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.class_id = ANY($1) ORDER BY t.date, t.created_at, t.id`
	rows, err := r.pool.Query(ctx, query, classIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func scanTask(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Task, error) {
	var task domain.Task
	var deadline *time.Time

	if err := row.Scan(
		&task.ID,
		&task.AuthorID,
		&task.ClassID,
		&task.Title,
		&task.CreatedAt,
		&task.Date,
		&deadline,
		&task.IsGroupTask,
		&task.MemberIDs,
		&task.SubtaskIDs,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}

	task.Deadline = deadline
	return &task, nil
}
