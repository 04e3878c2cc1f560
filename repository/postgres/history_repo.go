package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/classtrack/domain"
	"github.com/fastygo/classtrack/repository"
)

type historyRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository creates the read side of the completion history log. Entries are only
// ever inserted by the cascade unit of work.
func NewHistoryRepository(pool *pgxpool.Pool) repository.HistoryRepository {
	return &historyRepository{pool: pool}
}

func (r *historyRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	const query = `
	SELECT id, user_id, task_id, title, completed_at
	FROM history_entries
	WHERE user_id = $1
	ORDER BY completed_at DESC, id
	LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, userID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var entry domain.HistoryEntry
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.TaskID, &entry.Title, &entry.CompletedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
