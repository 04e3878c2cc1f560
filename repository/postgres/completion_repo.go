package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/classtrack/domain"
	"github.com/fastygo/classtrack/repository"
)

type completionRepository struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewCompletionRepository returns the Postgres status store. lockTimeout bounds the wait for a
// contended (user, task) lock before the unit of work fails with a conflict.
func NewCompletionRepository(pool *pgxpool.Pool, lockTimeout time.Duration) repository.CompletionRepository {
	if lockTimeout <= 0 {
		lockTimeout = 3 * time.Second
	}
	return &completionRepository{pool: pool, lockTimeout: lockTimeout}
}

func (r *completionRepository) ListForTask(ctx context.Context, userID, taskID string) ([]domain.CompletionRecord, error) {
	return listForTask(ctx, r.pool, userID, taskID)
}

func (r *completionRepository) ListShared(ctx context.Context, taskID string) ([]domain.SharedState, error) {
	return listShared(ctx, r.pool, taskID)
}

func (r *completionRepository) ListTaskLevel(ctx context.Context, userID string, taskIDs []string) ([]domain.CompletionRecord, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}
	const query = `
	SELECT user_id, task_id, subtask_id, is_completed, updated_at
	FROM completion_records
	WHERE user_id = $1 AND subtask_id = '' AND task_id = ANY($2)
	`
	rows, err := r.pool.Query(ctx, query, userID, taskIDs)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

func (r *completionRepository) CountExpired(ctx context.Context, cutoff time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM completion_records WHERE is_completed AND updated_at <= $1`
	var count int
	if err := r.pool.QueryRow(ctx, query, cutoff).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *completionRepository) Atomic(ctx context.Context, scope repository.Scope, fn func(tx repository.CompletionTx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())); err != nil {
		return classify(err)
	}
	// scope is sorted, so concurrent units always lock in the same order.
	for _, key := range scope {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			return classify(err)
		}
	}

	if err := fn(&completionTx{tx: tx}); err != nil {
		return classify(err)
	}
	return classify(tx.Commit(ctx))
}

type completionTx struct {
	tx pgx.Tx
}

func (t *completionTx) ListForTask(ctx context.Context, userID, taskID string) ([]domain.CompletionRecord, error) {
	return listForTask(ctx, t.tx, userID, taskID)
}

func (t *completionTx) ListShared(ctx context.Context, taskID string) ([]domain.SharedState, error) {
	return listShared(ctx, t.tx, taskID)
}

func (t *completionTx) Upsert(ctx context.Context, records ...domain.CompletionRecord) error {
	const query = `
	INSERT INTO completion_records (user_id, task_id, subtask_id, is_completed, updated_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (user_id, task_id, subtask_id) DO UPDATE
	SET is_completed = EXCLUDED.is_completed,
		updated_at = EXCLUDED.updated_at
	`
	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(query, rec.UserID, rec.TaskID, rec.SubtaskID, rec.IsCompleted, rec.UpdatedAt)
	}
	return t.sendBatch(ctx, batch)
}

func (t *completionTx) UpsertShared(ctx context.Context, states ...domain.SharedState) error {
	const query = `
	INSERT INTO group_subtask_states (task_id, subtask_id, is_completed, updated_by, updated_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (task_id, subtask_id) DO UPDATE
	SET is_completed = EXCLUDED.is_completed,
		updated_by = EXCLUDED.updated_by,
		updated_at = EXCLUDED.updated_at
	`
	batch := &pgx.Batch{}
	for _, st := range states {
		batch.Queue(query, st.TaskID, st.SubtaskID, st.IsCompleted, st.UpdatedBy, st.UpdatedAt)
	}
	return t.sendBatch(ctx, batch)
}

func (t *completionTx) InsertHistoryIfAbsent(ctx context.Context, entry domain.HistoryEntry) (bool, error) {
	const query = `
	INSERT INTO history_entries (id, user_id, task_id, title, completed_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (user_id, task_id) DO NOTHING
	`
	tag, err := t.tx.Exec(ctx, query, entry.ID, entry.UserID, entry.TaskID, entry.Title, entry.CompletedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *completionTx) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	results := t.tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return err
		}
	}
	return results.Close()
}

func listForTask(ctx context.Context, q querier, userID, taskID string) ([]domain.CompletionRecord, error) {
	const query = `
	SELECT user_id, task_id, subtask_id, is_completed, updated_at
	FROM completion_records
	WHERE user_id = $1 AND task_id = $2
	ORDER BY subtask_id
	`
	rows, err := q.Query(ctx, query, userID, taskID)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

func listShared(ctx context.Context, q querier, taskID string) ([]domain.SharedState, error) {
	const query = `
	SELECT task_id, subtask_id, is_completed, updated_by, updated_at
	FROM group_subtask_states
	WHERE task_id = $1
	ORDER BY subtask_id
	`
	rows, err := q.Query(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []domain.SharedState
	for rows.Next() {
		var st domain.SharedState
		if err := rows.Scan(&st.TaskID, &st.SubtaskID, &st.IsCompleted, &st.UpdatedBy, &st.UpdatedAt); err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

func collectRecords(rows pgx.Rows) ([]domain.CompletionRecord, error) {
	defer rows.Close()

	var records []domain.CompletionRecord
	for rows.Next() {
		var rec domain.CompletionRecord
		if err := rows.Scan(&rec.UserID, &rec.TaskID, &rec.SubtaskID, &rec.IsCompleted, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
