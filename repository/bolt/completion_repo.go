package bolt

import (
	"context"
	"encoding/json"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/fastygo/classtrack/domain"
	"github.com/fastygo/classtrack/repository"
)

type completionRepository struct {
	db *bbolt.DB
}

// NewCompletionRepository returns a bbolt-backed status store. Bolt allows a single writer at a
// time, so every unit of work is serialized regardless of its scope.
func NewCompletionRepository(db *bbolt.DB) repository.CompletionRepository {
	return &completionRepository{db: db}
}

func (r *completionRepository) ListForTask(ctx context.Context, userID, taskID string) ([]domain.CompletionRecord, error) {
	var records []domain.CompletionRecord
	err := r.db.View(func(tx *bbolt.Tx) error {
		var err error
		records, err = (&completionTx{tx: tx}).ListForTask(ctx, userID, taskID)
		return err
	})
	return records, err
}

func (r *completionRepository) ListShared(ctx context.Context, taskID string) ([]domain.SharedState, error) {
	var states []domain.SharedState
	err := r.db.View(func(tx *bbolt.Tx) error {
		var err error
		states, err = (&completionTx{tx: tx}).ListShared(ctx, taskID)
		return err
	})
	return states, err
}

func (r *completionRepository) ListTaskLevel(ctx context.Context, userID string, taskIDs []string) ([]domain.CompletionRecord, error) {
	var records []domain.CompletionRecord
	err := r.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketCompletions))
		for _, taskID := range taskIDs {
			v := b.Get(completionKey(userID, taskID, ""))
			if v == nil {
				continue
			}
			var rec domain.CompletionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	return records, err
}

func (r *completionRepository) CountExpired(ctx context.Context, cutoff time.Time) (int, error) {
	var count int
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(BucketCompletions)).ForEach(func(_, v []byte) error {
			var rec domain.CompletionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if rec.IsCompleted && !rec.UpdatedAt.After(cutoff) {
				count++
			}
			return nil
		})
	})
	return count, err
}

func (r *completionRepository) Atomic(ctx context.Context, scope repository.Scope, fn func(tx repository.CompletionTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		return fn(&completionTx{tx: tx})
	})
}

type completionTx struct {
	tx *bbolt.Tx
}

func (t *completionTx) ListForTask(ctx context.Context, userID, taskID string) ([]domain.CompletionRecord, error) {
	return scanPrefix[domain.CompletionRecord](t.tx.Bucket([]byte(BucketCompletions)), completionPrefix(userID, taskID))
}

func (t *completionTx) ListShared(ctx context.Context, taskID string) ([]domain.SharedState, error) {
	return scanPrefix[domain.SharedState](t.tx.Bucket([]byte(BucketShared)), sharedPrefix(taskID))
}

func (t *completionTx) Upsert(ctx context.Context, records ...domain.CompletionRecord) error {
	b := t.tx.Bucket([]byte(BucketCompletions))
	for _, rec := range records {
		if err := put(b, completionKey(rec.UserID, rec.TaskID, rec.SubtaskID), rec); err != nil {
			return err
		}
	}
	return nil
}

func (t *completionTx) UpsertShared(ctx context.Context, states ...domain.SharedState) error {
	b := t.tx.Bucket([]byte(BucketShared))
	for _, st := range states {
		if err := put(b, sharedKey(st.TaskID, st.SubtaskID), st); err != nil {
			return err
		}
	}
	return nil
}

func (t *completionTx) InsertHistoryIfAbsent(ctx context.Context, entry domain.HistoryEntry) (bool, error) {
	b := t.tx.Bucket([]byte(BucketHistory))
	key := historyKey(entry.UserID, entry.TaskID)
	if b.Get(key) != nil {
		return false, nil
	}
	if err := put(b, key, entry); err != nil {
		return false, err
	}
	return true, nil
}
