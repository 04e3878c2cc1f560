package bolt

import (
	"context"
	"sort"

	bbolt "go.etcd.io/bbolt"

	"github.com/fastygo/classtrack/domain"
	"github.com/fastygo/classtrack/repository"
)

type historyRepository struct {
	db *bbolt.DB
}

func NewHistoryRepository(db *bbolt.DB) repository.HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	var entries []domain.HistoryEntry
	err := r.db.View(func(tx *bbolt.Tx) error {
		var err error
		entries, err = scanPrefix[domain.HistoryEntry](tx.Bucket([]byte(BucketHistory)), historyPrefix(userID))
		return err
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CompletedAt.Equal(entries[j].CompletedAt) {
			return entries[i].CompletedAt.After(entries[j].CompletedAt)
		}
		return entries[i].ID < entries[j].ID
	})
	if limit <= 0 || limit > repository.MaxHistoryLimit {
		limit = repository.MaxHistoryLimit
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
