package repository

import (
	"context"
	"sort"
	"time"

	"github.com/fastygo/classtrack/domain"
)

// CompletionReader exposes the read side of the status store.
type CompletionReader interface {
	ListForTask(ctx context.Context, userID, taskID string) ([]domain.CompletionRecord, error)
	ListShared(ctx context.Context, taskID string) ([]domain.SharedState, error)
}

// CompletionTx is a unit of work holding the locks of its scope. Every write made through it is
// committed together or not at all.
type CompletionTx interface {
	CompletionReader
	Upsert(ctx context.Context, records ...domain.CompletionRecord) error
	UpsertShared(ctx context.Context, states ...domain.SharedState) error
	// InsertHistoryIfAbsent stores the entry unless (user, task) already has one.
	InsertHistoryIfAbsent(ctx context.Context, entry domain.HistoryEntry) (bool, error)
}

// CompletionRepository is the authoritative store of completion records.
type CompletionRepository interface {
	CompletionReader
	// ListTaskLevel returns the task-level records of the user for the given tasks.
	ListTaskLevel(ctx context.Context, userID string, taskIDs []string) ([]domain.CompletionRecord, error)
	// CountExpired counts completed records last updated at or before cutoff.
	CountExpired(ctx context.Context, cutoff time.Time) (int, error)
	// Atomic runs fn while holding every scope key. Returning an error rolls back all writes.
	Atomic(ctx context.Context, scope Scope, fn func(tx CompletionTx) error) error
}

// Scope lists the lock keys of a unit of work.
type Scope []string

func UserScope(userID, taskID string) string {
	return "user:" + userID + ":task:" + taskID
}

func SharedScope(taskID string) string {
	return "shared:task:" + taskID
}

// NewScope returns the keys de-duplicated and sorted so that locks are always taken in the same order.
func NewScope(keys ...string) Scope {
	seen := make(map[string]struct{}, len(keys))
	scope := make(Scope, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok || k == "" {
			continue
		}
		seen[k] = struct{}{}
		scope = append(scope, k)
	}
	sort.Strings(scope)
	return scope
}
