package testutil

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/fastygo/classtrack/domain"
	"github.com/fastygo/classtrack/internal/infrastructure/boltdb"
	"github.com/fastygo/classtrack/repository"
	boltRepo "github.com/fastygo/classtrack/repository/bolt"
)

// Store bundles the bolt repositories over one database file.
type Store struct {
	DB          *bbolt.DB
	Catalog     *boltRepo.CatalogRepository
	Completions repository.CompletionRepository
	History     repository.HistoryRepository
}

// NewTestStore opens a bolt store in a temporary directory and seeds the catalog with tasks.
// It automatically closes the store when the test completes.
func NewTestStore(t testing.TB, tasks ...domain.Task) *Store {
	t.Helper()

	db, err := boltdb.Open(filepath.Join(t.TempDir(), "classtrack.db"), boltRepo.Buckets...)
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	s := &Store{
		DB:          db,
		Catalog:     boltRepo.NewCatalogRepository(db),
		Completions: boltRepo.NewCompletionRepository(db),
		History:     boltRepo.NewHistoryRepository(db),
	}
	if len(tasks) > 0 {
		if err := s.Catalog.Import(context.Background(), tasks...); err != nil {
			t.Fatalf("seeding catalog: %v", err)
		}
	}
	return s
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Task builds a class task with the given subtasks.
func Task(id, classID, title string, subtaskIDs ...string) domain.Task {
	return domain.Task{
		ID:         id,
		AuthorID:   "author",
		ClassID:    classID,
		Title:      title,
		CreatedAt:  time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC),
		Date:       time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC),
		SubtaskIDs: subtaskIDs,
	}
}
