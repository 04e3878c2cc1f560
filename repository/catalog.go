package repository

import (
	"context"

	"github.com/fastygo/classtrack/domain"
)

// CatalogRepository reads task identity and membership from the task catalog.
// Task content is owned by the catalog; the completion engine never writes it.
type CatalogRepository interface {
	GetTask(ctx context.Context, id string) (*domain.Task, error)
	ListByClasses(ctx context.Context, classIDs []string) ([]domain.Task, error)
}
