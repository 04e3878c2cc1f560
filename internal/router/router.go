package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/classtrack/api/handler"
)

type Handlers struct {
	Status   *apiHandler.StatusHandler
	Progress *apiHandler.ProgressHandler
	History  *apiHandler.HistoryHandler
	Health   *apiHandler.HealthHandler
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	if handlers.Health != nil {
		r.GET("/health", handlers.Health.Check)
	}

	// Per-task completion
	r.GET("/api/v1/tasks/{id}/statuses", authMiddleware(handlers.Status.GetStatuses))
	r.PUT("/api/v1/tasks/{id}/status", authMiddleware(handlers.Status.ToggleTask))
	r.PUT("/api/v1/tasks/{id}/subtasks/{subtaskId}/status", authMiddleware(handlers.Status.ToggleSubtask))
	r.GET("/api/v1/tasks/{id}/progress", authMiddleware(handlers.Progress.GetProgress))

	// Caller projections
	r.GET("/api/v1/me/uncompleted-count", authMiddleware(handlers.Status.UncompletedCount))
	r.GET("/api/v1/me/overdue", authMiddleware(handlers.Status.OverdueTasks))
	r.GET("/api/v1/me/history", authMiddleware(handlers.History.List))

	return r
}
