package handler

import (
	"context"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/classtrack/api/transport"
	"github.com/fastygo/classtrack/domain"
	"github.com/fastygo/classtrack/pkg/httpcontext"
	"github.com/fastygo/classtrack/usecase/cascade"
	statusUC "github.com/fastygo/classtrack/usecase/status"
)

type StatusHandler struct {
	baseHandler
	uc  *statusUC.UseCase
	ttl domain.TTL
}

func NewStatusHandler(uc *statusUC.UseCase, ttl domain.TTL, adapter *httpcontext.Adapter, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
		ttl:         ttl,
	}
}

// @Summary Completion statuses of a task for the caller
// @Tags statuses
// @Router /api/v1/tasks/{id}/statuses [get]
func (h *StatusHandler) GetStatuses(ctx *fasthttp.RequestCtx) {
	principal, ok := h.principal(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	records, err := h.uc.GetStatuses(stdCtx, principal, pathParam(ctx, "id"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.NewStatusViews(records, h.ttl))
}

// @Summary Toggle a task for the caller
// @Tags statuses
// @Router /api/v1/tasks/{id}/status [put]
func (h *StatusHandler) ToggleTask(ctx *fasthttp.RequestCtx) {
	principal, ok := h.principal(ctx)
	if !ok {
		return
	}
	completed, ok := h.decodeToggle(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	taskID := pathParam(ctx, "id")
	result, err := h.uc.ToggleTask(stdCtx, principal, taskID, completed)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondToggle(stdCtx, ctx, principal, taskID, result)
}

// @Summary Toggle a subtask for the caller
// @Tags statuses
// @Router /api/v1/tasks/{id}/subtasks/{subtaskId}/status [put]
func (h *StatusHandler) ToggleSubtask(ctx *fasthttp.RequestCtx) {
	principal, ok := h.principal(ctx)
	if !ok {
		return
	}
	completed, ok := h.decodeToggle(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	taskID := pathParam(ctx, "id")
	result, err := h.uc.ToggleSubtask(stdCtx, principal, taskID, pathParam(ctx, "subtaskId"), completed)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondToggle(stdCtx, ctx, principal, taskID, result)
}

// respondToggle answers with the statuses after the write so clients can adopt the server state.
// The toggle has committed at this point, so a failed re-read falls back to the records the
// toggle wrote.
func (h *StatusHandler) respondToggle(stdCtx context.Context, ctx *fasthttp.RequestCtx, principal domain.Principal, taskID string, result cascade.Result) {
	records, err := h.uc.GetStatuses(stdCtx, principal, taskID)
	if err != nil {
		h.log(stdCtx).Warn("reading statuses after toggle failed",
			zap.String("task_id", taskID),
			zap.Error(err))
		records = result.Records
	}
	h.respondSuccess(ctx, http.StatusOK, transport.ToggleView{
		State:          result.State,
		FullyCompleted: result.FullyCompleted,
		Archived:       result.Archived,
		Statuses:       transport.NewStatusViews(records, h.ttl),
	})
}

// @Summary Number of tasks the caller has not completed
// @Tags statuses
// @Router /api/v1/me/uncompleted-count [get]
func (h *StatusHandler) UncompletedCount(ctx *fasthttp.RequestCtx) {
	principal, ok := h.principal(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	count, err := h.uc.UncompletedCount(stdCtx, principal)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.CountView{Count: count})
}

// @Summary Overdue tasks of the caller
// @Tags statuses
// @Router /api/v1/me/overdue [get]
func (h *StatusHandler) OverdueTasks(ctx *fasthttp.RequestCtx) {
	principal, ok := h.principal(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	overdue, err := h.uc.OverdueTasks(stdCtx, principal)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, overdue)
}

func pathParam(ctx *fasthttp.RequestCtx, name string) string {
	v, _ := ctx.UserValue(name).(string)
	return v
}
