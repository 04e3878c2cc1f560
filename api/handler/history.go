package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/classtrack/api/transport"
	"github.com/fastygo/classtrack/pkg/httpcontext"
	historyUC "github.com/fastygo/classtrack/usecase/history"
)

type HistoryHandler struct {
	baseHandler
	uc *historyUC.UseCase
}

func NewHistoryHandler(uc *historyUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Tasks the caller has completed, newest first
// @Tags history
// @Router /api/v1/me/history [get]
func (h *HistoryHandler) List(ctx *fasthttp.RequestCtx) {
	principal, ok := h.principal(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	entries, err := h.uc.List(stdCtx, principal)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.log(stdCtx).Debug("history listed", zap.Int("entries", len(entries)))
	h.respondSuccess(ctx, http.StatusOK, transport.NewHistoryViews(entries))
}
