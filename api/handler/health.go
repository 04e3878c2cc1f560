package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/classtrack/api/transport"
	"github.com/fastygo/classtrack/internal/infrastructure/monitor"
	"github.com/fastygo/classtrack/internal/services"
	"github.com/fastygo/classtrack/pkg/httpcontext"
)

type HealthHandler struct {
	baseHandler
	monitor *monitor.Monitor
	scanner *services.ExpiryScanner
}

func NewHealthHandler(mon *monitor.Monitor, scanner *services.ExpiryScanner, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		monitor:     mon,
		scanner:     scanner,
	}
}

// @Summary Health check
// @Tags health
// @Router /health [get]
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	status := h.monitor.GetStatus()
	payload := map[string]interface{}{
		"timestamp":  time.Now().UTC(),
		"services":   status.Services,
		"last_check": status.LastCheck,
		"expiry":     h.scanner.Stats(),
	}

	if status.Healthy() {
		h.respondSuccess(ctx, http.StatusOK, payload)
		return
	}
	degraded := transport.NewError("DEGRADED", "dependencies unhealthy")
	degraded.Data = payload
	h.respondJSON(ctx, http.StatusServiceUnavailable, degraded)
}
