package health

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cch137/webrtc-demo-2025-11/internal/infrastructure/json"
)

type Handler struct {
	startTime time.Time
	healthy   atomic.Bool
}

func NewHandler() *Handler {
	h := &Handler{startTime: time.Now()}
	h.healthy.Store(true)
	return h
}

// SetHealthy flips the reported status, e.g. to unhealthy while draining.
func (h *Handler) SetHealthy(ok bool) {
	h.healthy.Store(ok)
}

// GetHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the relay, including uptime and current timestamp
// @Tags         health
// @Produce      json
// @Success      200 {object} healthResponse "Service is healthy"
// @Failure      503 {object} healthResponse "Service is unhealthy"
// @Router       /health [get]
// @Router       /healthz [get]
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}

	if !h.healthy.Load() {
		resp.Status = "unhealthy"
		_ = json.Write(w, http.StatusServiceUnavailable, resp)
		return
	}

	_ = json.Write(w, http.StatusOK, resp)
}
