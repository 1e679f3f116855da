package api

import (
	"net/http"
	"time"

	"github.com/Han1236/syuka-insight/internal/api/respond"
)

// ServiceHealth reports the aggregated dependency state.
type ServiceHealth interface {
	IsHealthy() bool
	Unhealthy() []string
}

// HealthHandler serves GET /api/health.
type HealthHandler struct {
	health ServiceHealth
}

func NewHealthHandler(h ServiceHealth) *HealthHandler { return &HealthHandler{health: h} }

// CheckHealth always answers 200; the body carries healthy or unhealthy.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if h.health != nil && !h.health.IsHealthy() {
		resp["status"] = "unhealthy"
		if down := h.health.Unhealthy(); len(down) > 0 {
			resp["unhealthy"] = down
		}
	}
	respond.WriteJSON(w, http.StatusOK, resp)
}
