package http

import (
	"net/http"
	"time"

	"adstream/internal/core/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusHandler exposes the read-only operational surface of a
// running relay: health, the current session table and metrics.
type StatusHandler struct {
	registry *services.Registry
	gatherer prometheus.Gatherer
	started  time.Time
}

func NewStatusHandler(registry *services.Registry, gatherer prometheus.Gatherer) *StatusHandler {
	return &StatusHandler{
		registry: registry,
		gatherer: gatherer,
		started:  time.Now(),
	}
}

func (h *StatusHandler) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.Health)
	api := router.Group("/api/v1")
	{
		api.GET("/sessions", h.ListSessions)
		api.GET("/status", h.Status)
	}
	if h.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}
}

func (h *StatusHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type sessionResponse struct {
	LinkID     string    `json:"link_id"`
	Remote     string    `json:"remote"`
	CreatedAt  time.Time `json:"created_at"`
	LastPongAt time.Time `json:"last_pong_at"`
	BytesSent  uint64    `json:"bytes_sent"`
}

func (h *StatusHandler) ListSessions(c *gin.Context) {
	sessions := h.registry.Sessions()
	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionResponse{
			LinkID:     string(s.LinkID),
			Remote:     string(s.Remote),
			CreatedAt:  s.CreatedAt,
			LastPongAt: s.LastPongAt,
			BytesSent:  s.BytesSent,
		})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out, "count": len(out)})
}

func (h *StatusHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sessions":        h.registry.Count(),
		"encoder_running": h.registry.EncoderRunning(),
		"uptime_seconds":  int64(time.Since(h.started).Seconds()),
	})
}
