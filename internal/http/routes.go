package http

import (
	"earningbot/internal/http/handlers"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes wires the health and metrics endpoints. This server
// carries no user traffic; it exists for probes, the keep-alive ping
// and scraping.
func RegisterRoutes(r *gin.Engine, health *handlers.HealthHandler) {
	r.GET("/health", health.Liveness)
	r.GET("/health/ready", health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
