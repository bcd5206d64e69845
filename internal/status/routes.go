package status

import (
	"gifts_radar/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// SetupRouter регистрирует маршруты статуса. /health и /metrics открыты,
// остальное требует токен, если он задан.
func SetupRouter(h *Handler, token string, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	private := r.Group("/", middleware.AuthRequired(token))
	private.GET("/status", h.Status)
	private.GET("/notifications", h.Notifications)

	log.Info().Msg("[STATUS] маршруты: GET /health, GET /metrics, GET /status, GET /notifications")
	return r
}
