package status

import (
	"context"
	"net/http"

	"gifts_radar/internal/httputil"
	"gifts_radar/internal/radar"
	"gifts_radar/models"

	"github.com/gin-gonic/gin"
)

const recentSosLimit = 20

// PassSource отдаёт снимок последнего прохода радара.
type PassSource interface {
	Status() (radar.PassStatus, int)
}

// Store — чтение данных для страницы статуса.
type Store interface {
	ListNotifications(ctx context.Context) ([]models.StarGiftNotification, error)
	RecentSos(ctx context.Context, limit int) ([]models.Sos, error)
}

// Handler обслуживает страницу статуса радара.
type Handler struct {
	Radar PassSource
	Store Store
}

func NewHandler(r PassSource, store Store) *Handler {
	return &Handler{Radar: r, Store: store}
}

// Health сообщает, что процесс жив.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status возвращает итог последнего прохода и последние критичные события.
func (h *Handler) Status(c *gin.Context) {
	last, passes := h.Radar.Status()
	sos, err := h.Store.RecentSos(c.Request.Context(), recentSosLimit)
	if err != nil {
		httputil.RespondError(c, http.StatusInternalServerError, "не удалось получить sos", err)
		return
	}
	resp := gin.H{"passes": passes, "sos": sos}
	if passes > 0 {
		resp["last_pass"] = last
	}
	c.JSON(http.StatusOK, resp)
}

// Notifications возвращает все сохранённые пары сообщений.
func (h *Handler) Notifications(c *gin.Context) {
	list, err := h.Store.ListNotifications(c.Request.Context())
	if err != nil {
		httputil.RespondError(c, http.StatusInternalServerError, "не удалось получить уведомления", err)
		return
	}
	if list == nil {
		list = []models.StarGiftNotification{}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(list), "notifications": list})
}
