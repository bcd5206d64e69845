package httputil

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RespondError отвечает {"error": msg} и прерывает цепочку обработчиков.
// Причина err пишется только в лог: наружу уходит короткое сообщение.
func RespondError(c *gin.Context, status int, msg string, err error) {
	if err != nil {
		log.Error().Str("method", c.Request.Method).Str("path", c.FullPath()).
			Msgf("[STATUS] %s: %v", msg, err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
