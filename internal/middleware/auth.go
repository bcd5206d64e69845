package middleware

import (
	"crypto/subtle"
	"net/http"

	"gifts_radar/internal/httputil"

	"github.com/gin-gonic/gin"
)

// AuthRequired проверяет Bearer-токен. Пустой token отключает проверку.
func AuthRequired(token string) gin.HandlerFunc {
	expected := []byte("Bearer " + token)
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got := []byte(c.GetHeader("Authorization"))
		if subtle.ConstantTimeCompare(got, expected) != 1 {
			httputil.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		c.Next()
	}
}
