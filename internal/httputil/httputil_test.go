package httputil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRespondErrorHidesCause(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	next := false
	r.GET("/x", func(c *gin.Context) {
		RespondError(c, http.StatusInternalServerError, "не удалось получить sos", errors.New("pq: connection refused"))
	}, func(c *gin.Context) { next = true })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"не удалось получить sos"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "pq:")
	assert.False(t, next, "цепочка должна прерываться")
}
