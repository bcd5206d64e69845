package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gifts_radar/internal/metrics"
	"gifts_radar/internal/radar"
	"gifts_radar/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePasses struct {
	last   radar.PassStatus
	passes int
}

func (f fakePasses) Status() (radar.PassStatus, int) { return f.last, f.passes }

type fakeStore struct {
	list []models.StarGiftNotification
	sos  []models.Sos
	err  error
}

func (f fakeStore) ListNotifications(context.Context) ([]models.StarGiftNotification, error) {
	return f.list, f.err
}

func (f fakeStore) RecentSos(context.Context, int) ([]models.Sos, error) { return f.sos, f.err }

func newRouter(t *testing.T, store fakeStore, token string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.Passes.WithLabelValues("ok").Inc()
	passes := fakePasses{
		last:   radar.PassStatus{ID: "pass-1", Gifts: 3, StartedAt: time.Now(), Chats: map[string]radar.ChatSummary{"@a": {Created: 3}}},
		passes: 1,
	}
	return SetupRouter(NewHandler(passes, store), token, reg)
}

func do(r http.Handler, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthIsPublic(t *testing.T) {
	r := newRouter(t, fakeStore{}, "secret")
	w := do(r, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMetricsExposed(t *testing.T) {
	r := newRouter(t, fakeStore{}, "secret")
	w := do(r, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "gifts_radar_passes_total"))
}

func TestStatusRequiresToken(t *testing.T) {
	r := newRouter(t, fakeStore{}, "secret")
	assert.Equal(t, http.StatusUnauthorized, do(r, "/status", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/notifications", "Bearer wrong").Code)

	w := do(r, "/status", "Bearer secret")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Passes   int              `json:"passes"`
		LastPass radar.PassStatus `json:"last_pass"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Passes)
	assert.Equal(t, "pass-1", body.LastPass.ID)
	assert.Equal(t, 3, body.LastPass.Chats["@a"].Created)
}

func TestNotificationsWithoutToken(t *testing.T) {
	store := fakeStore{list: []models.StarGiftNotification{{ID: 1, GiftID: 5, ChatID: "@a"}}}
	r := newRouter(t, store, "")

	w := do(r, "/notifications", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Count         int                           `json:"count"`
		Notifications []models.StarGiftNotification `json:"notifications"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, models.GiftID(5), body.Notifications[0].GiftID)
}

func TestStoreErrors(t *testing.T) {
	r := newRouter(t, fakeStore{err: errors.New("db down")}, "")
	w := do(r, "/notifications", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "error")
	assert.Equal(t, http.StatusInternalServerError, do(r, "/status", "").Code)
}
