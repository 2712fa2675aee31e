package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felipemacedo1/go-msg-wss-app/internal/session"
)

func TestHealthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestDebugSessions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(func() []session.Info {
		return []session.Info{{RoomID: "r1", State: "open", Installed: true, Messages: 4}}
	})

	req := httptest.NewRequest(http.MethodGet, "/debug/sessions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Sessions []session.Info `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Sessions, 1)
	assert.Equal(t, "open", resp.Sessions[0].State)
	assert.Equal(t, 4, resp.Sessions[0].Messages)
}

func TestMetricsExposed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
