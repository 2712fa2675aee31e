package status

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/felipemacedo1/go-msg-wss-app/internal/session"
)

// SessionsFunc returns the sessions currently synchronizing.
type SessionsFunc func() []session.Info

// NewRouter builds the local status surface: health, metrics and a debug
// view of open sessions.
func NewRouter(sessions SessionsFunc) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("go-msg-wss-app"))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/debug/sessions", func(c *gin.Context) {
		infos := []session.Info{}
		if sessions != nil {
			infos = sessions()
		}
		c.JSON(http.StatusOK, gin.H{"sessions": infos})
	})

	return router
}
