package httpapi

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/wbia/jobengine/internal/client"
	"github.com/wbia/jobengine/internal/platform/logger"
)

// NewRouter builds the full gin engine, grounded on the teacher's
// internal/server.NewRouter (health check, CORS, request logging middleware,
// one route group) with the auth/SSE/course surface replaced by the job
// routes §6 names.
func NewRouter(log *logger.Logger, c *client.Client) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("jobengine"))
	router.Use(requestLogger(log))
	router.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
	}))

	router.GET("/healthcheck", func(ctx *gin.Context) { ctx.JSON(200, gin.H{"status": "ok"}) })

	h := NewHandler(c)
	api := router.Group("/api")
	{
		api.POST("/jobs", h.Submit)
		api.GET("/jobs", h.List)
		api.GET("/jobs/status_all", h.StatusAll)
		api.GET("/jobs/statuses", h.Statuses)
		api.GET("/jobs/:id/status", h.Status)
		api.GET("/jobs/:id/metadata", h.Metadata)
		api.GET("/jobs/:id/result", h.Result)
	}

	return router
}

// requestLogger mirrors the teacher's internal/http/middleware.RequestLogger,
// minus the trace/session-id enrichment this API has no use for.
func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if log == nil {
			return
		}
		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []interface{}{
			"method", strings.ToUpper(c.Request.Method),
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case status >= 500:
			log.Error("http request", fields...)
		case status >= 400:
			log.Warn("http request", fields...)
		default:
			log.Info("http request", fields...)
		}
	}
}
