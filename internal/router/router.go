package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/stemsi/exstem-client/internal/config"
	"github.com/stemsi/exstem-client/internal/handler"
	"github.com/stemsi/exstem-client/internal/middleware"
	"github.com/stemsi/exstem-client/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.ExamSessionHandler
	Monitor *handler.MonitorHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.GinMode != gin.TestMode {
		router.Use(gin.Logger())
	}

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", response.HeaderRequestID}
	corsConfig.ExposeHeaders = []string{response.HeaderRequestID}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok", "tab_id": cfg.TabID})
	})

	router.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	})

	var answerLimit gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if cfg.AnswerRateLimit > 0 {
		answerLimit = middleware.NewRateLimiter(cfg.AnswerRateLimit, time.Minute).Middleware()
	}

	// ─── 1. Session lifecycle ──────────────────────────────────────────
	sessions := router.Group("/api/v1/sessions/:session_id")
	sessions.Use(middleware.NoStore())
	{
		sessions.PUT("/payload", handlers.Session.StagePayload)
		sessions.POST("/enter", handlers.Session.EnterSession)
		sessions.DELETE("", handlers.Session.LeaveSession)
		sessions.GET("/result", handlers.Session.GetResult)
		sessions.GET("/monitor", handlers.Monitor.MonitorSessionSSE)
	}

	// ─── 2. Running engine ─────────────────────────────────────────────
	active := router.Group("/api/v1/sessions/:session_id")
	active.Use(middleware.NoStore(), handlers.Session.RequireEngine())
	{
		active.GET("", handlers.Session.GetSession)
		active.PUT("/answers", answerLimit, handlers.Session.SelectAnswer)
		active.POST("/flags/:question_id/toggle", handlers.Session.ToggleFlag)
		active.POST("/navigate", handlers.Session.Navigate)
		active.POST("/submit", handlers.Session.SubmitExam)
	}

	// ─── 3. WebSocket ──────────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/sessions/:session_id/events", handlers.WS.SessionEventStream)
	}

	return router
}
