package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cppla/postboard/config"
	"github.com/cppla/postboard/controllers"
	"github.com/cppla/postboard/middleware"
	"github.com/cppla/postboard/session"
	"github.com/cppla/postboard/utils"
)

const serviceName = "postboard"

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, sessions *session.Registry, hub *utils.WSHub) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(utils.RecoveryWithZap(utils.Logger, true))
	}

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))
	r.Use(middleware.PrometheusMiddleware(serviceName))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok", "sessions": sessions.Len()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	sessionController := controllers.NewSessionController(sessions, hub, cfg.AllowedOrigins)
	postController := controllers.NewPostController(sessions)

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute))

	api.POST("/sessions", sessionController.CreateSession)

	sess := api.Group("/sessions/:id")
	sess.GET("", sessionController.GetSession)
	sess.DELETE("", sessionController.EndSession)
	sess.POST("/reload", sessionController.Reload)
	sess.POST("/advance", sessionController.Advance)
	sess.PUT("/search", sessionController.SetSearch)
	sess.PUT("/sort", sessionController.SetSort)
	sess.POST("/sort/:column/toggle", sessionController.ToggleSort)
	sess.GET("/pages/:page", sessionController.Page)
	sess.GET("/ws", sessionController.Watch)

	sess.GET("/posts/:postId", postController.GetPost)
	sess.POST("/posts", postController.CreatePost)
	sess.PUT("/posts/:postId", postController.UpdatePost)
	sess.DELETE("/posts/:postId", postController.DeletePost)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
