package router

import (
	"log/slog"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/techblog/internal/config"
	"github.com/techblog/internal/handler"
	"github.com/techblog/internal/logger"
	"github.com/techblog/internal/metrics"
	"gorm.io/gorm"
)

const sessionName = "techblog_session"

// SetupRouter 配置 Gin 引擎、中间件和路由
func SetupRouter(cfg config.AppConfig, gdb *gorm.DB, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(logger.TraceMiddleware(), logger.AccessLog(), gin.Recovery())
	r.Use(m.Middleware())
	r.Use(handler.CORSMiddleware(cfg.CORSOrigins))

	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		slog.Warn("invalid trusted proxies, falling back to none", slog.Any("error", err))
		_ = r.SetTrustedProxies(nil)
	}

	// 配置会话中间件
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.JWTExpiration.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	api := handler.NewAPI(gdb, cfg, m)

	r.GET("/metrics", gin.WrapH(m.Handler()))

	public := r.Group("/api")
	{
		public.GET("/health", api.HealthCheck)
		public.POST("/auth/login", api.Login)
		public.GET("/posts/:slug", api.GetPost)
		public.POST("/posts/:slug/like", api.LikePost)
		public.POST("/analytics/track", api.TrackPageView)
	}

	// 需要认证的路由
	auth := r.Group("/api")
	auth.Use(api.AuthRequired())
	{
		auth.POST("/auth/logout", api.Logout)
		auth.GET("/auth/me", api.Me)

		admin := auth.Group("/analytics/admin")
		{
			admin.GET("/overview", api.GetOverview)
			admin.GET("/traffic", api.GetTraffic)
			admin.GET("/popular-posts", api.GetPopularPosts)
			admin.GET("/device-stats", api.GetDeviceStats)
			admin.GET("/referrer-stats", api.GetReferrerStats)
			admin.GET("/dashboard", api.GetDashboard)
		}
	}

	return r
}
