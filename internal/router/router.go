package router

import (
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/user/moviesearch/internal/config"
	"github.com/user/moviesearch/internal/handler"
	"github.com/user/moviesearch/internal/middleware"
	"github.com/user/moviesearch/internal/utils"
)

const sessionStreamPath = "/api/session/ws"

// RegisterRoutes 注册所有路由
func RegisterRoutes(r *gin.Engine, h *handler.Handler) {
	// 健康检查
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	if h.Config != nil {
		api.Use(middleware.RateLimit(h.Config.RateLimitRPS, h.Config.RateLimitBurst))
	}
	{
		api.GET("/movies", h.Movies)
		api.GET("/trending", h.Trending)
	}

	// ==================== 会话流水线 ====================
	session := api.Group("/session")
	session.Use(middleware.SessionID())
	{
		session.GET("/state", h.SessionState)
		session.POST("/input", h.SessionInput)
		session.POST("/search", h.SessionSearch)
		session.GET("/ws", h.SessionStream)
	}
}

// NewEngine 组装 gin 引擎与公共中间件
func NewEngine(cfg *config.Config, h *handler.Handler) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	// panic 时仍返回统一的 JSON 结构
	r.Use(gin.CustomRecovery(func(c *gin.Context, _ any) {
		utils.InternalServerError(c, "")
		c.Abort()
	}))

	// 启用 gzip，默认压缩级别，WebSocket 不压缩
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{sessionStreamPath})))

	// 设置 Session 中间件
	store := cookie.NewStore([]byte(cfg.AppSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionIdleTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Env == "production",
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("moviesearch", store))

	r.Use(middleware.Logger())

	RegisterRoutes(r, h)
	return r
}
