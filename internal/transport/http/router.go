package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailboard/backend/internal/auth"
	jwtpkg "mailboard/backend/internal/auth/jwt"
	"mailboard/backend/internal/config"
	"mailboard/backend/internal/health"
	"mailboard/backend/internal/middleware"
	"mailboard/backend/internal/monitoring"
	"mailboard/backend/internal/provider/gmail"
	"mailboard/backend/internal/service"
	"mailboard/backend/internal/storage"
	"mailboard/backend/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config           *config.Config
	EmailService     *service.EmailService
	RecipientService *service.RecipientService
	AnalyticsService *service.AnalyticsService
	AuthService      *auth.Service
	JWTManager       *jwtpkg.Manager
	GmailProvider    *gmail.Provider // 未配置时为 nil
	Store            storage.Store
	WebSocketHub     *websocket.Hub        // 可为 nil
	HealthChecker    *health.HealthChecker // 可为 nil
	Metrics          *monitoring.Metrics   // 可为 nil
	TokenBlacklist   middleware.TokenBlacklist // 可为 nil
	TokenRevoker     TokenRevoker              // 可为 nil
	Logger           *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	if deps.Metrics != nil {
		mm := middleware.NewMonitoringMiddleware(deps.Metrics, log)
		router.Use(mm.PanicRecovery())
		router.Use(mm.HTTPMetrics())
	} else {
		router.Use(gin.Recovery())
	}
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.SecurityHeaders())

	// 请求体大小限制 1MB，邮件正文之外没有大载荷
	router.Use(middleware.RequestSizeLimit(1 << 20))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	// 创建处理器
	authHandler := NewAuthHandler(deps.AuthService, deps.JWTManager, deps.TokenRevoker, deps.Metrics, log)
	emailHandler := NewEmailHandler(deps.EmailService, log)
	recipientHandler := NewRecipientHandler(deps.RecipientService, log)
	analyticsHandler := NewAnalyticsHandler(deps.AnalyticsService, log)
	gmailHandler := NewGmailHandler(deps.GmailProvider, deps.Store, log)
	trackingHandler := NewTrackingHandler(deps.AnalyticsService, log)

	// 创建中间件
	jwtAuth := middleware.NewJWTAuth(deps.JWTManager, deps.TokenBlacklist, log)
	rateLimiter := middleware.NewRateLimiter(300, 30)

	// 健康检查与指标
	if deps.HealthChecker != nil {
		router.GET("/live", gin.WrapH(deps.HealthChecker.Handler()))
		router.GET("/ready", gin.WrapH(deps.HealthChecker.Handler()))
	}
	router.GET("/health", func(c *gin.Context) {
		if deps.HealthChecker != nil {
			c.JSON(http.StatusOK, deps.HealthChecker.CheckHealth())
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	// 追踪端点：无需认证，邮件正文内嵌
	tracking := router.Group("/t")
	{
		tracking.GET("/open/:id", trackingHandler.Open)
		tracking.GET("/click/:id", trackingHandler.Click)
	}

	api := router.Group("/api")
	api.Use(rateLimiter.Limit())
	{
		// ========== Auth Routes ==========
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh", authHandler.Refresh)
			authRoutes.POST("/logout", jwtAuth.RequireAuth(), authHandler.Logout)
			authRoutes.GET("/me", jwtAuth.RequireAuth(), authHandler.Me)
		}

		// ========== Gmail Routes ==========
		gmailRoutes := api.Group("/gmail")
		{
			gmailRoutes.GET("/auth", jwtAuth.RequireAuth(), gmailHandler.Auth)
			// 回调来自 Google 跳转，身份由 state 参数找回
			gmailRoutes.GET("/callback", gmailHandler.Callback)
			gmailRoutes.GET("/status", jwtAuth.RequireAuth(), gmailHandler.Status)
			gmailRoutes.DELETE("", jwtAuth.RequireAuth(), gmailHandler.Disconnect)
		}

		// ========== Email Routes ==========
		emailRoutes := api.Group("/emails")
		emailRoutes.Use(jwtAuth.RequireAuth())
		{
			emailRoutes.POST("", emailHandler.Create)
			emailRoutes.GET("", emailHandler.List)
			emailRoutes.GET("/scheduled", emailHandler.ListScheduled)
			emailRoutes.GET("/:id", emailHandler.Get)
			emailRoutes.POST("/:id/send", emailHandler.Send)
			emailRoutes.DELETE("/:id", emailHandler.Cancel)
			emailRoutes.GET("/:id/activities", analyticsHandler.EmailActivity)
		}

		// ========== Recipient Routes ==========
		recipientRoutes := api.Group("/recipients")
		recipientRoutes.Use(jwtAuth.RequireAuth())
		{
			recipientRoutes.POST("", recipientHandler.Create)
			recipientRoutes.GET("", recipientHandler.List)
			recipientRoutes.DELETE("/:id", recipientHandler.Delete)
		}

		listRoutes := api.Group("/recipient-lists")
		listRoutes.Use(jwtAuth.RequireAuth())
		{
			listRoutes.POST("", recipientHandler.CreateList)
			listRoutes.GET("", recipientHandler.ListLists)
			listRoutes.DELETE("/:id", recipientHandler.DeleteList)
		}

		// ========== Analytics Routes ==========
		analyticsRoutes := api.Group("/analytics")
		analyticsRoutes.Use(jwtAuth.RequireAuth())
		{
			analyticsRoutes.GET("/overview", analyticsHandler.Overview)
			analyticsRoutes.GET("/activity", analyticsHandler.RecentActivity)
		}

		// ========== WebSocket Routes ==========
		if deps.WebSocketHub != nil {
			api.GET("/ws/activity", websocket.HandleWebSocket(deps.WebSocketHub))
		}
	}

	return router
}
