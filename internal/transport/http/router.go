package httptransport

import (
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	jwtpkg "attachrename/backend/internal/auth/jwt"
	"attachrename/backend/internal/config"
	"attachrename/backend/internal/health"
	"attachrename/backend/internal/middleware"
	"attachrename/backend/internal/monitoring"
	"attachrename/backend/internal/service"
	"attachrename/backend/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config          *config.Config
	SessionService  *service.SessionService
	LicenseService  *service.LicenseService
	SettingsService *service.SettingsService
	JWTManager      *jwtpkg.Manager
	WebSocketHub    *websocket.Hub
	HealthChecker   *health.HealthChecker
	Metrics         *monitoring.Metrics
	Logger          *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	// 使用自定义中间件替代默认中间件。开启监控时用带指标的
	// panic 恢复中间件，否则用普通版本。
	if deps.Metrics != nil {
		mm := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)
		router.Use(mm.PanicRecovery())
		router.Use(mm.HTTPMetrics())
		router.Use(mm.BusinessMetrics())
	} else {
		router.Use(middleware.RecoveryHandler(deps.Logger))
	}
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())

	// 快照请求最大，全局限制取快照上限
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins: deps.Config.CORS.AllowedOrigins,
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", MachineIDHeader},
		ExposeHeaders: []string{
			"Content-Length",
		},
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
	sessionHandler := NewSessionHandler(deps.SessionService)
	licenseHandler := NewLicenseHandler(deps.LicenseService)
	settingsHandler := NewSettingsHandler(deps.SettingsService)
	publicHandler := NewPublicHandler()

	// 许可激活限流，缓解密钥爆破
	activateLimit := middleware.NewRateLimiter(1, 5, deps.Logger)

	// 健康检查
	if deps.HealthChecker != nil {
		router.GET("/health", gin.WrapH(deps.HealthChecker.Handler()))
		router.GET("/live", gin.WrapH(deps.HealthChecker.Handler()))
		router.GET("/ready", gin.WrapH(deps.HealthChecker.Handler()))
	} else {
		router.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{"status": "ok"})
		})
	}

	// Prometheus 指标
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	// V1 API
	v1 := router.Group("/v1")
	{
		// ========== Public Routes（无需机器标识的公开API） ==========
		publicRoutes := v1.Group("/public")
		{
			publicRoutes.GET("/tokens", publicHandler.GetPatternTokens) // 获取命名模式可用占位符
		}

		// ========== Session Routes ==========
		sessionRoutes := v1.Group("/session")
		{
			// 快照较大，单独限制
			sessionRoutes.POST("/metadata", middleware.BodySizeLimit(middleware.DefaultBodyLimit), sessionHandler.UpdateMetadata)
		}

		// ========== Download Routes ==========
		downloadRoutes := v1.Group("/downloads")
		downloadRoutes.Use(middleware.BodySizeLimit(middleware.SmallBodyLimit))
		{
			downloadRoutes.POST("/prepare", sessionHandler.PrepareDownload)
			downloadRoutes.POST("/observe", sessionHandler.ObserveDownload)
		}

		// ========== Settings Routes ==========
		settingsRoutes := v1.Group("/settings")
		settingsRoutes.Use(middleware.BodySizeLimit(middleware.SmallBodyLimit))
		{
			settingsRoutes.GET("", settingsHandler.Get)
			settingsRoutes.PUT("", settingsHandler.Update)
		}

		// ========== License Routes ==========
		licenseRoutes := v1.Group("/license")
		licenseRoutes.Use(middleware.BodySizeLimit(middleware.SmallBodyLimit))
		{
			licenseRoutes.POST("/activate", activateLimit.Handler(), licenseHandler.Activate)
			licenseRoutes.GET("/status", licenseHandler.Status)
			// 注销需要持有激活时签发的许可令牌
			licenseRoutes.DELETE("", middleware.LicenseAuth(deps.JWTManager), licenseHandler.Deactivate)
		}

		// ========== WebSocket Routes ==========
		if deps.WebSocketHub != nil {
			v1.GET("/ws", websocket.HandleWebSocket(deps.WebSocketHub))
		}
	}

	return router
}
