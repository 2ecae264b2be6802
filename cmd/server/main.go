package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	jwtpkg "attachrename/backend/internal/auth/jwt"
	"attachrename/backend/internal/config"
	"attachrename/backend/internal/domain"
	"attachrename/backend/internal/health"
	"attachrename/backend/internal/logger"
	"attachrename/backend/internal/monitoring"
	"attachrename/backend/internal/service"
	"attachrename/backend/internal/storage"
	"attachrename/backend/internal/storage/memory"
	redisstore "attachrename/backend/internal/storage/redis"
	sqlstore "attachrename/backend/internal/storage/sql"
	httptransport "attachrename/backend/internal/transport/http"
	"attachrename/backend/internal/websocket"
)

// main 启动附件重命名后端服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.New(&cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting attachment rename server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化存储层
	var store storage.Store
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		store, err = sqlstore.NewStore(
			cfg.Database.Type,
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
		)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize database storage: %v", err))
		}
		log.Info("using database storage", zap.String("type", cfg.Database.Type))
	} else {
		// 内存存储（开发环境）
		store = memory.NewStore()
		log.Info("using memory storage (development mode)")
	}
	defer store.Close()

	// 初始化 Redis 缓存（可选）
	var (
		redisClient *redisstore.Client
		cache       *redisstore.Cache
	)
	if cfg.Redis.Enabled {
		redisClient, err = redisstore.New(&cfg.Redis, log)
		if err != nil {
			panic(fmt.Sprintf("failed to connect to redis: %v", err))
		}
		defer redisClient.Close()
		cache = redisstore.NewCache(redisClient)
		log.Info("redis cache enabled", zap.String("address", cfg.Redis.Address))
	}

	// 初始化监控系统
	metrics := monitoring.NewMetrics()

	// 初始化健康检查
	healthChecker := health.NewHealthChecker(store, redisClient, log)

	// 许可令牌管理器
	jwtManager := jwtpkg.NewManager(cfg.License.JWTSecret, cfg.License.Issuer, cfg.License.TokenExpiry)

	// 创建 WebSocket Hub，重命名结果经它推送回浏览器扩展
	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, jwtManager, log)

	// 初始化服务层。通知器包一层指标记录，再转发给 WebSocket hub。
	licenseService := service.NewLicenseService(store, cache, jwtManager, &cfg.License, log)
	settingsService := service.NewSettingsService(store, log)
	notifier := &meteredNotifier{next: wsHub, metrics: metrics}
	sessionService := service.NewSessionService(settingsService, licenseService, notifier, &cfg.Rename, log)

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:          cfg,
		SessionService:  sessionService,
		LicenseService:  licenseService,
		SettingsService: settingsService,
		JWTManager:      jwtManager,
		WebSocketHub:    wsHub,
		HealthChecker:   healthChecker,
		Metrics:         metrics,
		Logger:          log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// WebSocket Hub goroutine
	group.Go(func() error {
		log.Info("starting WebSocket hub")
		wsHub.Run(groupCtx)
		return nil
	})

	// 定时清理过期下载与空闲会话 goroutine
	group.Go(func() error {
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		log.Info("starting session cleanup task", zap.Duration("interval", 1*time.Minute))

		for {
			select {
			case <-groupCtx.Done():
				log.Info("cleanup task stopped")
				return nil
			case <-ticker.C:
				purged := sessionService.PurgeExpired()
				if purged > 0 {
					log.Debug("expired pending downloads purged", zap.Int("count", purged))
					metrics.RecordRegistryPurged(purged)
				}
				metrics.UpdateActiveSessions(sessionService.Sessions())
			}
		}
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		log.Info("server stopped")
		return nil
	})

	// 等待所有 goroutine 完成
	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// meteredNotifier 在转发通知前记录匹配/试用指标。
type meteredNotifier struct {
	next    service.Notifier
	metrics *monitoring.Metrics
}

func (n *meteredNotifier) DownloadRenamed(machineID string, result *domain.MatchResult) {
	n.metrics.RecordDownloadMatched(string(result.Method))
	n.next.DownloadRenamed(machineID, result)
}

func (n *meteredNotifier) DownloadUnmatched(machineID, observedFilename string) {
	n.metrics.RecordDownloadUnmatched()
	n.next.DownloadUnmatched(machineID, observedFilename)
}

func (n *meteredNotifier) TrialWarning(machineID string, status domain.LicenseStatus) {
	if status.UsedToday > status.DailyLimit {
		n.metrics.RecordTrialBlocked("daily_limit")
	} else if status.DaysLeft <= 0 && !status.Paid {
		n.metrics.RecordTrialBlocked("trial_expired")
	}
	n.next.TrialWarning(machineID, status)
}
