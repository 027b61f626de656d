package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mailboard/backend/internal/auth"
	jwtpkg "mailboard/backend/internal/auth/jwt"
	"mailboard/backend/internal/cache"
	"mailboard/backend/internal/config"
	"mailboard/backend/internal/health"
	"mailboard/backend/internal/logger"
	"mailboard/backend/internal/middleware"
	"mailboard/backend/internal/monitoring"
	"mailboard/backend/internal/pool"
	"mailboard/backend/internal/provider"
	"mailboard/backend/internal/provider/gmail"
	"mailboard/backend/internal/provider/resend"
	"mailboard/backend/internal/provider/smtp"
	"mailboard/backend/internal/scheduler"
	"mailboard/backend/internal/service"
	"mailboard/backend/internal/storage"
	"mailboard/backend/internal/storage/hybrid"
	"mailboard/backend/internal/storage/memory"
	httptransport "mailboard/backend/internal/transport/http"
	"mailboard/backend/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	if cfg.Log.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     cfg.Log.LogFile,
		MaxSize:     cfg.Log.MaxSize,
		MaxBackups:  cfg.Log.MaxBackups,
		MaxAge:      cfg.Log.MaxAge,
		Compress:    cfg.Log.Compress,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("服务异常退出", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 存储层：配置了数据库时用数据库 + Redis 旁路缓存，否则退化为内存存储
	var (
		store          storage.Store
		hybridStore    *hybrid.Store
		cacheHealth    health.CacheHealth
		overviewCache  service.OverviewCache
		tokenBlacklist middleware.TokenBlacklist
		tokenRevoker   httptransport.TokenRevoker
	)
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		var err error
		hybridStore, err = hybrid.NewStore(
			cfg.Database.Type, cfg.Database.DSN,
			cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB,
		)
		if err != nil {
			return fmt.Errorf("初始化存储失败: %w", err)
		}
		if err := hybridStore.ConfigureConnPool(
			cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime,
		); err != nil {
			return fmt.Errorf("配置连接池失败: %w", err)
		}
		store = hybridStore
		cacheHealth = hybridStore.Cache()
		overviewCache = hybridStore.OverviewCache()
		blacklist := hybridStore.TokenBlacklist(cfg.JWT.AccessExpiry)
		tokenBlacklist = blacklist
		tokenRevoker = blacklist
		log.Info("使用数据库存储",
			zap.String("type", cfg.Database.Type),
			zap.String("redis", cfg.Redis.Address))
	} else {
		store = memory.NewStore()
		overviewCache = cache.NewLocalOverviewCache(time.Minute)
		log.Warn("未配置数据库，使用内存存储（重启后数据丢失）")
	}
	defer store.Close()

	// sending 只会被在途投递持有，启动时残留即为上次运行中断的遗留
	if ids, err := store.ResetStuckSending("dispatch interrupted by server restart"); err != nil {
		return fmt.Errorf("清理滞留发送状态失败: %w", err)
	} else if len(ids) > 0 {
		log.Warn("已将上次中断的发送标记为失败", zap.Int("count", len(ids)))
	}

	metrics := monitoring.NewMetrics()

	jwtManager := jwtpkg.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessExpiry, cfg.JWT.RefreshExpiry)
	authService := auth.NewService(store)

	// 发信渠道：Gmail 为用户级渠道，按授权状态在发送时选取；
	// resend/smtp 是系统级兜底渠道。
	var gmailProvider *gmail.Provider
	if cfg.Provider.GmailClientID != "" && cfg.Provider.GmailClientSecret != "" {
		gmailProvider = gmail.New(cfg.Provider.GmailClientID, cfg.Provider.GmailClientSecret, cfg.Provider.GmailRedirectURL)
		log.Info("Gmail OAuth 已启用", zap.String("redirect_url", cfg.Provider.GmailRedirectURL))
	}

	var fallback provider.Sender
	switch cfg.Provider.Default {
	case "resend":
		if cfg.Provider.ResendAPIKey != "" {
			fallback = resend.New(cfg.Provider.ResendAPIKey)
			log.Info("兜底发信渠道: resend")
		}
	case "smtp":
		if cfg.Provider.SMTPAddr != "" {
			fallback = smtp.New(cfg.Provider.SMTPAddr, cfg.Provider.SMTPUsername, cfg.Provider.SMTPPassword)
			log.Info("兜底发信渠道: smtp", zap.String("addr", cfg.Provider.SMTPAddr))
		}
	}
	if fallback == nil && gmailProvider == nil {
		log.Warn("未配置任何发信渠道，发送操作将全部失败")
	}

	workerPool := pool.NewWorkerPool(cfg.Dispatch.MaxWorkers, cfg.Dispatch.QueueSize)
	workerPool.Start(ctx)
	defer workerPool.Stop()

	emailService := service.NewEmailService(store, gmailProvider, fallback, workerPool, cfg.Provider, log, metrics)
	recipientService := service.NewRecipientService(store, log)
	analyticsService := service.NewAnalyticsService(store, overviewCache, log, metrics)

	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, jwtManager, log)
	emailService.SetPublisher(wsHub)
	analyticsService.SetPublisher(wsHub)

	dispatcher := scheduler.NewDispatcher(emailService, cfg.Dispatch.Interval, log, metrics)

	healthChecker := health.NewHealthChecker(store, cacheHealth, log)

	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:           cfg,
		EmailService:     emailService,
		RecipientService: recipientService,
		AnalyticsService: analyticsService,
		AuthService:      authService,
		JWTManager:       jwtManager,
		GmailProvider:    gmailProvider,
		Store:            store,
		WebSocketHub:     wsHub,
		HealthChecker:    healthChecker,
		Metrics:          metrics,
		TokenBlacklist:   tokenBlacklist,
		TokenRevoker:     tokenRevoker,
		Logger:           log,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("HTTP 服务启动", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP 服务异常: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		wsHub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		return dispatcher.Start(gctx)
	})

	// 收到退出信号后优雅关闭 HTTP 服务
	g.Go(func() error {
		<-gctx.Done()
		log.Info("收到退出信号，开始优雅关闭")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP 服务关闭失败: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("服务已退出")
	return nil
}
