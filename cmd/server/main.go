// Package main 是审查服务端的入口点
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"fair-review/internal/server/ai"
	"fair-review/internal/server/cache"
	"fair-review/internal/server/config"
	"fair-review/internal/server/handler"
	"fair-review/internal/server/middleware"
	"fair-review/internal/server/model"
	"fair-review/internal/server/repository"
	"fair-review/internal/server/service"
	"fair-review/pkg/jwt"
)

func main() {
	// 加载配置
	cfg, err := config.Load("./configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	// 初始化数据库
	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("数据库初始化失败", zap.Error(err))
	}
	if err := autoMigrate(db); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 初始化 Redis
	redisCache, err := cache.NewRedisCache(cfg)
	if err != nil {
		logger.Fatal("Redis 初始化失败", zap.Error(err))
	}

	// 初始化 JWT 服务
	jwtService := jwt.NewJWTService(
		cfg.JWT.Secret,
		cfg.JWT.AccessExpire,
		cfg.JWT.RefreshExpire,
	)

	// 初始化 Repository 层
	userRepo := repository.NewUserRepository(db)
	articleRepo := repository.NewArticleRepository(db)
	chatRepo := repository.NewChatRepository(db)

	// 初始化 AI 提供方
	// 模型不可用时退回关键词规则，审查任务不会因此整体失败
	provider := ai.NewOpenAIProvider(ai.Config{
		APIKey:  cfg.AI.APIKey,
		BaseURL: cfg.AI.BaseURL,
		Model:   cfg.AI.Model,
	})
	classifier := ai.NewFallbackClassifier(provider, ai.NewKeywordClassifier())

	// 初始化 Service 层
	authService := service.NewAuthService(userRepo, redisCache, jwtService)
	fileService := service.NewFileService(articleRepo, redisCache, service.NewCommandExtractor(), logger, cfg.Upload.Dir, cfg.Upload.MaxSize)
	reviewService := service.NewReviewService(articleRepo, redisCache, classifier, logger)
	chatService := service.NewChatService(chatRepo, provider, logger, cfg.Upload.Dir)

	// 初始化 Handler 层
	authHandler := handler.NewAuthHandler(authService)
	fileHandler := handler.NewFileHandler(fileService)
	reviewHandler := handler.NewReviewHandler(reviewService, redisCache, logger)
	chatHandler := handler.NewChatHandler(chatService, logger)

	// 设置 Gin 模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 全局中间件
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggerMiddleware(logger))
	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.Server.CORS) > 0 {
		corsConfig.AllowOrigins = cfg.Server.CORS
	}
	router.Use(middleware.CORSMiddleware(corsConfig))

	registerRoutes(router, jwtService, redisCache, authHandler, fileHandler, reviewHandler, chatHandler)

	// 创建 HTTP 服务器
	// 流式响应（对话流、进度 SSE）不能设置写超时
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("服务启动", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("服务启动失败", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("服务关闭中")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("服务强制关闭", zap.Error(err))
	}
	if err := redisCache.Close(); err != nil {
		logger.Warn("关闭 Redis 连接失败", zap.Error(err))
	}

	logger.Info("服务已退出")
}

// newLogger 根据日志配置构建 zap logger
func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format != "json" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

// initDatabase 初始化数据库连接
func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		cfg.MySQL.Username,
		cfg.MySQL.Password,
		cfg.MySQL.Host,
		cfg.MySQL.Port,
		cfg.MySQL.Database,
		cfg.MySQL.Charset,
	)

	gormLogger := gormlogger.Default.LogMode(gormlogger.Info)
	if cfg.Server.Mode == "release" {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Warn)
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// 配置连接池
	sqlDB.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MySQL.MaxLifetime) * time.Second)

	return db, nil
}

// autoMigrate 自动迁移数据库表
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Article{},
		&model.Sentence{},
		&model.Annotation{},
		&model.ChatSession{},
		&model.ChatMessage{},
		&model.ChatAttachment{},
		&model.ChatSetting{},
	)
}

// registerRoutes 注册所有路由
func registerRoutes(
	router *gin.Engine,
	jwtService *jwt.JWTService,
	redisCache *cache.RedisCache,
	authHandler *handler.AuthHandler,
	fileHandler *handler.FileHandler,
	reviewHandler *handler.ReviewHandler,
	chatHandler *handler.ChatHandler,
) {
	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authMW := middleware.AuthMiddleware(jwtService, redisCache)

	// 认证相关
	auth := router.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.RefreshToken)
		auth.POST("/logout", authMW, authHandler.Logout) // 登出需要知道当前 Token
	}

	// 文档相关（需要登录）
	files := router.Group("/api/files")
	files.Use(authMW)
	{
		files.POST("/upload", fileHandler.Upload)
		files.GET("/list", fileHandler.List)
		files.GET("/:id", fileHandler.Detail)
		files.GET("/:id/content", fileHandler.FullContent)
		files.DELETE("/:id", fileHandler.Delete)
	}

	// 审查相关（需要登录）
	reviews := router.Group("/api/reviews")
	reviews.Use(authMW)
	{
		reviews.POST("/start/:id", reviewHandler.Start)
		reviews.GET("/progress/:id", reviewHandler.Progress)
		reviews.GET("/progress/sse/:id", reviewHandler.ProgressSSE)
		reviews.GET("/detail/:id", reviewHandler.Detail)
	}

	// 对话相关（需要登录）
	chat := router.Group("/api/chat")
	chat.Use(authMW)
	{
		chat.GET("/conversations", chatHandler.ListConversations)
		chat.POST("/conversations", chatHandler.CreateConversation)
		chat.GET("/conversations/:id/messages", chatHandler.GetMessages)
		chat.DELETE("/conversations/:id/messages", chatHandler.ClearMessages)
		chat.DELETE("/conversations/:id", chatHandler.DeleteConversation)
		chat.PUT("/conversations/:id", chatHandler.UpdateTitle)
		chat.GET("/conversations/:id/export", chatHandler.ExportConversation)
		chat.GET("/search", chatHandler.SearchConversations)
		chat.POST("/message", chatHandler.SendMessage)
		chat.POST("/stream", chatHandler.StreamMessage)
		chat.POST("/upload", chatHandler.UploadAttachment)
		chat.POST("/analyze", chatHandler.AnalyzeAttachment)
		chat.GET("/settings", chatHandler.GetSettings)
		chat.PUT("/settings", chatHandler.UpdateSettings)
	}
}
