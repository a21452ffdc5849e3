package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lently/lently_go_server/config"
	"github.com/lently/lently_go_server/internal/api"
	"github.com/lently/lently_go_server/internal/api/handler"
	"github.com/lently/lently_go_server/internal/database"
	"github.com/lently/lently_go_server/internal/gemini"
	"github.com/lently/lently_go_server/internal/pkg/cron"
	"github.com/lently/lently_go_server/internal/pkg/email"
	"github.com/lently/lently_go_server/internal/pkg/oauth"
	"github.com/lently/lently_go_server/internal/pkg/oss"
	"github.com/lently/lently_go_server/internal/pkg/pubsub"
	"github.com/lently/lently_go_server/internal/pkg/queue"
	"github.com/lently/lently_go_server/internal/pkg/ws"
	"github.com/lently/lently_go_server/internal/progress"
	"github.com/lently/lently_go_server/internal/repository"
	"github.com/lently/lently_go_server/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	// 初始化 OSS（可选）
	var ossClient *oss.Client
	if cfg.OSS.Endpoint != "" && cfg.OSS.AccessKeyID != "" {
		ossClient, err = oss.NewClient(&cfg.OSS)
		if err != nil {
			log.Printf("Warning: Failed to init OSS client: %v", err)
		} else {
			log.Println("OSS client initialized")
		}
	}

	// 初始化 Queue 和 WebSocket Hub
	jobQueue := queue.NewQueue(rdb, cfg.Queue.AnalysisQueue)
	wsHub := ws.NewHub()

	// 进度注册表：worker 进程的快照经 Redis 订阅镜像进来
	tracker := progress.NewManager()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tracker.StartSweepLoop(ctx)

	subscriber := pubsub.NewSubscriber(rdb)
	go func() {
		err := subscriber.Subscribe(ctx, func(msg *pubsub.ProgressMessage) {
			tracker.Mirror(msg.Snapshot, msg.UserID, msg.VideoURL)
			if err := wsHub.SendProgress(msg.UserID, msg.Snapshot); err != nil {
				log.Printf("Failed to push progress to user %d: %v", msg.UserID, err)
			}
		})
		if err != nil && ctx.Err() == nil {
			log.Printf("Progress subscriber stopped: %v", err)
		}
	}()
	log.Println("Progress subscriber started")

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)
	conversationRepo := repository.NewConversationRepository(db)

	// 初始化 Service
	emailSvc := email.NewService(&cfg.Email)
	authService := service.NewAuthService(userRepo, emailSvc, cfg)
	quotaService := service.NewQuotaService(userRepo, cfg)
	userService := service.NewUserService(userRepo, quotaService, ossClient, cfg)
	analysisService := service.NewAnalysisService(analysisRepo, userRepo, quotaService, jobQueue, tracker, cfg)
	geminiClient := gemini.NewClient(&cfg.Gemini)
	askAIService := service.NewAskAIService(analysisRepo, conversationRepo, geminiClient)

	// 定时任务：月度配额重置 + 卡死分析修复
	cronService := cron.NewService(quotaService, analysisRepo, time.Hour)
	cronService.Start()
	defer cronService.Stop()

	// 初始化 Handler
	stateStore := oauth.NewStateStore(rdb)
	authHandler := handler.NewAuthHandler(authService, stateStore)
	userHandler := handler.NewUserHandler(userService)
	analysisHandler := handler.NewAnalysisHandler(analysisService)
	quotaHandler := handler.NewQuotaHandler(quotaService)
	askAIHandler := handler.NewAskAIHandler(askAIService)
	websocketHandler := handler.NewWebSocketHandler(wsHub, cfg.JWT.Secret)

	// 初始化 Router
	router := api.NewRouter(
		authHandler,
		userHandler,
		analysisHandler,
		quotaHandler,
		askAIHandler,
		websocketHandler,
		cfg,
	)
	engine := router.Setup()

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := engine.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
