package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lently/lently_go_server/config"
	"github.com/lently/lently_go_server/internal/database"
	"github.com/lently/lently_go_server/internal/gemini"
	"github.com/lently/lently_go_server/internal/pipeline"
	"github.com/lently/lently_go_server/internal/pkg/email"
	"github.com/lently/lently_go_server/internal/pkg/oss"
	"github.com/lently/lently_go_server/internal/pkg/pubsub"
	"github.com/lently/lently_go_server/internal/pkg/queue"
	"github.com/lently/lently_go_server/internal/progress"
	"github.com/lently/lently_go_server/internal/repository"
	"github.com/lently/lently_go_server/internal/worker"
	"github.com/lently/lently_go_server/internal/youtube"
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

	// 初始化 Queue 和 Pub/Sub
	jobQueue := queue.NewQueue(rdb, cfg.Queue.AnalysisQueue)
	publisher := pubsub.NewPublisher(rdb)

	// 初始化 Repository
	analysisRepo := repository.NewAnalysisRepository(db)
	userRepo := repository.NewUserRepository(db)

	// 评论来源：YouTube 客户端 + Redis 缓存
	ytClient := youtube.NewClient(&cfg.YouTube)
	source := youtube.NewCachedClient(ytClient, rdb, cfg.YouTube.CacheTTLMinutes)

	// 流水线
	geminiClient := gemini.NewClient(&cfg.Gemini)
	tracker := progress.NewManager()
	coordinator := pipeline.NewCoordinator(source, geminiClient, tracker)

	emailSvc := email.NewService(&cfg.Email)

	// 创建任务处理器
	processor := worker.NewProcessor(analysisRepo, userRepo, coordinator, tracker, ossClient, publisher, emailSvc)

	// 创建 context 用于优雅关闭
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go tracker.StartSweepLoop(ctx)

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal")
		cancel()
	}()

	log.Printf("Worker started, max workers: %d", cfg.Queue.MaxWorkers)

	// 启动 worker 循环
	for i := 0; i < cfg.Queue.MaxWorkers; i++ {
		go func(workerID int) {
			for {
				select {
				case <-ctx.Done():
					log.Printf("Worker %d shutting down", workerID)
					return
				default:
					msg, err := jobQueue.Pop(ctx, 5*time.Second)
					if err != nil {
						if ctx.Err() != nil {
							return
						}
						log.Printf("Worker %d: failed to pop job: %v", workerID, err)
						continue
					}

					if msg == nil {
						continue // 超时，继续等待
					}

					log.Printf("Worker %d: processing job %s", workerID, msg.JobID)
					if err := processor.Process(ctx, msg); err != nil {
						log.Printf("Worker %d: job %s failed: %v", workerID, msg.JobID, err)
					}
				}
			}
		}(i)
	}

	// 等待 context 取消
	<-ctx.Done()
	log.Println("Worker shutdown complete")
}
