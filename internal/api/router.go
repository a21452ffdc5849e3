package api

import (
	"github.com/gin-gonic/gin"

	"github.com/lently/lently_go_server/config"
	"github.com/lently/lently_go_server/internal/api/handler"
	"github.com/lently/lently_go_server/internal/api/middleware"
)

type Router struct {
	authHandler      *handler.AuthHandler
	userHandler      *handler.UserHandler
	analysisHandler  *handler.AnalysisHandler
	quotaHandler     *handler.QuotaHandler
	askAIHandler     *handler.AskAIHandler
	websocketHandler *handler.WebSocketHandler
	cfg              *config.Config
}

func NewRouter(
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	analysisHandler *handler.AnalysisHandler,
	quotaHandler *handler.QuotaHandler,
	askAIHandler *handler.AskAIHandler,
	websocketHandler *handler.WebSocketHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		authHandler:      authHandler,
		userHandler:      userHandler,
		analysisHandler:  analysisHandler,
		quotaHandler:     quotaHandler,
		askAIHandler:     askAIHandler,
		websocketHandler: websocketHandler,
		cfg:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	api := engine.Group("/api/v1")
	{
		// WebSocket
		api.GET("/ws", r.websocketHandler.Handle)

		// 公开接口 - 认证
		auth := api.Group("/auth")
		{
			auth.POST("/register", r.authHandler.Register)
			auth.POST("/login", r.authHandler.Login)
			auth.POST("/verify-email", r.authHandler.VerifyEmail)
			auth.GET("/google", r.authHandler.GoogleAuth)
			auth.GET("/google/callback", r.authHandler.GoogleCallback)
		}

		// 公开接口 - 套餐
		api.GET("/plans", r.quotaHandler.ListPlans)

		// 需要认证的接口
		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			// 用户
			user := authenticated.Group("/user")
			{
				user.GET("/profile", r.userHandler.GetProfile)
				user.PUT("/profile", r.userHandler.UpdateProfile)
				user.POST("/avatar", r.userHandler.UploadAvatar)
				user.GET("/quota", r.quotaHandler.GetQuota)
				user.GET("/usage", r.quotaHandler.GetUsage)
			}

			// 分析
			analyses := authenticated.Group("/analyses")
			{
				analyses.POST("", r.analysisHandler.Create)
				analyses.GET("", r.analysisHandler.List)
				analyses.GET("/:id", r.analysisHandler.Get)
				analyses.DELETE("/:id", r.analysisHandler.Delete)
			}

			// 作业进度（按作业 ID 查询）
			jobs := authenticated.Group("/jobs")
			{
				jobs.GET("/:job_id", r.analysisHandler.GetByJobID)
				jobs.GET("/:job_id/progress", r.analysisHandler.GetProgress)
				jobs.GET("/:job_id/stream", r.analysisHandler.StreamProgress)
			}

			// 对话式问答
			ask := authenticated.Group("/ask")
			{
				ask.POST("/question", r.askAIHandler.Ask)
				ask.GET("/conversations", r.askAIHandler.ListConversations)
				ask.GET("/conversations/:id", r.askAIHandler.GetConversation)
				ask.GET("/suggestions/:video_id", r.askAIHandler.SuggestQuestions)
			}

			// AI 辅助
			ai := authenticated.Group("/ai")
			{
				ai.POST("/generate-reply", r.askAIHandler.GenerateReply)
			}
		}
	}

	return engine
}
