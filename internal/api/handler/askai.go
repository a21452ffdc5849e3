package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lently/lently_go_server/internal/api/middleware"
	"github.com/lently/lently_go_server/internal/gemini"
	"github.com/lently/lently_go_server/internal/model/dto"
	"github.com/lently/lently_go_server/internal/pkg/response"
	"github.com/lently/lently_go_server/internal/service"
)

type AskAIHandler struct {
	askAIService *service.AskAIService
}

func NewAskAIHandler(askAIService *service.AskAIService) *AskAIHandler {
	return &AskAIHandler{
		askAIService: askAIService,
	}
}

// Ask 就视频评论提问
// POST /api/v1/ask/question
func (h *AskAIHandler) Ask(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.AskQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.askAIService.Ask(c.Request.Context(), userID, &req)
	if err != nil {
		h.writeAskAIError(c, err)
		return
	}

	response.Success(c, resp)
}

// ListConversations 获取会话列表
// GET /api/v1/ask/conversations
func (h *AskAIHandler) ListConversations(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit < 1 || limit > 50 {
		limit = 10
	}

	summaries, err := h.askAIService.ListConversations(userID, limit)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, summaries)
}

// GetConversation 获取会话完整历史
// GET /api/v1/ask/conversations/:id
func (h *AskAIHandler) GetConversation(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	detail, err := h.askAIService.GetConversation(userID, c.Param("id"))
	if err != nil {
		h.writeAskAIError(c, err)
		return
	}

	response.Success(c, detail)
}

// SuggestQuestions 获取针对视频的推荐提问
// GET /api/v1/ask/suggestions/:video_id
func (h *AskAIHandler) SuggestQuestions(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	resp, err := h.askAIService.SuggestQuestions(userID, c.Param("video_id"))
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, resp)
}

// GenerateReply 为分析结果里的评论生成回复草稿
// POST /api/v1/ai/generate-reply
func (h *AskAIHandler) GenerateReply(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.GenerateReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.askAIService.GenerateReply(c.Request.Context(), userID, &req)
	if err != nil {
		h.writeAskAIError(c, err)
		return
	}

	response.Success(c, resp)
}

func (h *AskAIHandler) writeAskAIError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNoAnalysisForVideo),
		errors.Is(err, service.ErrConversationNotFound),
		errors.Is(err, service.ErrCommentNotFound),
		errors.Is(err, service.ErrAnalysisNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrConversationPermission),
		errors.Is(err, service.ErrAnalysisPermission):
		response.PermissionError(c, err.Error())
	case errors.Is(err, gemini.ErrSafetyFiltered), errors.Is(err, gemini.ErrInvalidPrompt):
		response.ParamError(c, "AI 无法处理该请求，请换个问法")
	case errors.Is(err, gemini.ErrRateLimited), errors.Is(err, gemini.ErrOverloaded):
		response.ServerError(c, "AI 服务繁忙，请稍后再试")
	default:
		response.ServerError(c, "")
	}
}
