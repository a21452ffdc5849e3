package handler

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lently/lently_go_server/internal/model/dto"
	"github.com/lently/lently_go_server/internal/pkg/response"
	"github.com/lently/lently_go_server/internal/repository"
	"github.com/lently/lently_go_server/internal/service"
	"github.com/lently/lently_go_server/internal/testutil"
)

// cannedGenerator 返回固定 JSON 的生成器
type cannedGenerator struct {
	response json.RawMessage
}

func (g *cannedGenerator) GenerateStructured(ctx context.Context, prompt, systemInstruction string) (json.RawMessage, error) {
	return g.response, nil
}

const askHandlerCommentsJSON = `[
	{"comment_id":"c1","author":"Alice","text":"Loved the pacing","like_count":42,"sentiment":"positive","category":"praise"},
	{"comment_id":"c2","author":"Bob","text":"What mic is that?","like_count":10,"is_question":true}
]`

func setupAskAIHandler(t *testing.T) (*AskAIHandler, *gorm.DB, *cannedGenerator, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	gen := &cannedGenerator{response: json.RawMessage(`{"answer":"ok"}`)}
	askAIService := service.NewAskAIService(
		repository.NewAnalysisRepository(db),
		repository.NewConversationRepository(db),
		gen,
	)
	handler := NewAskAIHandler(askAIService)

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}

	return handler, db, gen, cleanup
}

func TestAskAIHandler_Ask_Success(t *testing.T) {
	handler, db, gen, cleanup := setupAskAIHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	testutil.TestAnalysis(t, db, user.ID, testutil.WithCommentsJSON(askHandlerCommentsJSON))
	gen.response = json.RawMessage(`{"answer":"Viewers loved the pacing.","confidence":0.8,"sources":["c1"]}`)

	router := authedRouter(user.ID)
	router.POST("/ask/question", handler.Ask)

	w := performRequest(router, "POST", "/ask/question", dto.AskQuestionRequest{
		VideoID:  "dQw4w9WgXcQ",
		Question: "What did viewers think of the pacing?",
	})

	resp := parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "Viewers loved the pacing.", data["answer"])
	assert.NotEmpty(t, data["conversation_id"])
}

func TestAskAIHandler_Ask_ValidatesRequest(t *testing.T) {
	handler, db, _, cleanup := setupAskAIHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	router := authedRouter(user.ID)
	router.POST("/ask/question", handler.Ask)

	// 问题太短
	w := performRequest(router, "POST", "/ask/question", dto.AskQuestionRequest{
		VideoID:  "dQw4w9WgXcQ",
		Question: "hi",
	})
	resp := parseResponse(t, w)
	assert.Equal(t, response.CodeParamError, resp.Code)

	// 非法过滤器
	w = performRequest(router, "POST", "/ask/question", map[string]interface{}{
		"video_id":       "dQw4w9WgXcQ",
		"question":       "What did viewers think?",
		"context_filter": "angry",
	})
	resp = parseResponse(t, w)
	assert.Equal(t, response.CodeParamError, resp.Code)
}

func TestAskAIHandler_Ask_NoAnalysis(t *testing.T) {
	handler, db, _, cleanup := setupAskAIHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	router := authedRouter(user.ID)
	router.POST("/ask/question", handler.Ask)

	w := performRequest(router, "POST", "/ask/question", dto.AskQuestionRequest{
		VideoID:  "dQw4w9WgXcQ",
		Question: "What did viewers think?",
	})

	resp := parseResponse(t, w)
	assert.Equal(t, response.CodeResourceNotFound, resp.Code)
}

func TestAskAIHandler_Conversations(t *testing.T) {
	handler, db, gen, cleanup := setupAskAIHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	testutil.TestAnalysis(t, db, user.ID, testutil.WithCommentsJSON(askHandlerCommentsJSON))
	gen.response = json.RawMessage(`{"answer":"The mic question came up twice."}`)

	router := authedRouter(user.ID)
	router.POST("/ask/question", handler.Ask)
	router.GET("/ask/conversations", handler.ListConversations)
	router.GET("/ask/conversations/:id", handler.GetConversation)

	w := performRequest(router, "POST", "/ask/question", dto.AskQuestionRequest{
		VideoID:  "dQw4w9WgXcQ",
		Question: "What are viewers asking about?",
	})
	askResp := parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, askResp.Code)
	conversationID := askResp.Data.(map[string]interface{})["conversation_id"].(string)

	w = performRequest(router, "GET", "/ask/conversations", nil)
	listResp := parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, listResp.Code)
	items := listResp.Data.([]interface{})
	require.Len(t, items, 1)

	w = performRequest(router, "GET", "/ask/conversations/"+conversationID, nil)
	detailResp := parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, detailResp.Code)
	detail := detailResp.Data.(map[string]interface{})
	assert.Equal(t, conversationID, detail["conversation_id"])
	assert.Len(t, detail["messages"], 2)

	// 别人的会话看不到
	otherRouter := authedRouter(testutil.TestUser(t, db).ID)
	otherRouter.GET("/ask/conversations/:id", handler.GetConversation)
	w = performRequest(otherRouter, "GET", "/ask/conversations/"+conversationID, nil)
	otherResp := parseResponse(t, w)
	assert.Equal(t, response.CodePermissionDenied, otherResp.Code)
}

func TestAskAIHandler_SuggestQuestions(t *testing.T) {
	handler, db, _, cleanup := setupAskAIHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	router := authedRouter(user.ID)
	router.GET("/ask/suggestions/:video_id", handler.SuggestQuestions)

	w := performRequest(router, "GET", "/ask/suggestions/dQw4w9WgXcQ", nil)
	resp := parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "dQw4w9WgXcQ", data["video_id"])
	assert.NotEmpty(t, data["suggestions"])
}

func TestAskAIHandler_GenerateReply(t *testing.T) {
	handler, db, gen, cleanup := setupAskAIHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	analysis := testutil.TestAnalysis(t, db, user.ID, testutil.WithCommentsJSON(askHandlerCommentsJSON))
	gen.response = json.RawMessage(`{"replies":[{"text":"Thanks Bob, it is a Shure SM7B!","tone":"friendly"}]}`)

	router := authedRouter(user.ID)
	router.POST("/ai/generate-reply", handler.GenerateReply)

	w := performRequest(router, "POST", "/ai/generate-reply", dto.GenerateReplyRequest{
		AnalysisID: analysis.ID,
		CommentID:  "c2",
	})

	resp := parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "What mic is that?", data["original_comment"])
	assert.Len(t, data["replies"], 1)
}

func TestAskAIHandler_GenerateReply_CommentNotFound(t *testing.T) {
	handler, db, _, cleanup := setupAskAIHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	analysis := testutil.TestAnalysis(t, db, user.ID, testutil.WithCommentsJSON(askHandlerCommentsJSON))

	router := authedRouter(user.ID)
	router.POST("/ai/generate-reply", handler.GenerateReply)

	w := performRequest(router, "POST", "/ai/generate-reply", dto.GenerateReplyRequest{
		AnalysisID: analysis.ID,
		CommentID:  "missing",
	})

	resp := parseResponse(t, w)
	assert.Equal(t, response.CodeResourceNotFound, resp.Code)
}
