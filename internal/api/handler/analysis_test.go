package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lently/lently_go_server/internal/model/dto"
	"github.com/lently/lently_go_server/internal/pkg/queue"
	"github.com/lently/lently_go_server/internal/pkg/response"
	"github.com/lently/lently_go_server/internal/progress"
	"github.com/lently/lently_go_server/internal/repository"
	"github.com/lently/lently_go_server/internal/service"
	"github.com/lently/lently_go_server/internal/testutil"
)

func setupAnalysisHandler(t *testing.T) (*AnalysisHandler, *gorm.DB, *progress.Manager, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	userRepo := repository.NewUserRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)
	cfg := testConfig()
	quotaService := service.NewQuotaService(userRepo, cfg)
	jobQueue := queue.NewQueue(rdb, "analysis_jobs")
	tracker := progress.NewManager()

	analysisService := service.NewAnalysisService(analysisRepo, userRepo, quotaService, jobQueue, tracker, cfg)
	handler := NewAnalysisHandler(analysisService)

	cleanup := func() {
		rdb.Close()
		mr.Close()
		testutil.CleanupTestDB(t, db)
	}

	return handler, db, tracker, cleanup
}

func TestAnalysisHandler_Create_Success(t *testing.T) {
	handler, db, _, cleanup := setupAnalysisHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, db)

	router := authedRouter(user.ID)
	router.POST("/analyses", handler.Create)

	req := dto.CreateAnalysisRequest{
		VideoURL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	}

	w := performRequest(router, "POST", "/analyses", req)
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeSuccess, resp.Code)

	data := resp.Data.(map[string]interface{})
	assert.NotEmpty(t, data["job_id"])
	assert.NotZero(t, data["analysis_id"])
}

func TestAnalysisHandler_Create_InvalidURL(t *testing.T) {
	handler, db, _, cleanup := setupAnalysisHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, db)

	router := authedRouter(user.ID)
	router.POST("/analyses", handler.Create)

	req := dto.CreateAnalysisRequest{
		VideoURL: "https://example.com/not-a-video",
	}

	w := performRequest(router, "POST", "/analyses", req)
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeParamError, resp.Code)
}

func TestAnalysisHandler_Create_QuotaExceeded(t *testing.T) {
	handler, db, _, cleanup := setupAnalysisHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithVideosUsed(3))

	router := authedRouter(user.ID)
	router.POST("/analyses", handler.Create)

	req := dto.CreateAnalysisRequest{
		VideoURL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	}

	w := performRequest(router, "POST", "/analyses", req)
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeQuotaExceeded, resp.Code)
}

func TestAnalysisHandler_Create_AlreadyRunning(t *testing.T) {
	handler, db, _, cleanup := setupAnalysisHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	testutil.TestAnalysis(t, db, user.ID, testutil.WithStatus("processing"))

	router := authedRouter(user.ID)
	router.POST("/analyses", handler.Create)

	req := dto.CreateAnalysisRequest{
		VideoURL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	}

	w := performRequest(router, "POST", "/analyses", req)
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeAnalysisRunning, resp.Code)
}

func TestAnalysisHandler_Get_Success(t *testing.T) {
	handler, db, _, cleanup := setupAnalysisHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	analysis := testutil.TestAnalysis(t, db, user.ID)

	router := authedRouter(user.ID)
	router.GET("/analyses/:id", handler.Get)

	w := performRequest(router, "GET", fmt.Sprintf("/analyses/%d", analysis.ID), nil)
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeSuccess, resp.Code)
}

func TestAnalysisHandler_Get_NotFound(t *testing.T) {
	handler, db, _, cleanup := setupAnalysisHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, db)

	router := authedRouter(user.ID)
	router.GET("/analyses/:id", handler.Get)

	w := performRequest(router, "GET", "/analyses/99999", nil)
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeResourceNotFound, resp.Code)
}

func TestAnalysisHandler_Get_PermissionDenied(t *testing.T) {
	handler, db, _, cleanup := setupAnalysisHandler(t)
	defer cleanup()

	owner := testutil.TestUser(t, db)
	analysis := testutil.TestAnalysis(t, db, owner.ID)
	other := testutil.TestUser(t, db)

	router := authedRouter(other.ID)
	router.GET("/analyses/:id", handler.Get)

	w := performRequest(router, "GET", fmt.Sprintf("/analyses/%d", analysis.ID), nil)
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodePermissionDenied, resp.Code)
}

func TestAnalysisHandler_List(t *testing.T) {
	handler, db, _, cleanup := setupAnalysisHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	testutil.TestAnalysis(t, db, user.ID)
	testutil.TestAnalysis(t, db, user.ID, testutil.WithStatus("failed"))

	router := authedRouter(user.ID)
	router.GET("/analyses", handler.List)

	w := performRequest(router, "GET", "/analyses", nil)
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeSuccess, resp.Code)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(2), data["total"])
}

func TestAnalysisHandler_Delete_Success(t *testing.T) {
	handler, db, _, cleanup := setupAnalysisHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	analysis := testutil.TestAnalysis(t, db, user.ID)

	router := authedRouter(user.ID)
	router.DELETE("/analyses/:id", handler.Delete)

	w := performRequest(router, "DELETE", fmt.Sprintf("/analyses/%d", analysis.ID), nil)
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeSuccess, resp.Code)
}

func TestAnalysisHandler_GetProgress_CompletedFromDB(t *testing.T) {
	handler, db, _, cleanup := setupAnalysisHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	analysis := testutil.TestAnalysis(t, db, user.ID, testutil.WithStatus("completed"))

	router := authedRouter(user.ID)
	router.GET("/jobs/:job_id/progress", handler.GetProgress)

	w := performRequest(router, "GET", "/jobs/"+analysis.JobID+"/progress", nil)
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeSuccess, resp.Code)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "completed", data["status"])
	assert.Equal(t, float64(100), data["progress"])
}

func TestAnalysisHandler_GetProgress_UnknownJob(t *testing.T) {
	handler, db, _, cleanup := setupAnalysisHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, db)

	router := authedRouter(user.ID)
	router.GET("/jobs/:job_id/progress", handler.GetProgress)

	w := performRequest(router, "GET", "/jobs/no-such-job/progress", nil)
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeResourceNotFound, resp.Code)
}

// 终态作业的 SSE 流：推完当前快照立即结束
func TestAnalysisHandler_StreamProgress_TerminalSnapshot(t *testing.T) {
	handler, db, _, cleanup := setupAnalysisHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	analysis := testutil.TestAnalysis(t, db, user.ID, testutil.WithStatus("completed"))

	router := authedRouter(user.ID)
	router.GET("/jobs/:job_id/stream", handler.StreamProgress)

	req := httptest.NewRequest("GET", "/jobs/"+analysis.JobID+"/stream", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "data: "))
	assert.Contains(t, body, `"status":"completed"`)
	assert.Contains(t, body, `"progress":100`)
}

// 流打开期间作业转入终态：无论转移发生在订阅前还是订阅后，
// 流都必须推出终态快照并结束，而不是空转心跳
func TestAnalysisHandler_StreamProgress_EndsWhenJobFinishes(t *testing.T) {
	handler, db, tracker, cleanup := setupAnalysisHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	analysis := testutil.TestAnalysis(t, db, user.ID, testutil.WithStatus("processing"))
	tracker.CreateJob(analysis.JobID, user.ID, analysis.VideoURL)

	router := authedRouter(user.ID)
	router.GET("/jobs/:job_id/stream", handler.StreamProgress)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest("GET", "/jobs/"+analysis.JobID+"/stream", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		router.ServeHTTP(w, req)
		close(done)
	}()

	tracker.UpdateStep(analysis.JobID, progress.StepCompleted, nil)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		cancel()
		<-done
		t.Fatal("stream did not end after the job reached a terminal state")
	}

	body := w.Body.String()
	assert.Contains(t, body, `"step":"completed"`)
	assert.Contains(t, body, `"progress":100`)
}

func TestAnalysisHandler_StreamProgress_PermissionDenied(t *testing.T) {
	handler, db, _, cleanup := setupAnalysisHandler(t)
	defer cleanup()

	owner := testutil.TestUser(t, db)
	analysis := testutil.TestAnalysis(t, db, owner.ID, testutil.WithStatus("completed"))
	other := testutil.TestUser(t, db)

	router := authedRouter(other.ID)
	router.GET("/jobs/:job_id/stream", handler.StreamProgress)

	w := performRequest(router, "GET", "/jobs/"+analysis.JobID+"/stream", nil)
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodePermissionDenied, resp.Code)
}
