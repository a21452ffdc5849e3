package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/lently/lently_go_server/config"
	"github.com/lently/lently_go_server/internal/model"
	"github.com/lently/lently_go_server/internal/pkg/response"
	"github.com/lently/lently_go_server/internal/repository"
	"github.com/lently/lently_go_server/internal/service"
	"github.com/lently/lently_go_server/internal/testutil"
)

func setupQuotaTest(t *testing.T, opts ...func(*model.User)) (*service.QuotaService, *model.User, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	user := testutil.TestUser(t, db, opts...)

	userRepo := repository.NewUserRepository(db)
	quotaService := service.NewQuotaService(userRepo, &config.Config{
		Plans: map[string]config.PlanConfig{
			"free": {VideosPerMonth: 3, CommentsPerVideo: 100},
		},
	})

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}
	return quotaService, user, cleanup
}

func quotaRouter(quotaService *service.QuotaService, userID int64) *gin.Engine {
	router := gin.New()
	if userID != 0 {
		router.Use(func(c *gin.Context) {
			c.Set(UserIDKey, userID)
		})
	}
	router.Use(QuotaCheck(quotaService))
	router.GET("/test", func(c *gin.Context) {
		response.Success(c, nil)
	})
	return router
}

func TestQuotaCheck_HasQuota(t *testing.T) {
	quotaService, user, cleanup := setupQuotaTest(t)
	defer cleanup()

	router := quotaRouter(quotaService, user.ID)

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := parseResponse(t, w)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeSuccess, resp.Code)
}

func TestQuotaCheck_QuotaExhausted(t *testing.T) {
	quotaService, user, cleanup := setupQuotaTest(t, testutil.WithVideosUsed(3))
	defer cleanup()

	router := quotaRouter(quotaService, user.ID)

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := parseResponse(t, w)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeQuotaExceeded, resp.Code)
}

func TestQuotaCheck_NotAuthenticated(t *testing.T) {
	quotaService, _, cleanup := setupQuotaTest(t)
	defer cleanup()

	router := quotaRouter(quotaService, 0)

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := parseResponse(t, w)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeAuthFailed, resp.Code)
}
